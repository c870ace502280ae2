package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/model"
)

type fakeSource struct {
	mu       sync.Mutex
	findings map[string][]model.SyncFinding
	errs     map[string]error
	calls    []string
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Findings(_ context.Context, device *model.BusinessObject) ([]model.SyncFinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, device.ID)
	if err := s.errs[device.ID]; err != nil {
		return nil, err
	}
	return s.findings[device.ID], nil
}

func newRunnerFixture(t *testing.T) (*fixture, *fakeSource, *Runner) {
	f := newFixture(t)
	src := &fakeSource{findings: map[string][]model.SyncFinding{}, errs: map[string]error{}}
	return f, src, NewRunner(f.store, f.action, src, f.classes, 2)
}

func TestSyncDevice(t *testing.T) {
	f, src, runner := newRunnerFixture(t)
	src.findings[f.router.ID] = []model.SyncFinding{
		finding(t, model.FindingNew, &Payload{Type: TypeListType, Name: "Cisco"}),
		finding(t, model.FindingNew, &Payload{Type: TypePortNoMatch}),
	}

	run, err := runner.SyncDevice(context.Background(), f.router.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "fake", run.Source)
	assert.Equal(t, 1, run.Successes)
	assert.Equal(t, 1, run.Warnings)
	assert.Empty(t, run.Error)

	stored, err := f.store.GetSyncRun(run.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Results, 2)
	assert.Equal(t, f.router.ID, stored.DeviceID)
}

func TestSyncDeviceSourceFailure(t *testing.T) {
	f, src, runner := newRunnerFixture(t)
	src.errs[f.router.ID] = errors.New("request timeout")

	run, err := runner.SyncDevice(context.Background(), f.router.ID)
	require.NoError(t, err)
	assert.Equal(t, "request timeout", run.Error)
	assert.Empty(t, run.Results)

	runs, err := f.store.ListSyncRuns(f.router.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSyncDeviceRejects(t *testing.T) {
	f, _, runner := newRunnerFixture(t)
	slot := f.create(t, "Slot", "0/0", f.router.ID, nil)

	_, err := runner.SyncDevice(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrNotSyncable)

	_, err = runner.SyncDevice(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSyncAll(t *testing.T) {
	f, src, runner := newRunnerFixture(t)
	enabled := map[string]string{model.AttrSyncEnabled: "true"}
	a := f.create(t, "Switch", "sw-a", "", enabled)
	b := f.create(t, "Switch", "sw-b", "", enabled)
	f.create(t, "Switch", "sw-off", "", map[string]string{model.AttrSyncEnabled: "false"})
	f.create(t, "Slot", "not-a-device", "", enabled)

	runs, err := runner.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, src.calls)
}

func TestSyncAllCancelled(t *testing.T) {
	f, _, runner := newRunnerFixture(t)
	f.create(t, "Switch", "sw-a", "", map[string]string{model.AttrSyncEnabled: "true"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.SyncAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
