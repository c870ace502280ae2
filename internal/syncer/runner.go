package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

// ErrNotSyncable is returned for objects that are not communications elements
var ErrNotSyncable = errors.New("object can not be synchronized")

// Source produces the findings of one device
type Source interface {
	Name() string
	Findings(ctx context.Context, device *model.BusinessObject) ([]model.SyncFinding, error)
}

// RunStore is what the runner reads devices from and records runs into
type RunStore interface {
	Store
	storage.SyncRunStorage
}

// SubclassChecker answers inheritance questions
type SubclassChecker interface {
	IsSubclassOf(class, super string) bool
}

type communityKey struct{}

// WithCommunity makes sources use community instead of the one stored on the
// device for syncs run with ctx.
func WithCommunity(ctx context.Context, community string) context.Context {
	return context.WithValue(ctx, communityKey{}, community)
}

// CommunityFrom returns the community set with WithCommunity, if any
func CommunityFrom(ctx context.Context) string {
	c, _ := ctx.Value(communityKey{}).(string)
	return c
}

// Runner synchronizes devices: source, findings, action, persisted run
type Runner struct {
	store   RunStore
	action  *Action
	source  Source
	classes SubclassChecker
	workers int
}

// NewRunner creates a Runner. workers bounds SyncAll concurrency.
func NewRunner(store RunStore, action *Action, source Source, classes SubclassChecker, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{store: store, action: action, source: source, classes: classes, workers: workers}
}

// Source returns the name of the finding source
func (r *Runner) Source() string {
	return r.source.Name()
}

// SyncDevice synchronizes one device and records the run. A source failure is
// recorded in the run and is not returned as an error.
func (r *Runner) SyncDevice(ctx context.Context, deviceID string) (*model.SyncRun, error) {
	device, err := r.store.GetObject(deviceID)
	if err != nil {
		return nil, err
	}
	if !r.classes.IsSubclassOf(device.ClassName, model.ClassGenericCommunicationsElement) {
		return nil, fmt.Errorf("%w: %s", ErrNotSyncable, device)
	}

	run := &model.SyncRun{
		DeviceID:  device.ID,
		Source:    r.source.Name(),
		StartedAt: time.Now().UTC(),
	}
	log.Info("Synchronizing device", "device", device.Name, "id", device.ID, "source", run.Source)

	findings, err := r.source.Findings(ctx, device)
	if err != nil {
		log.Warn("Finding source failed", "device", device.Name, "source", run.Source, "error", err)
		run.Error = err.Error()
	} else {
		run.Results = r.action.Execute(ctx, findings)
	}
	run.FinishedAt = time.Now().UTC()
	run.Tally()

	outcome := "ok"
	if run.Error != "" {
		outcome = "error"
	}
	metrics.SyncRuns.WithLabelValues(run.Source, outcome).Inc()
	metrics.SyncDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	if err := r.store.CreateSyncRun(run); err != nil {
		return nil, fmt.Errorf("recording sync run: %w", err)
	}
	log.Info("Device synchronized", "device", device.Name, "run", run.ID,
		"successes", run.Successes, "warnings", run.Warnings, "errors", run.Errors)
	return run, nil
}

// SyncAll synchronizes every device with sync enabled. Device failures are
// logged and skipped; only cancellation stops the fan-out.
func (r *Runner) SyncAll(ctx context.Context) ([]model.SyncRun, error) {
	devices, err := r.store.ListObjects(&model.ObjectFilter{
		AttributeName:  model.AttrSyncEnabled,
		AttributeValue: "true",
	})
	if err != nil {
		return nil, err
	}

	runs := make([]*model.SyncRun, len(devices))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range devices {
		if !r.classes.IsSubclassOf(devices[i].ClassName, model.ClassGenericCommunicationsElement) {
			continue
		}
		id := devices[i].ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			run, err := r.SyncDevice(ctx, id)
			if err != nil {
				log.Error("Device synchronization failed", "id", id, "error", err)
				return nil
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.SyncRun, 0, len(runs))
	for _, run := range runs {
		if run != nil {
			out = append(out, *run)
		}
	}
	log.Info("Scheduled synchronization finished", "devices", len(out))
	return out, nil
}
