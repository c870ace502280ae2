package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/invd/internal/log"
)

// Task statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrTaskNotFound is returned for unknown task names
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskRunning is returned when a task is triggered while it runs
	ErrTaskRunning = errors.New("task already running")
)

// TaskHandler is the function executed by a task
type TaskHandler func(ctx context.Context) error

// Task is a named job run on a cron schedule
type Task struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	Status   string     `json:"status"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  time.Time  `json:"next_run"`
	LastErr  string     `json:"last_error,omitempty"`

	entry   cron.EntryID
	handler TaskHandler
}

// Scheduler fires tasks on cron expressions and runs them on a worker pool.
// A task never overlaps with itself.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	pool    *WorkerPool
	tasks   map[string]*Task
	running bool
}

// NewScheduler creates a scheduler dispatching to pool
func NewScheduler(pool *WorkerPool) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		pool:  pool,
		tasks: make(map[string]*Task),
	}
}

// AddTask registers handler under name on a cron schedule (five fields or a
// descriptor such as @every 6h).
func (s *Scheduler) AddTask(name, schedule string, handler TaskHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}
	task := &Task{Name: name, Schedule: schedule, Status: StatusPending, handler: handler}
	id, err := s.cron.AddFunc(schedule, func() {
		if err := s.trigger(name); err != nil && !errors.Is(err, ErrTaskRunning) {
			log.Error("Scheduled task not dispatched", "task", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for task %s: %w", schedule, name, err)
	}
	task.entry = id
	s.tasks[name] = task
	log.Info("Task registered", "task", name, "schedule", schedule)
	return nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	log.Info("Starting background scheduler", "tasks", len(s.tasks))
}

// Stop stops firing tasks and waits for the cron loop to exit. Jobs already
// handed to the pool are left to the pool.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

// RunNow dispatches a task outside its schedule
func (s *Scheduler) RunNow(name string) error {
	return s.trigger(name)
}

func (s *Scheduler) trigger(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	if task.Status == StatusRunning {
		s.mu.Unlock()
		log.Warn("Skipping task, previous run still in progress", "task", name)
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	task.Status = StatusRunning
	now := time.Now()
	task.LastRun = &now
	s.mu.Unlock()

	err := s.pool.Submit(Job{
		ID: name,
		Handler: func(ctx context.Context) error {
			log.Info("Running task", "task", name)
			err := task.handler(ctx)
			s.finish(name, err)
			return err
		},
	})
	if err != nil {
		s.finish(name, err)
	}
	return err
}

func (s *Scheduler) finish(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.tasks[name]
	if err != nil {
		task.Status = StatusFailed
		task.LastErr = err.Error()
		log.Error("Task failed", "task", name, "error", err)
		return
	}
	task.Status = StatusCompleted
	task.LastErr = ""
	log.Info("Task completed", "task", name)
}

// Tasks returns a snapshot of the registered tasks sorted by name
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		c := *t
		c.NextRun = s.cron.Entry(t.entry).Next
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
