package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc is a unit of periodic work. The time passed is the tick instant.
type TaskFunc func(ctx context.Context, now time.Time) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	runFirst bool
}

// SchedulerConfig configures scheduler behaviour.
type SchedulerConfig struct {
	Logger *zap.Logger
	Clock  func() time.Time
}

// Scheduler runs named periodic tasks on independent goroutines. It is owned
// by the caller: nothing runs until Start and Stop waits for every task to exit.
type Scheduler struct {
	logger *zap.Logger
	clock  func() time.Time

	tasks   []task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds an idle scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{logger: cfg.Logger, clock: cfg.Clock}
}

// Every registers fn to run once per interval. When immediate is true the task
// also runs as soon as the scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, immediate bool, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	if fn == nil {
		return fmt.Errorf("task %s: nil func", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("task %s: scheduler already started", name)
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn, runFirst: immediate})
	return nil
}

// Start launches every registered task. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.tasks))
}

// Stop cancels all tasks and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	defer s.wg.Done()
	if t.runFirst {
		s.run(ctx, t, s.clock())
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, t, s.clock())
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("task panicked", "task", t.name, "panic", r)
		}
	}()
	if err := t.fn(ctx, now); err != nil {
		s.logger.Sugar().Warnw("task failed", "task", t.name, "error", err)
	}
}
