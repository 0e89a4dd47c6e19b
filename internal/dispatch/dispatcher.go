package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/metrics"
)

const defaultTaskTimeout = 30 * time.Second

// Task is one named post-commit side effect.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher fans post-commit tasks out to goroutines. Each task gets its
// own timeout and panic recovery, so one failing side effect never touches
// the others or the committed order. Failures are logged and counted, never
// propagated to the caller of Dispatch.
type Dispatcher struct {
	timeout time.Duration
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs error
}

// New builds a dispatcher. A zero timeout falls back to the default.
func New(timeout time.Duration, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Dispatcher{timeout: timeout, logg: logg, metrics: m}, nil
}

// Dispatch launches every task in its own goroutine. The tasks run on a
// context detached from the request, so a client disconnect after commit
// does not abort side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks ...Task) {
	base := context.WithoutCancel(ctx)
	for _, task := range tasks {
		if task.Run == nil {
			continue
		}
		d.wg.Add(1)
		go d.run(base, task)
	}
}

// Wait blocks until every dispatched task has finished and returns the
// aggregated failures. Production callers fire and forget; tests use Wait
// to assert on outcomes.
func (d *Dispatcher) Wait() error {
	d.wg.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errs
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	defer d.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.record(taskCtx, task.Name, fmt.Errorf("task %s panicked: %v", task.Name, r))
		}
	}()

	if err := task.Run(taskCtx); err != nil {
		d.record(taskCtx, task.Name, fmt.Errorf("task %s: %w", task.Name, err))
		return
	}
	logCtx := d.logg.WithField(ctx, "task", task.Name)
	d.logg.Info(logCtx, "dispatch task completed")
}

func (d *Dispatcher) record(ctx context.Context, name string, err error) {
	logCtx := d.logg.WithField(ctx, "task", name)
	d.logg.Error(logCtx, "dispatch task failed", err)
	d.metrics.IncDispatchFailure(name)

	d.mu.Lock()
	d.errs = multierr.Append(d.errs, err)
	d.mu.Unlock()
}
