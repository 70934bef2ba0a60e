// Package jobs runs deferred work in the background. A Debouncer keeps at
// most one pending job: scheduling again replaces the pending one, and
// cancelled jobs see their context done.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/adamspd/crispies/utils"
)

// Task is the deferred work. ctx is cancelled once the job is superseded.
type Task func(ctx context.Context)

type Debouncer struct {
	delay time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	cancel     context.CancelFunc
	generation uint64
	stopped    bool
	running    sync.WaitGroup
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule replaces any pending job with task, to run after the delay. It
// returns the job generation, or 0 when the debouncer is stopped.
func (d *Debouncer) Schedule(name string, task Task) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		utils.LogWarn("Dropping job %s: scheduler stopped", name)
		return 0
	}
	d.cancelLocked()

	d.generation++
	gen := d.generation
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.generation != gen || ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.running.Add(1)
		d.mu.Unlock()

		defer d.running.Done()
		defer cancel()

		start := time.Now()
		task(ctx)
		utils.LogDebug("Job %s (#%d) finished in %v", name, gen, time.Since(start))
	})

	utils.LogDebug("Queued job %s (#%d) in %v", name, gen, d.delay)
	return gen
}

// Cancel drops the pending job, if any, and cancels a running one
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Pending reports whether a job is waiting for its delay to pass
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels outstanding work, refuses new jobs and waits for a running
// job to return.
func (d *Debouncer) Stop() {
	utils.LogShutdown("Stopping job scheduler...")
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()

	d.running.Wait()
}
