package retention

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultInterval is the default tick interval for the background runner.
const DefaultInterval = 30 * time.Minute

// RunnerStats holds cumulative runner statistics.
type RunnerStats struct {
	Ticks       int64
	RowsDeleted int64
}

// Runner sweeps opportunistically in the background: once shortly after
// startup and then on every tick. Errors are logged and the next cycle
// tries again.
type Runner struct {
	sweeper  *Sweeper
	interval time.Duration

	ticks       atomic.Int64
	rowsDeleted atomic.Int64

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewRunner creates a background runner for the sweeper. A non-positive
// interval uses DefaultInterval.
func NewRunner(sweeper *Sweeper, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		sweeper:   sweeper,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to terminate it.
func (r *Runner) Start() {
	go r.loop()
}

// Stop terminates the background loop and waits for it to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// Stats returns a snapshot of cumulative runner statistics.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Ticks:       r.ticks.Load(),
		RowsDeleted: r.rowsDeleted.Load(),
	}
}

func (r *Runner) loop() {
	defer close(r.stoppedCh)

	r.tick()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	r.ticks.Add(1)

	result, err := r.sweeper.Sweep(context.Background())
	if err != nil {
		r.sweeper.policy.Logger.Warn("background sweep failed", "error", err)
		return
	}
	r.rowsDeleted.Add(result.DeletedQueries + result.DeletedResources + result.DeletedInvocations)
}
