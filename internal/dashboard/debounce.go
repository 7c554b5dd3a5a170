package dashboard

import "time"

// DefaultDebounce is the quiet period before the filter list is recompiled
const DefaultDebounce = 1200 * time.Millisecond

// Timer is a scheduled callback that can be stopped
type Timer interface {
	Stop() bool
}

// Scheduler schedules one-shot callbacks. time.AfterFunc in production, a
// manually advanced fake in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer owns the single rebuild timer slot. Every Arm starts a new
// generation and stops the previous timer first. A timer whose callback was
// already running when it was stopped still reports its generation, which
// Take then rejects, so at most one fire is ever honoured per Arm.
//
// Debouncer is not safe for concurrent use; Store guards it with its mutex.
type Debouncer struct {
	sched   Scheduler
	delay   time.Duration
	gen     uint64
	pending Timer
}

// NewDebouncer creates a debouncer. A nil scheduler uses time.AfterFunc.
func NewDebouncer(delay time.Duration, sched Scheduler) *Debouncer {
	if sched == nil {
		sched = realScheduler{}
	}
	return &Debouncer{sched: sched, delay: delay}
}

// Delay returns the quiet period
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Arm cancels any outstanding timer and schedules fire with the new
// generation. It reports whether a pending timer was replaced.
func (d *Debouncer) Arm(fire func(generation uint64)) bool {
	replaced := d.Cancel()
	d.gen++
	gen := d.gen
	d.pending = d.sched.AfterFunc(d.delay, func() { fire(gen) })
	return replaced
}

// Cancel stops the pending timer. It is idempotent and reports whether a
// timer was pending.
func (d *Debouncer) Cancel() bool {
	if d.pending == nil {
		return false
	}
	d.pending.Stop()
	d.pending = nil
	return true
}

// Pending reports whether a timer is outstanding
func (d *Debouncer) Pending() bool {
	return d.pending != nil
}

// Take claims the pending slot for generation. It returns false for a
// cancelled or superseded generation.
func (d *Debouncer) Take(generation uint64) bool {
	if d.pending == nil || generation != d.gen {
		return false
	}
	d.pending = nil
	return true
}

// Flush stops the pending timer and hands back its generation so the caller
// can run the rebuild right away
func (d *Debouncer) Flush() (uint64, bool) {
	if !d.Cancel() {
		return 0, false
	}
	return d.gen, true
}
