package registration

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid updates and calls fire with the last value once
// no update has arrived for delay. fire runs on its own goroutine.
type Debouncer struct {
	delay    time.Duration
	fire     func(string)
	onUpdate func(string)

	lock    sync.Mutex
	timer   *time.Timer
	gen     uint64
	value   string
	pending bool
	stopped bool
}

func NewDebouncer(delay time.Duration, fire func(string)) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Update records value and restarts the quiet period.
func (d *Debouncer) Update(value string) {
	d.lock.Lock()
	if d.stopped {
		d.lock.Unlock()
		return
	}
	d.value = value
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.expire(gen) })
	onUpdate := d.onUpdate
	d.lock.Unlock()

	if onUpdate != nil {
		onUpdate(value)
	}
}

// Flush fires the pending value now, on the caller's goroutine.
func (d *Debouncer) Flush() {
	if value, ok := d.take(); ok {
		d.fire(value)
	}
}

// Stop drops any pending value. Later updates are ignored.
func (d *Debouncer) Stop() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// expire runs when the timer of update gen elapses. A timer already running
// when a later Update stopped it carries an older gen and does nothing.
func (d *Debouncer) expire(gen uint64) {
	d.lock.Lock()
	current := gen == d.gen
	d.lock.Unlock()
	if !current {
		return
	}
	if value, ok := d.take(); ok {
		d.fire(value)
	}
}

func (d *Debouncer) take() (string, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.pending || d.stopped {
		return "", false
	}
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	return d.value, true
}
