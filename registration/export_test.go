package registration

// Generation reports the update count the live timer belongs to.
func (d *Debouncer) Generation() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.gen
}

// Expire runs the timer callback of update gen directly.
func (d *Debouncer) Expire(gen uint64) {
	d.expire(gen)
}
