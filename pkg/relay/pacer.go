package relay

import "time"

// Pacer schedules fixed-interval frame emission without drift. Instead of
// sleeping a constant interval (which accumulates scheduler lateness), each
// delay is computed against the ideal frame boundary derived from the
// stream start time.
type Pacer struct {
	interval time.Duration
	start    time.Time
	ticks    int64
	now      func() time.Time
}

// NewPacer creates a pacer emitting every interval. The clock parameter is
// for tests; pass nil for the real clock.
func NewPacer(interval time.Duration, now func() time.Time) *Pacer {
	if now == nil {
		now = time.Now
	}
	p := &Pacer{interval: interval, now: now}
	p.Reset()
	return p
}

// Reset restarts the ideal timeline from the current instant.
func (p *Pacer) Reset() {
	p.start = p.now()
	p.ticks = 0
}

// Next advances to the following frame boundary and returns how long to
// wait for it. When the caller has fallen behind schedule, the delay is
// zero so it can catch up; it is never more than one interval.
func (p *Pacer) Next() time.Duration {
	p.ticks++
	ideal := p.start.Add(time.Duration(p.ticks) * p.interval)
	d := ideal.Sub(p.now())
	if d < 0 {
		return 0
	}
	if d > p.interval {
		return p.interval
	}
	return d
}

// Elapsed reports wall time since the last Reset.
func (p *Pacer) Elapsed() time.Duration {
	return p.now().Sub(p.start)
}
