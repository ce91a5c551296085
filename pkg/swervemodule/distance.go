package swervemodule

// DistanceTracker turns the board's free-running 16-bit encoder count into
// an unbounded tick total.
type DistanceTracker struct {
	doneFirstPoll bool
	lastRaw       int16

	accumulator int64
}

// Update folds a new raw count into the total. The count may wrap; deltas
// are taken modulo 2^16, so it must be sampled at least every half turn of the
// counter.
func (d *DistanceTracker) Update(raw int16) {
	if d.doneFirstPoll {
		delta := raw - d.lastRaw
		d.accumulator += int64(delta)
	}
	d.lastRaw = raw
	d.doneFirstPoll = true
}

// Rebaseline makes the next Update a baseline rather than a delta. Used when
// the encoder drops out, so that its count restarting does not register as
// movement.
func (d *DistanceTracker) Rebaseline() {
	d.doneFirstPoll = false
}

func (d *DistanceTracker) Ticks() int64 {
	return d.accumulator
}

func (d *DistanceTracker) Distance(ticksPerUnit float64) float64 {
	return float64(d.accumulator) / ticksPerUnit
}

func (d *DistanceTracker) Zero() {
	d.accumulator = 0
}
