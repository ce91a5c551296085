package odometry

import "math"

// Geometry is the chassis layout the engine projects wheel motion with.
type Geometry struct {
	HalfWidth  float64
	HalfLength float64

	// TorqueAngle is each wheel's mounting offset used when projecting its
	// motion onto chassis rotation.
	TorqueAngle PerWheel[float64]
}

// DefaultTorqueAngles returns +π/4 for the left wheels and -π/4 for the right.
func DefaultTorqueAngles() PerWheel[float64] {
	var t PerWheel[float64]
	for _, w := range Wheels {
		if w.RightSide() {
			t[w] = -math.Pi / 4
		} else {
			t[w] = math.Pi / 4
		}
	}
	return t
}

// Radius is the distance from the chassis centre to a wheel contact point.
func (g Geometry) Radius() float64 {
	return math.Hypot(g.HalfLength, g.HalfWidth)
}

// Position is the accumulated dead-reckoning estimate. RCW is the
// accumulated rotation term.
type Position struct {
	X, Y float64
	// RCW is the accumulated rotation estimate in radians.
	RCW float64
}
