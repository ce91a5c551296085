package angle

import "math"

const TwoPi = 2 * math.Pi

// WrapTwoPi reduces an angle in radians of any magnitude into [0, 2π).
func WrapTwoPi(rad float64) float64 {
	r := math.Mod(rad, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	if r >= TwoPi {
		// -tiny + 2π can round up to 2π.
		r = 0
	}
	return r
}

func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// PlusMinus180 is an angle in degrees, stored as a value in range (-180, 180].
// All operations clamp their output into range.
type PlusMinus180 struct {
	float64
}

func (a PlusMinus180) Add(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinus180) Sub(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 - b.float64)
}

// Float returns the angle in degrees, range (-180, 180].
func (a PlusMinus180) Float() float64 {
	return a.float64
}

// FromFloat converts degrees of any magnitude to a PlusMinus180 by calculating
// f mod 360 and shifting into range.
func FromFloat(f float64) PlusMinus180 {
	d := math.Mod(f, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return PlusMinus180{d}
}

// FromRadians is FromFloat for an angle in radians.
func FromRadians(rad float64) PlusMinus180 {
	return FromFloat(Degrees(rad))
}
