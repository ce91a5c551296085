package chassis

import (
	"math"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

// Drive encoders are calibrated in feet, so the frame is measured in feet too.
const (
	InchesPerFoot = 12

	TrackWidthFt = 22.0 / InchesPerFoot
	WheelbaseFt  = 18.5 / InchesPerFoot

	HalfWidthFt  = TrackWidthFt / 2
	HalfLengthFt = WheelbaseFt / 2
)

var CentreToWheelFt = math.Hypot(HalfLengthFt, HalfWidthFt)

func DefaultGeometry() odometry.Geometry {
	return odometry.Geometry{
		HalfWidth:   HalfWidthFt,
		HalfLength:  HalfLengthFt,
		TorqueAngle: odometry.DefaultTorqueAngles(),
	}
}

// WheelOffset returns the position of a wheel's contact point relative to the
// chassis centre, x to the right and y forwards.
func WheelOffset(g odometry.Geometry, w odometry.WheelID) (x, y float64) {
	switch w {
	case odometry.FrontLeft:
		return -g.HalfWidth, g.HalfLength
	case odometry.FrontRight:
		return g.HalfWidth, g.HalfLength
	case odometry.RearLeft:
		return -g.HalfWidth, -g.HalfLength
	default:
		return g.HalfWidth, -g.HalfLength
	}
}
