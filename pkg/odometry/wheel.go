package odometry

import "fmt"

// WheelID names one of the four swerve modules.
type WheelID int

const (
	FrontLeft WheelID = iota
	FrontRight
	RearLeft
	RearRight

	NumWheels = 4
)

// Wheels lists every wheel in the order the engine visits them.
var Wheels = [NumWheels]WheelID{FrontLeft, FrontRight, RearLeft, RearRight}

func (w WheelID) String() string {
	switch w {
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case RearLeft:
		return "rear_left"
	case RearRight:
		return "rear_right"
	default:
		return fmt.Sprintf("unknown(%d)", int(w))
	}
}

// ParseWheelID is the inverse of WheelID.String.
func ParseWheelID(s string) (WheelID, bool) {
	for _, w := range Wheels {
		if w.String() == s {
			return w, true
		}
	}
	return 0, false
}

// RightSide is true for the wheels whose drive direction is mirrored.
func (w WheelID) RightSide() bool {
	return w == FrontRight || w == RearRight
}

// PerWheel holds one value per wheel, indexed by WheelID.
type PerWheel[T any] [NumWheels]T

// WheelModule is the part of a swerve module the engine reads each tick.
type WheelModule interface {
	HasDistanceSensor() bool
	// CumulativeDistance is the total drive distance since the sensor came
	// up. It may jump if the sensor is replaced.
	CumulativeDistance() float64
	// SteerSignal is the raw steer reading, converted with a SteerConversion.
	SteerSignal() float64
}

// SteerConversion maps a raw steer signal to an angle in radians, 0 being
// straight ahead and positive anti-clockwise.
type SteerConversion func(signal float64) float64

// HeadingSensor reports the chassis yaw.
type HeadingSensor interface {
	// YawDegrees is clockwise positive.
	YawDegrees() float64
}

// Publisher receives telemetry values. Implementations must not block.
type Publisher interface {
	Publish(name string, value float64)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, float64) {}
