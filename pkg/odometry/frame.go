package odometry

import "github.com/tigerbot-team/tigerbot/swerve-controller/pkg/angle"

// AngleCorrector chooses the frame wheel angles are projected in.
type AngleCorrector interface {
	// Begin is called once at the start of each tick and returns the
	// correction to apply to every wheel angle during that tick.
	Begin() func(theta float64) float64
}

// RobotFrame leaves wheel angles chassis-relative.
type RobotFrame struct{}

func (RobotFrame) Begin() func(float64) float64 {
	return func(theta float64) float64 { return theta }
}

// FieldFrame rotates wheel angles by the current heading so that x and y
// stay fixed to the field while the chassis turns.
type FieldFrame struct {
	Heading HeadingSensor
}

func (f FieldFrame) Begin() func(float64) float64 {
	heading := angle.Radians(f.Heading.YawDegrees())
	return func(theta float64) float64 {
		return angle.WrapTwoPi(theta - heading)
	}
}
