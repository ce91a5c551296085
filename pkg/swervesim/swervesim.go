// Package swervesim simulates the swerve drivetrain's wheel and heading
// sensors from commanded chassis motion, so the odometry and the controller
// can run without the robot.
package swervesim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/angle"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/swervemodule"
)

type Wheel struct {
	offset r2.Vec

	fullScaleVolts float64
	sensor         bool
	dist           float64
	steer          float64
}

var _ odometry.WheelModule = (*Wheel)(nil)

func (w *Wheel) HasDistanceSensor() bool     { return w.sensor }
func (w *Wheel) CumulativeDistance() float64 { return w.dist }

// SteerSignal returns the steer angle as the analog encoder would report it.
func (w *Wheel) SteerSignal() float64 {
	return swervemodule.RadiansToVoltage(w.fullScaleVolts, w.steer)
}

// SteerRadians is the simulated wheel angle in [0, 2π).
func (w *Wheel) SteerRadians() float64 { return w.steer }

type Drivetrain struct {
	wheels odometry.PerWheel[*Wheel]

	// Clockwise positive, like the IMU.
	yawDegrees float64
}

var _ odometry.HeadingSensor = (*Drivetrain)(nil)

func New(g odometry.Geometry, fullScaleVolts float64) *Drivetrain {
	d := &Drivetrain{}
	for _, id := range odometry.Wheels {
		x, y := chassis.WheelOffset(g, id)
		d.wheels[id] = &Wheel{
			offset:         r2.Vec{X: x, Y: y},
			fullScaleVolts: fullScaleVolts,
			sensor:         true,
		}
	}
	return d
}

// Step moves the chassis for dt seconds at robot-frame velocity (vx right,
// vy forwards) while rotating at omega radians/s anti-clockwise. Each wheel
// steers to its own velocity and drives forwards.
func (d *Drivetrain) Step(vx, vy, omega, dt float64) {
	v := r2.Vec{X: vx, Y: vy}
	for _, w := range d.wheels {
		// ω × r for a rotation about the chassis centre.
		tangent := r2.Rotate(w.offset, math.Pi/2, r2.Vec{})
		wv := r2.Add(v, r2.Scale(omega, tangent))

		speed := r2.Norm(wv)
		if speed == 0 {
			continue
		}
		w.steer = angle.WrapTwoPi(math.Atan2(-wv.X, wv.Y))
		w.dist += speed * dt
	}
	d.yawDegrees -= angle.Degrees(omega * dt)
}

func (d *Drivetrain) Wheel(id odometry.WheelID) *Wheel {
	return d.wheels[id]
}

func (d *Drivetrain) Modules() odometry.PerWheel[odometry.WheelModule] {
	var m odometry.PerWheel[odometry.WheelModule]
	for id, w := range d.wheels {
		m[id] = w
	}
	return m
}

// SetSensor simulates a drive encoder dropping out or coming back.
func (d *Drivetrain) SetSensor(id odometry.WheelID, ok bool) {
	d.wheels[id].sensor = ok
}

func (d *Drivetrain) SetYaw(degrees float64) {
	d.yawDegrees = degrees
}

func (d *Drivetrain) YawDegrees() float64 {
	return d.yawDegrees
}
