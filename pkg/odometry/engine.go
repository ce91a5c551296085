// Package odometry estimates the motion of a swerve drivetrain by dead
// reckoning from the four wheel distance and steer angle readings.
//
// An Engine is not safe for concurrent use; the owner must make every call
// from a single goroutine, normally the control loop that calls Tick.
package odometry

import (
	"math"

	"go.uber.org/zap"
)

const (
	TelemetryX = "x_pos"
	TelemetryY = "y_pos"
)

// Engine tracks the chassis position from the wheel readings, one Tick per
// control cycle.
type Engine struct {
	wheels    PerWheel[WheelModule]
	toRadians SteerConversion
	geometry  Geometry
	radius    float64

	corrector AngleCorrector
	publisher Publisher
	log       *zap.Logger

	enabled  bool
	position Position
	zeros    PerWheel[float64]
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithPublisher sends the position to p on every Tick.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithLogger sets the engine's logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAngleCorrector replaces the frame wheel angles are projected in.
func WithAngleCorrector(c AngleCorrector) Option {
	return func(e *Engine) {
		if c != nil {
			e.corrector = c
		}
	}
}

// New returns a robot-frame engine. It starts disabled with the position and
// zero points at zero.
func New(geometry Geometry, wheels PerWheel[WheelModule], toRadians SteerConversion, opts ...Option) *Engine {
	e := &Engine{
		wheels:    wheels,
		toRadians: toRadians,
		geometry:  geometry,
		radius:    geometry.Radius(),
		corrector: RobotFrame{},
		publisher: nopPublisher{},
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewFieldCentric returns an engine whose x and y are fixed to the field,
// using heading to rotate each wheel angle before it is projected. A nil
// heading gives a robot-frame engine.
func NewFieldCentric(geometry Geometry, wheels PerWheel[WheelModule], toRadians SteerConversion, heading HeadingSensor, opts ...Option) *Engine {
	if heading == nil {
		e := New(geometry, wheels, toRadians, opts...)
		e.log.Warn("No heading sensor; falling back to robot-frame odometry")
		return e
	}
	opts = append([]Option{WithAngleCorrector(FieldFrame{Heading: heading})}, opts...)
	return New(geometry, wheels, toRadians, opts...)
}

// Enable starts tracking. It needs both wheels of at least one diagonal pair
// to have distance sensors; otherwise it returns a *PrecheckError and leaves
// the engine untouched.
func (e *Engine) Enable(zeroPosition bool) error {
	var sensored PerWheel[bool]
	for _, w := range Wheels {
		sensored[w] = e.wheels[w].HasDistanceSensor()
	}
	if !(sensored[FrontLeft] && sensored[RearRight]) && !(sensored[RearLeft] && sensored[FrontRight]) {
		err := &PrecheckError{Sensored: sensored}
		e.log.Warn("Refusing to enable odometry", zap.Error(err))
		return err
	}

	e.enabled = true
	e.log.Info("Odometry enabled", zap.Bool("zeroPosition", zeroPosition))
	if zeroPosition {
		e.Reset()
	}
	return nil
}

// Disable stops tracking. With zeroPosition the position is cleared but the
// wheel zero points are left as they were; call Reset to re-read them.
func (e *Engine) Disable(zeroPosition bool) {
	e.enabled = false
	if zeroPosition {
		e.position = Position{}
	}
	e.log.Info("Odometry disabled", zap.Bool("zeroPosition", zeroPosition))
}

// Reset clears the position and takes every wheel's current distance as its
// new zero point.
func (e *Engine) Reset() {
	e.position = Position{}
	for _, w := range Wheels {
		e.zeros[w] = e.wheels[w].CumulativeDistance()
	}
	e.log.Debug("Odometry reset", zap.Float64s("zeros", e.zeros[:]))
}

func (e *Engine) Enabled() bool {
	return e.enabled
}

func (e *Engine) X() float64 {
	return e.position.X
}

func (e *Engine) Y() float64 {
	return e.position.Y
}

func (e *Engine) RCW() float64 {
	return e.position.RCW
}

func (e *Engine) Position() Position {
	return e.position
}

// ZeroOffsets returns the distance each wheel's next delta is measured from.
func (e *Engine) ZeroOffsets() PerWheel[float64] {
	return e.zeros
}

// Tick runs one control cycle: while enabled it folds the wheels' movement
// since the previous tick into the position, then publishes x and y.
func (e *Engine) Tick() {
	if e.enabled {
		e.accumulate()
	}
	e.publisher.Publish(TelemetryX, e.position.X)
	e.publisher.Publish(TelemetryY, e.position.Y)
}

func (e *Engine) accumulate() {
	correct := e.corrector.Begin()

	var x, y, rcw float64
	encoders := 0
	for _, w := range Wheels {
		m := e.wheels[w]
		if !m.HasDistanceSensor() {
			continue
		}
		dist := m.CumulativeDistance()
		theta := correct(e.toRadians(m.SteerSignal()))

		// Rolling zero: each delta is relative to the previous tick.
		delta := dist - e.zeros[w]
		e.zeros[w] = dist

		x += -math.Sin(theta) * delta
		y += math.Cos(theta) * delta

		thetaR := theta + e.geometry.TorqueAngle[w]
		if w.RightSide() {
			delta = -delta
		}
		rcw += e.radius * math.Cos(thetaR) * delta

		encoders++
	}

	if encoders == 0 {
		e.log.Debug("No wheels reported a distance sensor; position not updated")
		return
	}

	n := float64(encoders)
	e.position.X += x / n
	e.position.Y += y / n
	e.position.RCW += rcw / n
}
