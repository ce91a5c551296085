package odometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWheel struct {
	sensor bool
	dist   float64
	steer  float64

	distReads int
}

func (f *fakeWheel) HasDistanceSensor() bool { return f.sensor }

func (f *fakeWheel) CumulativeDistance() float64 {
	f.distReads++
	return f.dist
}

func (f *fakeWheel) SteerSignal() float64 { return f.steer }

type fakeHeading float64

func (h *fakeHeading) YawDegrees() float64 { return float64(*h) }

type recordingPublisher struct {
	values map[string]float64
	count  int
}

func (p *recordingPublisher) Publish(name string, value float64) {
	if p.values == nil {
		p.values = map[string]float64{}
	}
	p.values[name] = value
	p.count++
}

// The fake wheels report their steer signal directly in radians.
func identity(v float64) float64 { return v }

func newFakeWheels(sensored ...WheelID) (PerWheel[*fakeWheel], PerWheel[WheelModule]) {
	var fakes PerWheel[*fakeWheel]
	var modules PerWheel[WheelModule]
	for _, w := range Wheels {
		fakes[w] = &fakeWheel{}
		modules[w] = fakes[w]
	}
	for _, w := range sensored {
		fakes[w].sensor = true
	}
	return fakes, modules
}

func testGeometry() Geometry {
	return Geometry{
		HalfWidth:   0.5,
		HalfLength:  0.5,
		TorqueAngle: DefaultTorqueAngles(),
	}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNewEngineStartsDisabledAtZero(t *testing.T) {
	_, modules := newFakeWheels(Wheels[:]...)
	e := New(testGeometry(), modules, identity)

	assert.False(t, e.Enabled())
	assert.Equal(t, Position{}, e.Position())
	assert.Equal(t, PerWheel[float64]{}, e.ZeroOffsets())
}

func TestDefaultTorqueAngles(t *testing.T) {
	ta := DefaultTorqueAngles()
	assert.Equal(t, math.Pi/4, ta[FrontLeft])
	assert.Equal(t, math.Pi/4, ta[RearLeft])
	assert.Equal(t, -math.Pi/4, ta[FrontRight])
	assert.Equal(t, -math.Pi/4, ta[RearRight])
}

func TestEnableRequiresDiagonalPair(t *testing.T) {
	for _, tc := range []struct {
		name     string
		sensored []WheelID
		ok       bool
	}{
		{"all", Wheels[:], true},
		{"front left and rear right", []WheelID{FrontLeft, RearRight}, true},
		{"rear left and front right", []WheelID{RearLeft, FrontRight}, true},
		{"front left only", []WheelID{FrontLeft}, false},
		{"front pair", []WheelID{FrontLeft, FrontRight}, false},
		{"left pair", []WheelID{FrontLeft, RearLeft}, false},
		{"none", nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fakes, modules := newFakeWheels(tc.sensored...)
			for _, w := range Wheels {
				fakes[w].dist = 3
			}
			e := New(testGeometry(), modules, identity)

			err := e.Enable(true)
			if tc.ok {
				require.NoError(t, err)
				assert.True(t, e.Enabled())
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientEncoders))
			var pe *PrecheckError
			require.True(t, errors.As(err, &pe))
			for _, w := range Wheels {
				assert.Equal(t, fakes[w].sensor, pe.Sensored[w], w.String())
			}
			assert.False(t, e.Enabled())
			assert.Equal(t, PerWheel[float64]{}, e.ZeroOffsets(), "zero points must not be touched")
		})
	}
}

func TestPrecheckErrorMessage(t *testing.T) {
	err := &PrecheckError{Sensored: PerWheel[bool]{FrontLeft: true}}
	assert.Equal(t, "not enough drive encoders to predict position: only front_left have a distance sensor", err.Error())

	err = &PrecheckError{}
	assert.Equal(t, "not enough drive encoders to predict position: no wheels have a distance sensor", err.Error())
}

func TestEnableWithZeroPositionResets(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	fakes[FrontLeft].dist = 1
	fakes[FrontRight].dist = 2
	fakes[RearLeft].dist = 3
	fakes[RearRight].dist = 4
	e := New(testGeometry(), modules, identity)

	require.NoError(t, e.Enable(true))
	assert.Equal(t, PerWheel[float64]{1, 2, 3, 4}, e.ZeroOffsets())

	other := New(testGeometry(), modules, identity)
	require.NoError(t, other.Enable(false))
	assert.Equal(t, PerWheel[float64]{}, other.ZeroOffsets())
}

func TestResetIsIdempotent(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(true))

	for _, w := range Wheels {
		fakes[w].dist = 2
	}
	e.Tick()
	require.NotEqual(t, Position{}, e.Position())

	e.Reset()
	assert.Equal(t, Position{}, e.Position())
	first := e.ZeroOffsets()
	e.Reset()
	assert.Equal(t, Position{}, e.Position())
	assert.Equal(t, first, e.ZeroOffsets())
	for _, w := range Wheels {
		assert.Equal(t, fakes[w].dist, e.ZeroOffsets()[w])
	}
}

func TestResetReadsUnsensoredWheels(t *testing.T) {
	fakes, modules := newFakeWheels(FrontLeft, RearRight)
	fakes[FrontRight].dist = 7
	e := New(testGeometry(), modules, identity)

	e.Reset()
	assert.Equal(t, 7.0, e.ZeroOffsets()[FrontRight])
	assert.False(t, e.Enabled(), "reset does not enable")
}

func TestDisabledTickFreezesPosition(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(true))

	for _, w := range Wheels {
		fakes[w].dist = 1
	}
	e.Tick()
	frozen := e.Position()
	zeros := e.ZeroOffsets()

	e.Disable(false)
	for i := 0; i < 10; i++ {
		for _, w := range Wheels {
			fakes[w].dist += 1
		}
		e.Tick()
		assert.Equal(t, frozen.X, e.X())
		assert.Equal(t, frozen.Y, e.Y())
	}
	assert.Equal(t, frozen, e.Position())
	assert.Equal(t, zeros, e.ZeroOffsets(), "zero points go stale while disabled")
}

func TestDisableWithZeroPositionKeepsZeroOffsets(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(true))
	for _, w := range Wheels {
		fakes[w].dist = 4
	}
	e.Tick()
	reads := fakes[FrontLeft].distReads

	e.Disable(true)
	assert.False(t, e.Enabled())
	assert.Equal(t, Position{}, e.Position())
	assert.Equal(t, PerWheel[float64]{4, 4, 4, 4}, e.ZeroOffsets())
	assert.Equal(t, reads, fakes[FrontLeft].distReads, "disable must not read the encoders")
}

func TestSingleWheelContribution(t *testing.T) {
	fakes, modules := newFakeWheels(FrontLeft, RearRight)
	g := testGeometry()
	e := New(g, modules, identity)
	require.NoError(t, e.Enable(true))

	// Rear right drops out, leaving front left as the only contributor.
	fakes[RearRight].sensor = false
	fakes[FrontLeft].dist = 1
	e.Tick()

	want := Position{
		X:   0,
		Y:   1,
		RCW: g.Radius() * math.Cos(math.Pi/4),
	}
	if diff := cmp.Diff(want, e.Position(), approx); diff != "" {
		t.Errorf("Unexpected position (-want +got):\n%s", diff)
	}
}

func TestRightWheelRotationIsMirrored(t *testing.T) {
	fakes, modules := newFakeWheels(RearLeft, FrontRight)
	g := testGeometry()
	e := New(g, modules, identity)
	require.NoError(t, e.Enable(true))

	fakes[RearLeft].sensor = false
	fakes[FrontRight].dist = 1
	e.Tick()

	assert.InDelta(t, -g.Radius()*math.Cos(-math.Pi/4), e.RCW(), 1e-12)
	assert.InDelta(t, 1.0, e.Y(), 1e-12)
}

func TestAveragingAcrossWheels(t *testing.T) {
	fakes, modules := newFakeWheels(FrontLeft, RearRight)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(true))

	// Front left pointing right (x = -sin(-π/2)·2 = 2), rear right straight
	// ahead (x = 0).
	fakes[FrontLeft].steer = -math.Pi / 2
	fakes[FrontLeft].dist = 2
	fakes[RearRight].steer = 0
	fakes[RearRight].dist = 1
	e.Tick()

	assert.InDelta(t, 1.0, e.X(), 1e-12)
	assert.InDelta(t, 0.5, e.Y(), 1e-12)
}

func TestZeroSensorTickIsSafe(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	pub := &recordingPublisher{}
	e := New(testGeometry(), modules, identity, WithPublisher(pub))
	require.NoError(t, e.Enable(true))

	for _, w := range Wheels {
		fakes[w].dist = 1
	}
	e.Tick()
	before := e.Position()

	for _, w := range Wheels {
		fakes[w].sensor = false
		fakes[w].dist = 5
	}
	require.NotPanics(t, e.Tick)

	got := e.Position()
	assert.Equal(t, before, got)
	assert.False(t, math.IsNaN(got.X) || math.IsNaN(got.Y) || math.IsNaN(got.RCW))
	assert.Equal(t, PerWheel[float64]{1, 1, 1, 1}, e.ZeroOffsets())
	assert.Equal(t, before.X, pub.values[TelemetryX])
}

func TestRollingZero(t *testing.T) {
	fakes, modules := newFakeWheels(FrontLeft, RearRight)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(false))
	fakes[RearRight].sensor = false

	fakes[FrontLeft].dist = 5
	e.Tick()
	first := e.Y()
	assert.InDelta(t, 5.0, first, 1e-12)

	fakes[FrontLeft].dist = 8
	e.Tick()
	assert.InDelta(t, 3.0, e.Y()-first, 1e-12)
	assert.Equal(t, 8.0, e.ZeroOffsets()[FrontLeft])
}

func TestUnsensoredWheelKeepsItsZero(t *testing.T) {
	fakes, modules := newFakeWheels(FrontLeft, RearRight)
	e := New(testGeometry(), modules, identity)
	require.NoError(t, e.Enable(true))

	fakes[FrontRight].dist = 10
	e.Tick()
	assert.Equal(t, 0.0, e.ZeroOffsets()[FrontRight])
}

func TestTickPublishesEvenWhenDisabled(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	pub := &recordingPublisher{}
	e := New(testGeometry(), modules, identity, WithPublisher(pub))

	e.Tick()
	assert.Equal(t, 2, pub.count)
	assert.Equal(t, map[string]float64{TelemetryX: 0, TelemetryY: 0}, pub.values)

	require.NoError(t, e.Enable(true))
	for _, w := range Wheels {
		fakes[w].dist = 2
	}
	e.Tick()
	assert.InDelta(t, 2.0, pub.values[TelemetryY], 1e-12)
	assert.Equal(t, e.X(), pub.values[TelemetryX])
}

// drive applies the same sequence of wheel readings to every set of fakes.
func drive(steps []PerWheel[fakeWheel], tick func(), sets ...PerWheel[*fakeWheel]) {
	for _, step := range steps {
		for _, fakes := range sets {
			for _, w := range Wheels {
				fakes[w].sensor = step[w].sensor
				fakes[w].dist = step[w].dist
				fakes[w].steer = step[w].steer
			}
		}
		tick()
	}
}

func TestFieldCentricMatchesRobotFrameAtZeroHeading(t *testing.T) {
	robotFakes, robotModules := newFakeWheels(Wheels[:]...)
	fieldFakes, fieldModules := newFakeWheels(Wheels[:]...)
	heading := fakeHeading(0)

	robot := New(testGeometry(), robotModules, identity)
	field := NewFieldCentric(testGeometry(), fieldModules, identity, &heading)
	require.NoError(t, robot.Enable(true))
	require.NoError(t, field.Enable(true))

	steps := []PerWheel[fakeWheel]{
		{{sensor: true, dist: 1, steer: 0.3}, {sensor: true, dist: 1.1, steer: 0.3}, {sensor: true, dist: 0.9, steer: 0.25}, {sensor: true, dist: 1, steer: 0.3}},
		{{sensor: true, dist: 2, steer: 1.2}, {sensor: true, dist: 2.2, steer: 1.1}, {sensor: true, dist: 2.1, steer: 1.3}, {sensor: true, dist: 1.8, steer: 1.2}},
		{{sensor: true, dist: 2.5, steer: 4}, {sensor: false, dist: 9, steer: 4}, {sensor: true, dist: 2.6, steer: 4.1}, {sensor: true, dist: 2.4, steer: 3.9}},
		{{sensor: true, dist: 3, steer: 6}, {sensor: true, dist: 3, steer: 6}, {sensor: true, dist: 3, steer: 6}, {sensor: true, dist: 3, steer: 6}},
	}
	drive(steps, func() {
		robot.Tick()
		field.Tick()
		if diff := cmp.Diff(robot.Position(), field.Position(), approx); diff != "" {
			t.Fatalf("Field-centric engine diverged at heading 0 (-robot +field):\n%s", diff)
		}
	}, robotFakes, fieldFakes)
	assert.Equal(t, robot.ZeroOffsets(), field.ZeroOffsets())
}

func TestFieldCentricWithoutHeadingUsesRobotFrame(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	e := NewFieldCentric(testGeometry(), modules, identity, nil)
	require.NoError(t, e.Enable(true))

	for _, w := range Wheels {
		fakes[w].steer = math.Pi / 2
		fakes[w].dist = 1
	}
	require.NotPanics(t, e.Tick)
	assert.InDelta(t, -1.0, e.X(), 1e-9)
	assert.InDelta(t, 0.0, e.Y(), 1e-9)
}

func TestFieldCentricRotatesByHeading(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	heading := fakeHeading(90)
	e := NewFieldCentric(testGeometry(), modules, identity, &heading)
	require.NoError(t, e.Enable(true))

	// Facing 90° clockwise of the field's y axis, driving towards the
	// chassis' left moves the robot along field +y.
	for _, w := range Wheels {
		fakes[w].steer = math.Pi / 2
		fakes[w].dist = 1
	}
	e.Tick()
	assert.InDelta(t, 0.0, e.X(), 1e-9)
	assert.InDelta(t, 1.0, e.Y(), 1e-9)

	// Turn back to 0 and drive the same way: now it is field -x.
	heading = 0
	for _, w := range Wheels {
		fakes[w].dist = 2
	}
	e.Tick()
	assert.InDelta(t, -1.0, e.X(), 1e-9)
	assert.InDelta(t, 1.0, e.Y(), 1e-9)
}

func TestFieldCentricReadsHeadingOncePerTick(t *testing.T) {
	_, modules := newFakeWheels(Wheels[:]...)
	h := &countingHeading{}
	e := NewFieldCentric(testGeometry(), modules, identity, h)
	require.NoError(t, e.Enable(true))

	e.Tick()
	e.Tick()
	assert.Equal(t, 2, h.reads)

	e.Disable(false)
	e.Tick()
	assert.Equal(t, 2, h.reads, "disabled ticks do not poll the heading")
}

type countingHeading struct {
	reads int
}

func (h *countingHeading) YawDegrees() float64 {
	h.reads++
	return 0
}

func TestSteerConversionIsApplied(t *testing.T) {
	fakes, modules := newFakeWheels(Wheels[:]...)
	// Signal is in quarter turns.
	quarterTurns := func(v float64) float64 { return v * math.Pi / 2 }
	e := New(testGeometry(), modules, quarterTurns)
	require.NoError(t, e.Enable(true))

	for _, w := range Wheels {
		fakes[w].steer = 2 // straight backwards
		fakes[w].dist = 1
	}
	e.Tick()
	assert.InDelta(t, -1.0, e.Y(), 1e-12)
	assert.InDelta(t, 0.0, e.X(), 1e-12)
}
