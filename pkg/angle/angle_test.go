package angle

import (
	"math"
	"testing"
)

func TestWrapTwoPi(t *testing.T) {
	expectWrapResult(t, 0, 0)
	expectWrapResult(t, math.Pi, math.Pi)
	expectWrapResult(t, TwoPi, 0)
	expectWrapResult(t, -math.Pi/2, 3*math.Pi/2)
	expectWrapResult(t, 5*math.Pi, math.Pi)
	expectWrapResult(t, -4*math.Pi, 0)
	expectWrapResult(t, -1e-18, 0)
}

func expectWrapResult(t *testing.T, in, expected float64) {
	t.Helper()
	out := WrapTwoPi(in)
	if out < 0 || out >= TwoPi {
		t.Errorf("Out of range value for %f: %f", in, out)
	}
	if math.Abs(out-expected) > 1e-12 {
		t.Errorf("Not equal to expected value: %f -> %f, expected %f", in, out, expected)
	}
}

func TestWrapTwoPiLeavesInRangeValuesAlone(t *testing.T) {
	for _, in := range []float64{0, 0.1, 1, math.Pi, 6.2} {
		if out := WrapTwoPi(in); out != in {
			t.Errorf("In-range value %f changed to %f", in, out)
		}
	}
}

func TestFromFloat(t *testing.T) {
	expectClampResult(t, 0, 0)
	expectClampResult(t, 179, 179)
	expectClampResult(t, 180, 180)
	expectClampResult(t, -180, 180)
	expectClampResult(t, 181, -179)
	expectClampResult(t, 359, -1)
	expectClampResult(t, 720+90, 90)
	expectClampResult(t, -450, -90)
}

func expectClampResult(t *testing.T, in, expected float64) {
	t.Helper()
	if out := FromFloat(in).Float(); out != expected {
		t.Errorf("Not equal to expected value: %f -> %f, expected %f", in, out, expected)
	}
}

func TestAddSub(t *testing.T) {
	a := FromFloat(170)
	b := FromFloat(20)
	if got := a.Add(b).Float(); got != -170 {
		t.Errorf("170 + 20 = %f, expected -170", got)
	}
	if got := b.Sub(a).Float(); got != -150 {
		t.Errorf("20 - 170 = %f, expected -150", got)
	}
}

func TestRadiansDegrees(t *testing.T) {
	if got := Radians(180); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("Radians(180) = %f", got)
	}
	if got := Degrees(math.Pi / 2); math.Abs(got-90) > 1e-12 {
		t.Errorf("Degrees(π/2) = %f", got)
	}
	if got := FromRadians(3 * math.Pi / 2).Float(); math.Abs(got+90) > 1e-9 {
		t.Errorf("FromRadians(3π/2) = %f, expected -90", got)
	}
}
