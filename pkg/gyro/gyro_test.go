package gyro

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	rate    int16
	readErr error
	writes  map[byte][]byte
}

func (f *fakePort) ReadReg(reg byte, buf []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	if reg == RegGyroZ {
		buf[0] = byte(uint16(f.rate) >> 8)
		buf[1] = byte(f.rate)
	}
	return nil
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	if f.writes == nil {
		f.writes = map[byte][]byte{}
	}
	f.writes[reg] = append([]byte(nil), buf...)
	return nil
}

func TestConfigure(t *testing.T) {
	p := &fakePort{}
	g := newGyro(p, nil)
	require.NoError(t, g.Configure())
	assert.Equal(t, []byte{GyroRange << 3}, p.writes[RegGyroConf])
	assert.Equal(t, []byte{0x10}, p.writes[RegUserCtl])
}

func TestSampleIntegratesClockwisePositive(t *testing.T) {
	p := &fakePort{}
	g := newGyro(p, nil)

	// 90 dps anti-clockwise for one second.
	p.rate = int16(90 / DegreesPerLSB())
	for i := 0; i < 100; i++ {
		require.NoError(t, g.sample(10*time.Millisecond))
	}
	assert.InDelta(t, -90.0, g.YawDegrees(), 0.1)

	g.Zero()
	assert.Equal(t, 0.0, g.YawDegrees())
}

func TestCalibrateRemovesBias(t *testing.T) {
	p := &fakePort{rate: 50}
	g := newGyro(p, nil)
	require.NoError(t, g.Calibrate(10))
	for i := 0; i < 100; i++ {
		require.NoError(t, g.sample(10*time.Millisecond))
	}
	assert.InDelta(t, 0.0, g.YawDegrees(), 1e-9)

	assert.Error(t, g.Calibrate(0))
}

func TestHeadingWraps(t *testing.T) {
	p := &fakePort{rate: int16(-500 / DegreesPerLSB())}
	g := newGyro(p, nil)
	// 500 dps clockwise for 0.4s = 200 degrees.
	for i := 0; i < 40; i++ {
		require.NoError(t, g.sample(10*time.Millisecond))
	}
	assert.InDelta(t, -160.0, g.YawDegrees(), 0.5)
}

func TestSampleReportsReadErrors(t *testing.T) {
	p := &fakePort{readErr: errors.New("bus error")}
	g := newGyro(p, nil)
	assert.Error(t, g.sample(time.Millisecond))
	assert.Equal(t, 0.0, g.YawDegrees())
}
