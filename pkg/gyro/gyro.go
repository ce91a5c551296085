// Package gyro integrates the yaw rate of an MPU-6000 style SPI gyro into a
// heading.
package gyro

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/angle"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

const (
	RegSampleRateDiv = 25
	RegConfig        = 26
	RegGyroConf      = 27
	RegGyroZ         = 71 // 16 bits
	RegUserCtl       = 106

	GyroRange = 2 // 1000 dps

	DefaultSamplePeriod = 5 * time.Millisecond
)

type port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
}

type Gyro struct {
	dev    port
	log    *zap.Logger
	period time.Duration

	// bias is the mean raw reading at rest.
	bias float64

	lock       sync.Mutex
	yawDegrees float64
}

var _ odometry.HeadingSensor = (*Gyro)(nil)

func NewSPI(deviceFile string, log *zap.Logger) (*Gyro, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph")
	}
	p, err := spireg.Open(deviceFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SPI port %s", deviceFile)
	}
	c, err := p.Connect(physic.KiloHertz*1000, spi.Mode3, 8)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to SPI port %s", deviceFile)
	}
	return newGyro(&spiAdapter{c: c}, log), nil
}

func newGyro(dev port, log *zap.Logger) *Gyro {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gyro{
		dev:    dev,
		log:    log,
		period: DefaultSamplePeriod,
	}
}

// Configure puts the chip in SPI-only mode with the 1000 dps range and
// a 1kHz low pass filter.
func (g *Gyro) Configure() error {
	writes := []struct {
		reg byte
		val byte
	}{
		{RegUserCtl, 0x10},
		{RegGyroConf, GyroRange << 3},
		{RegConfig, 1},
		{RegSampleRateDiv, 4},
	}
	for _, w := range writes {
		if err := g.dev.WriteReg(w.reg, []byte{w.val}); err != nil {
			return errors.Wrapf(err, "failed to write gyro register %d", w.reg)
		}
	}
	return nil
}

// Calibrate averages n readings, which must be taken with the robot still,
// and subtracts that bias from every later sample.
func (g *Gyro) Calibrate(n int) error {
	if n <= 0 {
		return errors.New("calibration needs at least one sample")
	}
	var sum float64
	for i := 0; i < n; i++ {
		raw, err := g.readRate()
		if err != nil {
			return errors.Wrap(err, "failed to read gyro during calibration")
		}
		sum += float64(raw)
	}
	g.bias = sum / float64(n)
	g.log.Info("Gyro calibrated", zap.Float64("bias", g.bias))
	return nil
}

func DegreesPerLSB() float64 {
	return 1000.0 / math.MaxInt16
}

// Loop samples the gyro every period until ctx is done. Failed reads are
// logged and skipped.
func (g *Gyro) Loop(ctx context.Context) error {
	ticker := time.NewTicker(g.period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := g.sample(now.Sub(last)); err != nil {
				g.log.Warn("Failed to read gyro", zap.Error(err))
			}
			last = now
		}
	}
}

// sample folds one reading, held for dt, into the heading. The chip reports
// anti-clockwise rotation as positive.
func (g *Gyro) sample(dt time.Duration) error {
	raw, err := g.readRate()
	if err != nil {
		return err
	}
	rate := (float64(raw) - g.bias) * DegreesPerLSB()
	g.lock.Lock()
	defer g.lock.Unlock()
	g.yawDegrees = angle.FromFloat(g.yawDegrees - rate*dt.Seconds()).Float()
	return nil
}

func (g *Gyro) readRate() (int16, error) {
	var buf [2]byte
	if err := g.dev.ReadReg(RegGyroZ, buf[:]); err != nil {
		return 0, err
	}
	return int16(buf[0])<<8 | int16(buf[1]), nil
}

// YawDegrees returns the integrated heading, clockwise positive.
func (g *Gyro) YawDegrees() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.yawDegrees
}

func (g *Gyro) Zero() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.yawDegrees = 0
}

type spiAdapter struct {
	c spi.Conn

	r, w []byte
}

const (
	writeFlag = 0x00
	readFlag  = 0x80
)

func (s *spiAdapter) ReadReg(reg byte, buf []byte) error {
	// The address byte goes out first; the first byte clocked back is junk.
	bufLen := 1 + len(buf)
	s.ensureBuf(bufLen)
	s.w[0] = readFlag | reg
	if err := s.c.Tx(s.w[:bufLen], s.r[:bufLen]); err != nil {
		return err
	}
	copy(buf, s.r[1:bufLen])
	return nil
}

func (s *spiAdapter) WriteReg(reg byte, buf []byte) error {
	bufLen := 1 + len(buf)
	s.ensureBuf(bufLen)
	s.w[0] = writeFlag | reg
	copy(s.w[1:], buf)
	return s.c.Tx(s.w[:bufLen], s.r[:bufLen])
}

func (s *spiAdapter) ensureBuf(l int) {
	if len(s.r) < l {
		s.w = make([]byte, l)
		s.r = make([]byte, l)
		return
	}
	for i := 0; i < l; i++ {
		s.w[i] = 0
		s.r[i] = 0
	}
}
