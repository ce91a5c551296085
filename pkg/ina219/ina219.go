// Package ina219 reads the battery voltage and current from an INA219 power
// monitor.
package ina219

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/io/i2c"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

const (
	DefaultAddr = 0x41

	RegConfig      = 0
	RegShuntV      = 1
	RegBusV        = 2
	RegPower       = 3
	RegCurrent     = 4
	RegCalibration = 5

	BusVoltageLSB = 0.004

	TelemetryVolts = "battery_v"
	TelemetryAmps  = "battery_a"
)

type port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type INA219 struct {
	currentLSB float64
	dev        port
	log        *zap.Logger
}

func NewI2C(deviceFile string, addr int, log *zap.Logger) (*INA219, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open INA219 at %#x", addr)
	}
	return newINA219(dev, log), nil
}

func newINA219(dev port, log *zap.Logger) *INA219 {
	if log == nil {
		log = zap.NewNop()
	}
	return &INA219{
		dev: dev,
		log: log,
	}
}

func (m *INA219) Configure(shuntOhms float64, maxCurrent float64) error {
	if shuntOhms <= 0 || maxCurrent <= 0 {
		return errors.Errorf("shunt resistance and max current must be positive, got %v ohm %v A", shuntOhms, maxCurrent)
	}
	m.currentLSB = maxCurrent / (1 << 15)
	cval := CalculateCalibrationValue(m.currentLSB, shuntOhms)
	m.log.Debug("INA219 calibration", zap.Int16("value", cval))
	return m.dev.WriteReg(RegCalibration, []byte{byte(cval >> 8), byte(cval)})
}

func (m *INA219) ReadBusVoltage() (float64, error) {
	raw, err := m.read16(RegBusV)
	shifted := raw >> 3
	return float64(shifted) * BusVoltageLSB, err
}

func (m *INA219) ReadCurrent() (float64, error) {
	raw, err := m.read16(RegCurrent)
	return float64(int16(raw)) * m.currentLSB, err
}

func (m *INA219) read16(reg byte) (uint16, error) {
	var buf [2]byte
	err := m.dev.ReadReg(reg, buf[:])
	return uint16(buf[0])<<8 | uint16(buf[1]), err
}

func (m *INA219) Close() error {
	return m.dev.Close()
}

func CalculateCalibrationValue(currentLSB float64, shuntOhms float64) int16 {
	return int16(0.04096 / (currentLSB * shuntOhms))
}

// LoopPublishing reads the monitor every period and publishes the battery
// voltage and current until ctx is done. Read errors are logged and skipped.
func (m *INA219) LoopPublishing(ctx context.Context, period time.Duration, p odometry.Publisher) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishOnce(p)
		}
	}
}

func (m *INA219) publishOnce(p odometry.Publisher) {
	v, err := m.ReadBusVoltage()
	if err != nil {
		m.log.Warn("Failed to read battery voltage", zap.Error(err))
		return
	}
	a, err := m.ReadCurrent()
	if err != nil {
		m.log.Warn("Failed to read battery current", zap.Error(err))
		return
	}
	p.Publish(TelemetryVolts, v)
	p.Publish(TelemetryAmps, a)
}
