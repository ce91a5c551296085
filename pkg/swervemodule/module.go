package swervemodule

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/io/i2c"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

type Register byte

const (
	RegStatus Register = iota
	RegEncoderCount
	RegSteerMillivolts
)

type StatusFlag uint16

const (
	StatusEncoderPresent StatusFlag = 1 << iota
	StatusSteerOK
	StatusFault
)

const SteerMillivoltLSB = 0.001

type port interface {
	ReadReg(reg byte, buf []byte) error
	Close() error
}

// Module is one swerve module controller board on the I2C bus.
type Module struct {
	ID  odometry.WheelID
	dev port
	log *zap.Logger

	ticksPerUnit float64
	tracker      DistanceTracker

	status     StatusFlag
	steerVolts float64
	pollErr    error
}

var _ odometry.WheelModule = (*Module)(nil)

func Open(bus string, addr int, id odometry.WheelID, ticksPerUnit float64, log *zap.Logger) (*Module, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: bus}, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v module at %#x: %w", id, addr, err)
	}
	return newModule(dev, id, ticksPerUnit, log), nil
}

func newModule(dev port, id odometry.WheelID, ticksPerUnit float64, log *zap.Logger) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		ID:           id,
		dev:          dev,
		log:          log.With(zap.Stringer("wheel", id)),
		ticksPerUnit: ticksPerUnit,
	}
}

// Poll refreshes the cached readings from the board. After a failed poll the
// module reports no distance sensor until a poll succeeds again.
func (m *Module) Poll() error {
	err := m.poll()
	if err != nil && m.pollErr == nil {
		m.log.Warn("Module poll failed", zap.Error(err))
	} else if err == nil && m.pollErr != nil {
		m.log.Info("Module poll recovered")
	}
	m.pollErr = err
	return err
}

func (m *Module) poll() error {
	status, err := m.readReg(RegStatus)
	if err != nil {
		m.tracker.Rebaseline()
		return err
	}
	m.status = StatusFlag(status)

	if m.status&StatusEncoderPresent != 0 {
		raw, err := m.readReg(RegEncoderCount)
		if err != nil {
			m.tracker.Rebaseline()
			return err
		}
		m.tracker.Update(int16(raw))
	} else {
		m.tracker.Rebaseline()
	}

	if m.status&StatusSteerOK != 0 {
		mv, err := m.readReg(RegSteerMillivolts)
		if err != nil {
			return err
		}
		m.steerVolts = float64(mv) * SteerMillivoltLSB
	}
	return nil
}

func (m *Module) HasDistanceSensor() bool {
	return m.pollErr == nil &&
		m.status&StatusEncoderPresent != 0 &&
		m.status&StatusFault == 0
}

func (m *Module) CumulativeDistance() float64 {
	return m.tracker.Distance(m.ticksPerUnit)
}

// SteerSignal returns the last steer encoder reading in volts.
func (m *Module) SteerSignal() float64 {
	return m.steerVolts
}

func (m *Module) Status() StatusFlag {
	return m.status
}

func (m *Module) Close() error {
	return m.dev.Close()
}

func (m *Module) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	err := m.dev.ReadReg(byte(reg), buf[:])
	if err != nil {
		return 0, fmt.Errorf("failed to read register %d: %w", reg, err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// Dummy is a module with fixed readings, for running without the boards.
type Dummy struct {
	Sensor bool
	Dist   float64
	Volts  float64
}

var _ odometry.WheelModule = (*Dummy)(nil)

func (d *Dummy) HasDistanceSensor() bool     { return d.Sensor }
func (d *Dummy) CumulativeDistance() float64 { return d.Dist }
func (d *Dummy) SteerSignal() float64        { return d.Volts }
