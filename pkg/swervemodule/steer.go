package swervemodule

import (
	"math"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

// VoltageToRadians returns the conversion for an analog absolute steer
// encoder whose output sweeps 0..fullScaleVolts over one turn.
func VoltageToRadians(fullScaleVolts float64) odometry.SteerConversion {
	return func(v float64) float64 {
		return v / fullScaleVolts * 2 * math.Pi
	}
}

// RadiansToVoltage is the inverse of VoltageToRadians, for simulation.
func RadiansToVoltage(fullScaleVolts float64, rad float64) float64 {
	return rad / (2 * math.Pi) * fullScaleVolts
}
