package hardware

import (
	"context"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

// Interface is what the control loop needs from the robot.
type Interface interface {
	// Start runs the background sensor loops until ctx is done.
	Start(ctx context.Context) error

	// Poll refreshes the wheel readings. Call it once per tick, before the
	// odometry engine reads the wheels.
	Poll()

	Wheels() odometry.PerWheel[odometry.WheelModule]
	// Heading returns nil when no heading source is configured.
	Heading() odometry.HeadingSensor

	Shutdown()
}

// wheelModule is a wheel board that needs polling.
type wheelModule interface {
	odometry.WheelModule
	Poll() error
	Close() error
}

// headingSource is a heading sensor with its own read loop.
type headingSource interface {
	odometry.HeadingSensor
	Run(ctx context.Context) error
	Zero()
}
