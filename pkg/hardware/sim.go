package hardware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/swervesim"
)

// Sim drives a simulated drivetrain at a fixed velocity, advancing it on
// every Poll by the time since the previous one.
type Sim struct {
	log   *zap.Logger
	drive *swervesim.Drivetrain
	now   func() time.Time

	lock          sync.Mutex
	vx, vy, omega float64
	lastPoll      time.Time

	useHeadingSensor bool
}

var _ Interface = (*Sim)(nil)

func NewSim(cfg *config.Config, log *zap.Logger) *Sim {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sim{
		log:              log,
		drive:            swervesim.New(cfg.OdometryGeometry(), cfg.Steer.FullScaleVolts),
		now:              time.Now,
		useHeadingSensor: cfg.Heading.Source != config.HeadingNone,
	}
}

// SetVelocity sets the robot-frame velocity (vx right, vy forwards, in units
// per second) and the anti-clockwise turn rate in radians per second.
func (s *Sim) SetVelocity(vx, vy, omega float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.vx, s.vy, s.omega = vx, vy, omega
}

func (s *Sim) Drivetrain() *swervesim.Drivetrain {
	return s.drive
}

func (s *Sim) Start(ctx context.Context) error {
	s.log.Info("Running with simulated hardware")
	<-ctx.Done()
	return nil
}

func (s *Sim) Poll() {
	now := s.now()
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.lastPoll.IsZero() {
		s.drive.Step(s.vx, s.vy, s.omega, now.Sub(s.lastPoll).Seconds())
	}
	s.lastPoll = now
}

func (s *Sim) Wheels() odometry.PerWheel[odometry.WheelModule] {
	return s.drive.Modules()
}

func (s *Sim) Heading() odometry.HeadingSensor {
	if !s.useHeadingSensor {
		return nil
	}
	return s.drive
}

func (s *Sim) Shutdown() {
	s.log.Info("Simulated hardware shut down")
}
