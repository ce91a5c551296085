package hardware

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/bno08x"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/gyro"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/swervemodule"
)

const reopenInterval = time.Second

type openFunc func(bus string, addr int, id odometry.WheelID, ticksPerUnit float64, log *zap.Logger) (wheelModule, error)

func openSwerveModule(bus string, addr int, id odometry.WheelID, ticksPerUnit float64, log *zap.Logger) (wheelModule, error) {
	return swervemodule.Open(bus, addr, id, ticksPerUnit, log)
}

// Hardware talks to the four wheel boards and the configured heading sensor.
// A board that fails to open is treated as having no distance sensor and is
// retried periodically.
type Hardware struct {
	cfg  *config.Config
	log  *zap.Logger
	open openFunc
	now  func() time.Time

	modules  odometry.PerWheel[wheelModule]
	lastOpen odometry.PerWheel[time.Time]
	heading  headingSource
}

var _ Interface = (*Hardware)(nil)

func New(cfg *config.Config, log *zap.Logger) (*Hardware, error) {
	if log == nil {
		log = zap.NewNop()
	}
	heading, err := newHeadingSource(cfg, log)
	if err != nil {
		return nil, err
	}
	h := newHardware(cfg, log, openSwerveModule)
	h.heading = heading
	return h, nil
}

func newHardware(cfg *config.Config, log *zap.Logger, open openFunc) *Hardware {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hardware{
		cfg:  cfg,
		log:  log,
		open: open,
		now:  time.Now,
	}
	for _, w := range odometry.Wheels {
		h.tryOpen(w)
	}
	return h
}

func newHeadingSource(cfg *config.Config, log *zap.Logger) (headingSource, error) {
	switch cfg.Heading.Source {
	case config.HeadingBNO08X:
		return &bnoSource{bno08x.New(cfg.Heading.SerialDevice, log.Named("bno08x"))}, nil
	case config.HeadingGyro:
		g, err := gyro.NewSPI(cfg.Heading.SPIDevice, log.Named("gyro"))
		if err != nil {
			if cfg.FieldCentric {
				return nil, err
			}
			// Robot-frame odometry only shows the heading as telemetry.
			log.Warn("No gyro, running without a heading", zap.Error(err))
			return nil, nil
		}
		return &gyroSource{gyroDevice: g, log: log.Named("gyro"), retry: reopenInterval}, nil
	case config.HeadingNone:
		return nil, nil
	}
	return nil, errors.Errorf("unknown heading source %q", cfg.Heading.Source)
}

func (h *Hardware) tryOpen(w odometry.WheelID) {
	h.lastOpen[w] = h.now()
	addr := h.cfg.WheelAddress(w)
	m, err := h.open(h.cfg.Wheels.Bus, addr, w, h.cfg.Wheels.TicksPerUnit, h.log)
	if err != nil {
		h.log.Warn("Failed to open wheel module", zap.Stringer("wheel", w), zap.Int("addr", addr), zap.Error(err))
		return
	}
	h.modules[w] = m
}

func (h *Hardware) Start(ctx context.Context) error {
	if h.heading == nil {
		<-ctx.Done()
		return nil
	}
	return h.heading.Run(ctx)
}

func (h *Hardware) Poll() {
	for _, w := range odometry.Wheels {
		m := h.modules[w]
		if m == nil {
			if h.now().Sub(h.lastOpen[w]) >= reopenInterval {
				h.tryOpen(w)
			}
			continue
		}
		// Errors are logged by the module on transition.
		_ = m.Poll()
	}
}

func (h *Hardware) Wheels() odometry.PerWheel[odometry.WheelModule] {
	var wheels odometry.PerWheel[odometry.WheelModule]
	for _, w := range odometry.Wheels {
		wheels[w] = moduleOrAbsent{h, w}
	}
	return wheels
}

func (h *Hardware) Heading() odometry.HeadingSensor {
	if h.heading == nil {
		return nil
	}
	return h.heading
}

// ZeroHeading makes the current heading read as 0.
func (h *Hardware) ZeroHeading() {
	if h.heading != nil {
		h.heading.Zero()
	}
}

func (h *Hardware) Shutdown() {
	h.log.Info("Shutting down hardware")
	for _, w := range odometry.Wheels {
		if m := h.modules[w]; m != nil {
			if err := m.Close(); err != nil {
				h.log.Warn("Failed to close wheel module", zap.Stringer("wheel", w), zap.Error(err))
			}
			h.modules[w] = nil
		}
	}
}

// moduleOrAbsent looks the module up on every call so that a board opened
// after start-up is picked up by the engine.
type moduleOrAbsent struct {
	h *Hardware
	w odometry.WheelID
}

func (m moduleOrAbsent) HasDistanceSensor() bool {
	mod := m.h.modules[m.w]
	return mod != nil && mod.HasDistanceSensor()
}

func (m moduleOrAbsent) CumulativeDistance() float64 {
	if mod := m.h.modules[m.w]; mod != nil {
		return mod.CumulativeDistance()
	}
	return 0
}

func (m moduleOrAbsent) SteerSignal() float64 {
	if mod := m.h.modules[m.w]; mod != nil {
		return mod.SteerSignal()
	}
	return 0
}

type bnoSource struct {
	*bno08x.BNO08X
}

// Run reads reports, zeroing the heading on the first one so that the robot
// starts facing 0.
func (b *bnoSource) Run(ctx context.Context) error {
	go func() {
		if err := b.WaitForFirstReport(ctx); err == nil {
			b.Zero()
		}
	}()
	return b.LoopReadingReports(ctx)
}

type gyroDevice interface {
	odometry.HeadingSensor
	Configure() error
	Calibrate(n int) error
	Loop(ctx context.Context) error
	Zero()
}

// gyroSource keeps retrying set-up until it succeeds, so a gyro that is
// slow to come up does not stop the robot.
type gyroSource struct {
	gyroDevice
	log   *zap.Logger
	retry time.Duration
}

const gyroCalibrationSamples = 500

func (g *gyroSource) Run(ctx context.Context) error {
	for {
		err := g.setUp()
		if err == nil {
			break
		}
		g.log.Warn("Gyro set-up failed; will retry", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.retry):
		}
	}
	return g.Loop(ctx)
}

func (g *gyroSource) setUp() error {
	if err := g.Configure(); err != nil {
		return err
	}
	return g.Calibrate(gyroCalibrationSamples)
}
