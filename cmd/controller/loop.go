package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/sound"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/tunable"
)

const (
	enableRetryPeriod = time.Second

	TelemetryRCW     = "rcw"
	TelemetryEnabled = "enabled"
	TelemetryHeading = "heading"
)

type soundPlayer interface {
	Play(name string)
}

// tickLoop owns the engine; every engine call happens on its goroutine.
type tickLoop struct {
	engine   *odometry.Engine
	hw       hardware.Interface
	table    *tunable.Table
	sounds   soundPlayer
	commands <-chan joystick.Command
	log      *zap.Logger

	tickPeriod   time.Duration
	statusPeriod time.Duration

	// wantEnabled is cleared when the operator disables odometry, which
	// stops the enable retries.
	wantEnabled      bool
	lastAttempt      time.Time
	announcedFailure bool
	lastStatus       time.Time
}

func newTickLoop(
	cfg *config.Config,
	engine *odometry.Engine,
	hw hardware.Interface,
	table *tunable.Table,
	sounds soundPlayer,
	commands <-chan joystick.Command,
	log *zap.Logger,
) *tickLoop {
	return &tickLoop{
		engine:       engine,
		hw:           hw,
		table:        table,
		sounds:       sounds,
		commands:     commands,
		log:          log,
		tickPeriod:   cfg.Loop.TickPeriod,
		statusPeriod: cfg.Loop.StatusPeriod,
		wantEnabled:  true,
	}
}

func (l *tickLoop) Run(ctx context.Context) error {
	l.log.Info("Tick loop started", zap.Duration("period", l.tickPeriod))
	ticker := time.NewTicker(l.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Tick loop stopped", zap.Float64("x", l.engine.X()), zap.Float64("y", l.engine.Y()))
			return nil
		case c := <-l.commands:
			l.handleCommand(c, time.Now())
		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

func (l *tickLoop) tick(now time.Time) {
	l.hw.Poll()
	if l.wantEnabled && !l.engine.Enabled() && now.Sub(l.lastAttempt) >= enableRetryPeriod {
		l.tryEnable(now)
	}
	l.engine.Tick()

	l.table.Publish(TelemetryRCW, l.engine.RCW())
	enabled := 0.0
	if l.engine.Enabled() {
		enabled = 1
	}
	l.table.Publish(TelemetryEnabled, enabled)
	if h := l.hw.Heading(); h != nil {
		l.table.Publish(TelemetryHeading, h.YawDegrees())
	}

	if l.statusPeriod > 0 && now.Sub(l.lastStatus) >= l.statusPeriod {
		l.lastStatus = now
		l.log.Info("Odometry status",
			zap.Bool("enabled", l.engine.Enabled()),
			zap.Float64("x", l.engine.X()),
			zap.Float64("y", l.engine.Y()),
			zap.Float64("rcw", l.engine.RCW()),
		)
	}
}

// tryEnable plays the failure sound once per run of failed attempts.
func (l *tickLoop) tryEnable(now time.Time) {
	l.lastAttempt = now
	if err := l.engine.Enable(true); err != nil {
		if !l.announcedFailure {
			l.sounds.Play(sound.PrecheckFail)
			l.announcedFailure = true
		}
		return
	}
	l.announcedFailure = false
	l.sounds.Play(sound.Enabled)
}

func (l *tickLoop) handleCommand(c joystick.Command, now time.Time) {
	l.log.Info("Operator command", zap.Stringer("command", c))
	switch c {
	case joystick.CommandToggleEnabled:
		if l.wantEnabled {
			l.wantEnabled = false
			l.engine.Disable(false)
			return
		}
		l.wantEnabled = true
		l.announcedFailure = false
		l.tryEnable(now)
	case joystick.CommandReset:
		l.engine.Reset()
	case joystick.CommandDisableAndZero:
		l.wantEnabled = false
		l.engine.Disable(true)
	}
}
