package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/ina219"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/logging"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/screen"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/sound"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/swervemodule"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/tunable"
)

// Simulated motion: a slow anti-clockwise circle.
const (
	simSpeed    = 0.5
	simTurnRate = 0.2
)

var CLI struct {
	Config       string        `help:"Config file." default:"/cfg/swerve.yaml" env:"SWERVE_CONFIG" type:"path"`
	Sim          bool          `help:"Run against a simulated drivetrain." env:"SWERVE_SIM"`
	FieldCentric bool          `help:"Track position in the field frame, overriding the config file."`
	LogLevel     string        `help:"Log level." default:"info" enum:"debug,info,warn,error"`
	TickPeriod   time.Duration `help:"Control loop period, overriding the config file."`
}

func main() {
	fmt.Println("---- swerve odometry ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	kong.Parse(&CLI,
		kong.Name("controller"),
		kong.Description("Swerve drivetrain odometry controller."),
	)

	log, err := logging.New(CLI.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Error("Controller failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.Logger) error {
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel, log)

	var hw hardware.Interface
	if CLI.Sim {
		sim := hardware.NewSim(cfg, log.Named("sim"))
		sim.SetVelocity(0, simSpeed, simTurnRate)
		hw = sim
	} else {
		hw, err = hardware.New(cfg, log.Named("hw"))
		if err != nil {
			return err
		}
	}
	defer hw.Shutdown()

	table := tunable.NewTable()
	engine, err := buildEngine(cfg, hw, table, log.Named("odometry"))
	if err != nil {
		return err
	}

	player := sound.NewPlayer(cfg.Telemetry.SoundsDir, log.Named("sound"))
	defer player.Close()

	commands := make(chan joystick.Command, 1)
	loop := newTickLoop(cfg, engine, hw, table, player, commands, log.Named("loop"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hw.Start(gctx)
	})
	g.Go(func() error {
		screen.LoopUpdatingScreen(gctx, cfg.Telemetry.ScreenDevice, table, log.Named("screen"))
		return nil
	})
	g.Go(func() error {
		jlog := log.Named("joystick")
		if err := joystick.LoopReadingCommands(gctx, cfg.Telemetry.JoystickDevice, commands, jlog); err != nil {
			// Odometry carries on without the operator.
			jlog.Warn("Joystick failed", zap.Error(err))
		}
		return nil
	})
	if !CLI.Sim && cfg.Battery.Address != 0 {
		g.Go(func() error {
			runBatteryMonitor(gctx, cfg, table, log.Named("battery"))
			return nil
		})
	}
	g.Go(func() error {
		return loop.Run(gctx)
	})

	err = g.Wait()
	log.Info("Shutting down")
	return err
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	cfg, loaded, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if !loaded {
		log.Info("No config file, using defaults", zap.String("path", CLI.Config))
	}
	if CLI.FieldCentric {
		cfg.FieldCentric = true
	}
	if CLI.TickPeriod != 0 {
		cfg.Loop.TickPeriod = CLI.TickPeriod
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config after applying flags")
	}
	if err := config.WriteInUse(config.InUsePath, cfg); err != nil {
		log.Warn("Failed to record config in use", zap.Error(err))
	}
	return cfg, nil
}

func buildEngine(cfg *config.Config, hw hardware.Interface, table *tunable.Table, log *zap.Logger) (*odometry.Engine, error) {
	toRadians := swervemodule.VoltageToRadians(cfg.Steer.FullScaleVolts)
	opts := []odometry.Option{
		odometry.WithPublisher(table),
		odometry.WithLogger(log),
	}
	if cfg.FieldCentric {
		heading := hw.Heading()
		if heading == nil {
			return nil, errors.New("field-centric odometry needs a heading sensor")
		}
		log.Info("Using field-centric odometry")
		return odometry.NewFieldCentric(cfg.OdometryGeometry(), hw.Wheels(), toRadians, heading, opts...), nil
	}
	log.Info("Using robot-frame odometry")
	return odometry.New(cfg.OdometryGeometry(), hw.Wheels(), toRadians, opts...), nil
}

// runBatteryMonitor publishes the battery readings. The robot runs without
// them if the monitor is missing.
func runBatteryMonitor(ctx context.Context, cfg *config.Config, table *tunable.Table, log *zap.Logger) {
	m, err := ina219.NewI2C(cfg.Wheels.Bus, cfg.Battery.Address, log)
	if err != nil {
		log.Warn("No battery monitor", zap.Error(err))
		return
	}
	defer m.Close()
	if err := m.Configure(cfg.Battery.ShuntOhms, cfg.Battery.MaxCurrent); err != nil {
		log.Warn("Failed to configure battery monitor", zap.Error(err))
		return
	}
	m.LoopPublishing(ctx, cfg.Battery.Period, table)
}

func registerSignalHandlers(cancelFunc context.CancelFunc, log *zap.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Info("Signal received", zap.Stringer("signal", s))
		cancelFunc()
		s = <-signals
		log.Warn("Second signal, exiting immediately", zap.Stringer("signal", s))
		os.Exit(1)
	}()
}
