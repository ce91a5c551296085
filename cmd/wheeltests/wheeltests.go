package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/angle"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/logging"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/swervemodule"
)

var CLI struct {
	Config   string        `help:"Config file." default:"/cfg/swerve.yaml" env:"SWERVE_CONFIG" type:"path"`
	Period   time.Duration `help:"Time between readings." default:"200ms"`
	LogLevel string        `help:"Log level." default:"warn" enum:"debug,info,warn,error"`
}

func main() {
	fmt.Println("Swerve module test program")
	kong.Parse(&CLI)

	log, err := logging.New(CLI.LogLevel)
	if err != nil {
		panic(err)
	}
	cfg, _, err := config.Load(CLI.Config)
	if err != nil {
		panic(err)
	}
	toRadians := swervemodule.VoltageToRadians(cfg.Steer.FullScaleVolts)

	var modules odometry.PerWheel[*swervemodule.Module]
	for _, w := range odometry.Wheels {
		m, err := swervemodule.Open(cfg.Wheels.Bus, cfg.WheelAddress(w), w, cfg.Wheels.TicksPerUnit, log)
		if err != nil {
			fmt.Println("Failed to open", w, err)
			continue
		}
		defer m.Close()
		modules[w] = m
	}
	fmt.Println("Opened modules. Reading...")

	for range time.NewTicker(CLI.Period).C {
		for _, w := range odometry.Wheels {
			m := modules[w]
			if m == nil {
				fmt.Printf("%-12s ----\n", w)
				continue
			}
			if err := m.Poll(); err != nil {
				fmt.Printf("%-12s ERROR %v\n", w, err)
				continue
			}
			steer := toRadians(m.SteerSignal())
			fmt.Printf("%-12s sensor=%-5v dist=%9.4f steer=%5.3fV (%6.1f deg) status=%04x\n",
				w, m.HasDistanceSensor(), m.CumulativeDistance(),
				m.SteerSignal(), angle.Degrees(steer), uint16(m.Status()))
		}
		fmt.Println()
	}
}
