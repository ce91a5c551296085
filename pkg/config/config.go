package config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

const (
	DefaultPath = "/cfg/swerve.yaml"
	InUsePath   = "/cfg/swerve-in-use.yaml"
)

const (
	HeadingBNO08X = "bno08x"
	HeadingGyro   = "gyro"
	HeadingNone   = "none"
)

type Config struct {
	FieldCentric bool `yaml:"field_centric"`

	Geometry  GeometryConfig  `yaml:"geometry"`
	Steer     SteerConfig     `yaml:"steer"`
	Wheels    WheelsConfig    `yaml:"wheels"`
	Heading   HeadingConfig   `yaml:"heading"`
	Loop      LoopConfig      `yaml:"loop"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Battery   BatteryConfig   `yaml:"battery"`
}

type GeometryConfig struct {
	HalfWidth  float64 `yaml:"half_width"`
	HalfLength float64 `yaml:"half_length"`
	// Keyed by wheel name, e.g. front_left.
	TorqueAngles map[string]float64 `yaml:"torque_angles"`
}

type SteerConfig struct {
	// Steer encoder voltage that corresponds to a full turn.
	FullScaleVolts float64 `yaml:"full_scale_volts"`
}

type WheelsConfig struct {
	Bus          string         `yaml:"bus"`
	Addresses    map[string]int `yaml:"addresses"`
	TicksPerUnit float64        `yaml:"ticks_per_unit"`
}

type HeadingConfig struct {
	Source       string `yaml:"source"`
	SerialDevice string `yaml:"serial_device"`
	SPIDevice    string `yaml:"spi_device"`
}

type LoopConfig struct {
	TickPeriod   time.Duration `yaml:"tick_period"`
	StatusPeriod time.Duration `yaml:"status_period"`
}

type TelemetryConfig struct {
	ScreenDevice   string `yaml:"screen_device"`
	JoystickDevice string `yaml:"joystick_device"`
	SoundsDir      string `yaml:"sounds_dir"`
}

// BatteryConfig describes the INA219 battery monitor. Address 0 disables it.
type BatteryConfig struct {
	Address    int           `yaml:"address"`
	ShuntOhms  float64       `yaml:"shunt_ohms"`
	MaxCurrent float64       `yaml:"max_current"`
	Period     time.Duration `yaml:"period"`
}

func Default() *Config {
	g := chassis.DefaultGeometry()
	torque := map[string]float64{}
	addrs := map[string]int{}
	for _, w := range odometry.Wheels {
		torque[w.String()] = g.TorqueAngle[w]
		addrs[w.String()] = 0x50 + int(w)
	}
	return &Config{
		Geometry: GeometryConfig{
			HalfWidth:    g.HalfWidth,
			HalfLength:   g.HalfLength,
			TorqueAngles: torque,
		},
		Steer: SteerConfig{
			FullScaleVolts: 5,
		},
		Wheels: WheelsConfig{
			Bus:          "/dev/i2c-1",
			Addresses:    addrs,
			TicksPerUnit: 1024,
		},
		Heading: HeadingConfig{
			Source:       HeadingBNO08X,
			SerialDevice: "/dev/ttyAMA0",
			SPIDevice:    "/dev/spidev0.0",
		},
		Loop: LoopConfig{
			TickPeriod:   20 * time.Millisecond,
			StatusPeriod: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ScreenDevice:   "/dev/fb1",
			JoystickDevice: "/dev/input/js0",
			SoundsDir:      "/sounds",
		},
		Battery: BatteryConfig{
			Address:    0x41,
			ShuntOhms:  0.1,
			MaxCurrent: 3.2,
			Period:     time.Second,
		},
	}
}

// Load reads the config at path on top of the defaults, so a partial file
// only overrides what it mentions. A missing file is not an error: the
// defaults are returned with loaded set to false.
func Load(path string) (cfg *Config, loaded bool, err error) {
	cfg = Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, false, errors.Wrapf(err, "bad config %s", path)
	}
	return cfg, true, nil
}

// Parse decodes YAML over cfg and validates the result. Wheel maps are
// merged per key: a file that names one wheel keeps cfg's entries for the
// others.
func Parse(data []byte, cfg *Config) error {
	torque, addrs := cfg.Geometry.TorqueAngles, cfg.Wheels.Addresses
	// Strict mode rejects keys that are already present in a map.
	cfg.Geometry.TorqueAngles, cfg.Wheels.Addresses = nil, nil
	err := yaml.UnmarshalStrict(data, cfg)
	cfg.Geometry.TorqueAngles = mergeMissing(cfg.Geometry.TorqueAngles, torque)
	cfg.Wheels.Addresses = mergeMissing(cfg.Wheels.Addresses, addrs)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func mergeMissing[V any](m, defaults map[string]V) map[string]V {
	if m == nil && defaults != nil {
		m = make(map[string]V, len(defaults))
	}
	for k, v := range defaults {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

// WriteInUse records the effective configuration so it can be checked after
// a run.
func WriteInUse(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := ioutil.WriteFile(path, data, 0666); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Geometry.HalfWidth <= 0 {
		return errors.Errorf("geometry.half_width must be positive, got %v", c.Geometry.HalfWidth)
	}
	if c.Geometry.HalfLength <= 0 {
		return errors.Errorf("geometry.half_length must be positive, got %v", c.Geometry.HalfLength)
	}
	for name := range c.Geometry.TorqueAngles {
		if _, ok := odometry.ParseWheelID(name); !ok {
			return errors.Errorf("geometry.torque_angles: unknown wheel %q", name)
		}
	}
	if c.Steer.FullScaleVolts <= 0 {
		return errors.Errorf("steer.full_scale_volts must be positive, got %v", c.Steer.FullScaleVolts)
	}
	if c.Wheels.TicksPerUnit <= 0 {
		return errors.Errorf("wheels.ticks_per_unit must be positive, got %v", c.Wheels.TicksPerUnit)
	}
	for name := range c.Wheels.Addresses {
		if _, ok := odometry.ParseWheelID(name); !ok {
			return errors.Errorf("wheels.addresses: unknown wheel %q", name)
		}
	}
	for _, w := range odometry.Wheels {
		if _, ok := c.Wheels.Addresses[w.String()]; !ok {
			return errors.Errorf("wheels.addresses: missing address for %v", w)
		}
	}
	switch c.Heading.Source {
	case HeadingBNO08X, HeadingGyro, HeadingNone:
	default:
		return errors.Errorf("heading.source must be one of %s, %s or %s, got %q",
			HeadingBNO08X, HeadingGyro, HeadingNone, c.Heading.Source)
	}
	if c.FieldCentric && c.Heading.Source == HeadingNone {
		return errors.New("field_centric needs a heading source")
	}
	if c.Loop.TickPeriod <= 0 {
		return errors.Errorf("loop.tick_period must be positive, got %v", c.Loop.TickPeriod)
	}
	if c.Battery.Address != 0 {
		if c.Battery.ShuntOhms <= 0 {
			return errors.Errorf("battery.shunt_ohms must be positive, got %v", c.Battery.ShuntOhms)
		}
		if c.Battery.MaxCurrent <= 0 {
			return errors.Errorf("battery.max_current must be positive, got %v", c.Battery.MaxCurrent)
		}
		if c.Battery.Period <= 0 {
			return errors.Errorf("battery.period must be positive, got %v", c.Battery.Period)
		}
	}
	return nil
}

// OdometryGeometry converts the geometry section. Wheels missing from
// torque_angles keep their default angle.
func (c *Config) OdometryGeometry() odometry.Geometry {
	g := odometry.Geometry{
		HalfWidth:   c.Geometry.HalfWidth,
		HalfLength:  c.Geometry.HalfLength,
		TorqueAngle: odometry.DefaultTorqueAngles(),
	}
	for name, a := range c.Geometry.TorqueAngles {
		if w, ok := odometry.ParseWheelID(name); ok {
			g.TorqueAngle[w] = a
		}
	}
	return g
}

func (c *Config) WheelAddress(w odometry.WheelID) int {
	return c.Wheels.Addresses[w.String()]
}
