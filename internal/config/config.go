// Package config holds daemon settings. Settings come from defaults, an
// optional YAML file and command-line flags, in increasing priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BrokerMDNS as the broker address means discover the broker over mDNS.
const BrokerMDNS = "mdns"

// Display kinds.
const (
	DisplayLog     = "log"
	DisplaySSD1306 = "ssd1306"
)

// Config is the daemon configuration.
type Config struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`

	Debounce           time.Duration `yaml:"debounce"`
	TelemetryInterval  time.Duration `yaml:"telemetry_interval"`
	DisplayLockTimeout time.Duration `yaml:"display_lock_timeout"`
	Heartbeat          time.Duration `yaml:"heartbeat"`

	Chip      string `yaml:"gpio_chip"`
	PinRelay  int    `yaml:"pin_relay"`
	PinButton int    `yaml:"pin_button"`

	// Sensor is the IIO device name of the humidity/temperature sensor.
	Sensor  string `yaml:"sensor"`
	Display string `yaml:"display"`
	I2CBus  string `yaml:"i2c_bus"`

	// Interface restricts the network readiness check to one interface.
	Interface string `yaml:"interface"`
	HTTPAddr  string `yaml:"http"`
	StateDir  string `yaml:"state_dir"`
	Debug     bool   `yaml:"debug"`

	File       string `yaml:"-"`
	PrintState bool   `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Broker:             "tcp://127.0.0.1:1883",
		TopicPrefix:        "cafeteira",
		Debounce:           50 * time.Millisecond,
		TelemetryInterval:  2 * time.Second,
		DisplayLockTimeout: time.Second,
		Heartbeat:          15 * time.Minute,
		Chip:               "gpiochip0",
		PinRelay:           2,
		PinButton:          3,
		Sensor:             "dht11",
		Display:            DisplayLog,
		I2CBus:             "",
		HTTPAddr:           ":80",
		StateDir:           "/var/lib/cafeteira",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.File = path
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("broker must not be empty"))
	}
	if c.TopicPrefix == "" {
		errs = append(errs, errors.New("topic prefix must not be empty"))
	}
	if c.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("debounce must be positive, got %v", c.Debounce))
	}
	if c.TelemetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("telemetry interval must be positive, got %v", c.TelemetryInterval))
	}
	if c.DisplayLockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("display lock timeout must be positive, got %v", c.DisplayLockTimeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.PinRelay == c.PinButton {
		errs = append(errs, fmt.Errorf("relay and button share pin %d", c.PinRelay))
	}
	switch c.Display {
	case DisplayLog, DisplaySSD1306:
	default:
		errs = append(errs, fmt.Errorf("unknown display %q", c.Display))
	}
	return errors.Join(errs...)
}

// Parse builds the configuration from args (without the program name).
// If -config names a file it is loaded first and the flags are applied
// again on top, so only flags given explicitly override the file.
func Parse(name string, args []string) (Config, error) {
	cfg := Default()
	if err := bind(name, &cfg).Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.File == "" {
		return cfg, cfg.Validate()
	}

	loaded, err := Load(cfg.File)
	if err != nil {
		return Config{}, err
	}
	if err := bind(name, &loaded).Parse(args); err != nil {
		return Config{}, err
	}
	return loaded, loaded.Validate()
}

func bind(name string, c *Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.File, "config", c.File, "YAML config file")
	fs.StringVar(&c.Broker, "broker", c.Broker, `MQTT broker address ("mdns" to discover)`)
	fs.StringVar(&c.Username, "username", c.Username, "MQTT username")
	fs.StringVar(&c.Password, "password", c.Password, "MQTT password")
	fs.StringVar(&c.TopicPrefix, "topic-prefix", c.TopicPrefix, "MQTT topic prefix")
	fs.DurationVar(&c.Debounce, "debounce", c.Debounce, "Button debounce window")
	fs.DurationVar(&c.TelemetryInterval, "telemetry", c.TelemetryInterval, "Sensor sampling interval")
	fs.DurationVar(&c.DisplayLockTimeout, "display-timeout", c.DisplayLockTimeout, "Maximum wait for the display")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip")
	fs.IntVar(&c.PinRelay, "pin-relay", c.PinRelay, "BCM pin number for the heater relay")
	fs.IntVar(&c.PinButton, "pin-button", c.PinButton, "BCM pin number for the push button")
	fs.StringVar(&c.Sensor, "sensor", c.Sensor, "IIO device name of the temperature/humidity sensor")
	fs.StringVar(&c.Display, "display", c.Display, `Display kind ("log" or "ssd1306")`)
	fs.StringVar(&c.I2CBus, "i2c", c.I2CBus, "I2C bus for the display (empty for the first bus)")
	fs.StringVar(&c.Interface, "iface", c.Interface, "Network interface to wait for (empty for any)")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&c.StateDir, "state-dir", c.StateDir, "Directory for persisted state")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	fs.BoolVar(&c.PrintState, "print-state", c.PrintState, "Print current state and exit")
	return fs
}
