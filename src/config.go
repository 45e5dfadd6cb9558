package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Read configuration information from a file.
 *
 * Description:	Everything has a default, so the file only needs the
 *		lines that differ.  Command line options override it.
 *
 *		Example:
 *
 *			spi:
 *			  device: /dev/spidev0.0
 *			gpio:
 *			  chip: gpiochip0
 *			  irq: 25
 *			link:
 *			  kind: tcp
 *			  port: 8001
 *			radio:
 *			  baudrate: 9600
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

type SPIConfig struct {
	Device  string `yaml:"device"`
	SpeedHz int64  `yaml:"speed_hz"`
}

// Speed is SpeedHz as a periph frequency.
func (c SPIConfig) Speed() physic.Frequency {
	return physic.Frequency(c.SpeedHz) * physic.Hertz
}

type RadioConfig struct {
	// Frequency is the CFSREG FREQB value.  0 keeps the stored setting.
	Frequency uint16 `yaml:"frequency"`
	// Baudrate in bits per second.  0 keeps the stored setting.
	Baudrate      uint32        `yaml:"baudrate"`
	TransmitRetry time.Duration `yaml:"transmit_retry"`
	AntennaTune   time.Duration `yaml:"antenna_tune"`
	// Mode overrides the stored boot mode when set.
	Mode string `yaml:"mode"`
}

type LinkConfig struct {
	Kind      string `yaml:"kind"` // serial, pty or tcp
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	Port      int    `yaml:"port"`
	DNSSDName string `yaml:"dns_sd_name"`
	Framing   string `yaml:"framing"` // serial or kiss
}

type BridgeConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
}

type Config struct {
	SPI      SPIConfig    `yaml:"spi"`
	GPIO     GPIOConfig   `yaml:"gpio"`
	NVStore  string       `yaml:"nv_store"`
	Radio    RadioConfig  `yaml:"radio"`
	Link     LinkConfig   `yaml:"link"`
	Bridge   BridgeConfig `yaml:"bridge"`
	LogLevel string       `yaml:"log_level"`
}

// DefaultConfig suits a Raspberry Pi with the radio on SPI0 CE0.
func DefaultConfig() Config {
	return Config{
		SPI: SPIConfig{Device: "/dev/spidev0.0", SpeedHz: 2_000_000},
		GPIO: GPIOConfig{
			Chip:       "gpiochip0",
			IRQ:        25,
			ChipSelect: -1,
			Attention:  -1,
			FSEL:       -1,
		},
		NVStore: "/var/lib/mrf49xa/nv.bin",
		Radio: RadioConfig{
			TransmitRetry: DefaultOptions.TransmitRetry,
			AntennaTune:   DefaultOptions.AntennaTune,
		},
		Link: LinkConfig{
			Kind:    "pty",
			Baud:    9600,
			Port:    8001,
			Framing: "serial",
		},
		Bridge: BridgeConfig{
			PollInterval:     DefaultPollInterval,
			WatchdogInterval: time.Second,
		},
		LogLevel: "info",
	}
}

// If search order is changed, update the usage text of the daemon too.
var ConfigSearchLocations = []string{
	"mrf49xa.yaml",
	"/usr/local/etc/mrf49xa.yaml",
	"/etc/mrf49xa.yaml",
}

/*-------------------------------------------------------------------
 *
 * Name:	LoadConfig
 *
 * Purpose:	Read and check a configuration file.
 *
 * Inputs:	path	- File name.  Empty means try ConfigSearchLocations
 *			  and use the defaults if none of them exist.
 *
 *--------------------------------------------------------------------*/

func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else {
		for _, location := range ConfigSearchLocations {
			data, err = os.ReadFile(location)
			if err == nil {
				path = location
				break
			}
		}
		if path == "" {
			logger.Debug("no config file found, using defaults")
			return cfg, cfg.Validate()
		}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	logger.Debug("config loaded", "path", path)

	return cfg, cfg.Validate()
}

// Validate reports every setting that can't work.
func (c Config) Validate() error {
	var errs []error

	if c.SPI.SpeedHz < 0 {
		errs = append(errs, fmt.Errorf("spi.speed_hz %d is negative", c.SPI.SpeedHz))
	}

	if c.Radio.Frequency != 0 && (Command(c.Radio.Frequency) < FREQB_MIN || Command(c.Radio.Frequency) > FREQB_MAX) {
		errs = append(errs, fmt.Errorf("radio.frequency %d outside %d..%d", c.Radio.Frequency, FREQB_MIN, FREQB_MAX))
	}

	if c.Radio.Baudrate != 0 {
		if _, ok := drsValue(c.Radio.Baudrate); !ok {
			errs = append(errs, fmt.Errorf("radio.baudrate %d not possible", c.Radio.Baudrate))
		}
	}

	if c.Radio.Mode != "" {
		if _, err := ParseMode(c.Radio.Mode); err != nil {
			errs = append(errs, fmt.Errorf("radio.mode: %w", err))
		}
	}

	switch c.Link.Kind {
	case "serial":
		if c.Link.Device == "" {
			errs = append(errs, errors.New("link.device required for a serial link"))
		}
	case "pty":
	case "tcp":
		if c.Link.Port < 0 || c.Link.Port > 65535 {
			errs = append(errs, fmt.Errorf("link.port %d out of range", c.Link.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("link.kind %q must be serial, pty or tcp", c.Link.Kind))
	}

	if _, err := ParseFraming(c.Link.Framing); err != nil {
		errs = append(errs, fmt.Errorf("link.framing: %w", err))
	}

	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, errors.New("bridge.poll_interval must be positive"))
	}

	if c.LogLevel != "" {
		if err := checkLogLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Options for NewTransceiver.
func (c Config) Options() Options {
	return Options{
		TransmitRetry: c.Radio.TransmitRetry,
		AntennaTune:   c.Radio.AntennaTune,
	}
}
