package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/neopixel/neopixel"
)

type SPI struct {
	Port    string `yaml:"port"`     // e.g. /dev/spidev0.0, "" for the first port
	FreqHz  int    `yaml:"freq_hz"`  // e.g. 2400000
	ResetUs int    `yaml:"reset_us"` // e.g. 300
}

type Config struct {
	Driver     string   `yaml:"driver"` // "spi" | "nrzled" | "console" | "sim"
	Pin        string   `yaml:"pin"`
	Pixels     int      `yaml:"pixels"`
	BPP        int      `yaml:"bpp"`
	Order      string   `yaml:"order"`
	Brightness *float64 `yaml:"brightness,omitempty"`
	AutoWrite  *bool    `yaml:"auto_write,omitempty"`
	Listen     string   `yaml:"listen,omitempty"`

	SPI SPI `yaml:"spi,omitempty"`
}

var Drivers = []string{"spi", "nrzled", "console", "sim"}

func Default() *Config {
	brightness := 1.0
	autoWrite := true
	return &Config{
		Driver:     "sim",
		Pin:        "GPIO10",
		Pixels:     30,
		BPP:        3,
		Order:      "GRB",
		Brightness: &brightness,
		AutoWrite:  &autoWrite,
		SPI: SPI{
			FreqHz:  2400000,
			ResetUs: 300,
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse %s", path)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks the values the pixel buffer and drivers depend on.
func (c *Config) Validate() error {
	known := false
	for _, d := range Drivers {
		if c.Driver == d {
			known = true
		}
	}
	if !known {
		return errors.Errorf("unknown driver %q", c.Driver)
	}
	if c.Pixels < 0 {
		return errors.Errorf("invalid pixel count %d", c.Pixels)
	}
	if c.Order == "" && c.BPP != 0 && c.BPP != 3 && c.BPP != 4 {
		return errors.Errorf("bpp must be 3 or 4, got %d", c.BPP)
	}
	if c.Order != "" {
		if _, err := neopixel.ParseOrder(c.Order); err != nil {
			return err
		}
	}
	if c.Brightness != nil && (*c.Brightness < 0 || *c.Brightness > 1) {
		return errors.Errorf("brightness %v outside [0, 1]", *c.Brightness)
	}
	if c.SPI.FreqHz < 0 || c.SPI.ResetUs < 0 {
		return errors.New("spi freq_hz and reset_us must not be negative")
	}
	return nil
}

// Opts converts the strip section into neopixel options.
func (c *Config) Opts() (neopixel.Opts, error) {
	o := neopixel.DefaultOpts
	o.NumPixels = c.Pixels
	if c.BPP != 0 {
		o.BPP = c.BPP
	}
	if c.Order != "" {
		order, err := neopixel.ParseOrder(c.Order)
		if err != nil {
			return o, err
		}
		o.Order = order
	}
	if c.Brightness != nil {
		o.Brightness = *c.Brightness
	}
	if c.AutoWrite != nil {
		o.AutoWrite = *c.AutoWrite
	}
	return o, nil
}
