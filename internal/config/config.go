// Package config loads the machine file that describes a spindle run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where the host binary looks for a machine file.
const DefaultPath = "spindle.yaml"

const (
	defaultCores     = 4
	maxCores         = 8
	defaultStackSize = 8 * bytesize.KB
	minStackSize     = 1 * bytesize.KB
	defaultMaxStacks = 1 << 13
	defaultPreempt   = 10 * time.Millisecond
	defaultWorkload  = "counter"
	defaultHz        = 30
)

var ErrInvalid = errors.New("invalid config")

// Config is a machine file.
type Config struct {
	Cores     int           `yaml:"cores"`
	StackSize StackSize     `yaml:"stack_size"`
	MaxStacks int           `yaml:"max_stacks"`
	Preempt   time.Duration `yaml:"-"`
	Trace     bool          `yaml:"trace"`
	Workload  string        `yaml:"workload"`
	Headless  Headless      `yaml:"headless"`

	// PreemptPeriod is the on-disk form of Preempt, e.g. "10ms" or "off".
	PreemptPeriod string `yaml:"preempt_period"`
}

// Headless configures the no-window runner.
type Headless struct {
	Hz    int    `yaml:"hz"`
	Ticks uint64 `yaml:"ticks"`
}

// StackSize is a byte count written as a human size such as "8KiB".
type StackSize bytesize.ByteSize

func (s StackSize) Bytes() int { return int(s) }

func (s StackSize) String() string { return bytesize.ByteSize(s).String() }

// Set implements flag.Value.
func (s *StackSize) Set(v string) error {
	v = strings.TrimSpace(v)
	if _, err := strconv.ParseUint(v, 10, 64); err == nil {
		v += "B"
	}
	b, err := bytesize.Parse(strings.ReplaceAll(v, "iB", "B"))
	if err != nil {
		return fmt.Errorf("stack size %q: %w", v, err)
	}
	*s = StackSize(b)
	return nil
}

func (s StackSize) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

func (s *StackSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v string
	if err := unmarshal(&v); err != nil {
		return err
	}
	return s.Set(v)
}

// Default returns the configuration used when no machine file exists.
func Default() Config {
	return Config{
		Cores:         defaultCores,
		StackSize:     StackSize(defaultStackSize),
		MaxStacks:     defaultMaxStacks,
		Preempt:       defaultPreempt,
		PreemptPeriod: defaultPreempt.String(),
		Workload:      defaultWorkload,
		Headless:      Headless{Hz: defaultHz},
	}
}

// Load reads path. A missing file yields Default.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a machine file over Default and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as a machine file.
func Marshal(cfg Config) ([]byte, error) {
	if cfg.Preempt > 0 {
		cfg.PreemptPeriod = cfg.Preempt.String()
	} else {
		cfg.PreemptPeriod = "off"
	}
	return yaml.Marshal(cfg)
}

func (c *Config) resolve() error {
	switch p := strings.TrimSpace(c.PreemptPeriod); p {
	case "", "off", "0":
		c.Preempt = 0
	default:
		d, err := time.ParseDuration(p)
		if err != nil {
			return fmt.Errorf("%w: preempt_period: %v", ErrInvalid, err)
		}
		c.Preempt = d
	}
	return nil
}

// SetPreempt parses a preemption period the way the machine file does.
func (c *Config) SetPreempt(v string) error {
	c.PreemptPeriod = v
	return c.resolve()
}

// Validate reports the first setting a machine cannot boot with.
func (c Config) Validate() error {
	switch {
	case c.Cores < 1 || c.Cores > maxCores:
		return fmt.Errorf("%w: cores %d (want 1..%d)", ErrInvalid, c.Cores, maxCores)
	case c.StackSize.Bytes() < int(minStackSize):
		return fmt.Errorf("%w: stack_size %v below %v", ErrInvalid, c.StackSize, minStackSize)
	case c.StackSize.Bytes()%16 != 0:
		return fmt.Errorf("%w: stack_size %v not 16-byte aligned", ErrInvalid, c.StackSize)
	case c.MaxStacks < 1:
		return fmt.Errorf("%w: max_stacks %d", ErrInvalid, c.MaxStacks)
	case c.Preempt < 0:
		return fmt.Errorf("%w: preempt_period %v", ErrInvalid, c.Preempt)
	case strings.TrimSpace(c.Workload) == "":
		return fmt.Errorf("%w: empty workload", ErrInvalid)
	case c.Headless.Hz < 0:
		return fmt.Errorf("%w: headless hz %d", ErrInvalid, c.Headless.Hz)
	}
	return nil
}
