package midirec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NumCCColumns is the number of CC inputs per track on a CC expander.
const NumCCColumns = 5

type (
	// Config is the persisted, non-real-time configuration of a recorder and
	// its CC expanders. The recorder takes a copy at the start of each
	// recording, so edits never race with the audio thread.
	Config struct {
		// Path is the destination file. It may be a text/template using the
		// sprig functions, e.g. `takes/{{ now | date "20060102" }}.mid`.
		Path string `yaml:",omitempty"`

		// AutoIncrement probes base-001.ext, base-002.ext, ... when the
		// destination already exists.
		AutoIncrement bool `yaml:"autoIncrement"`

		// AlignToFirstNote defers tick zero to the first note on.
		AlignToFirstNote bool `yaml:"alignToFirstNote"`

		// Tempo is used when the tempo input is not connected.
		Tempo float64 `yaml:",omitempty"`

		VelocityRange   RangeIndex `yaml:"velocityRange"`
		AftertouchRange RangeIndex `yaml:"aftertouchRange"`
		PitchBendRange  RangeIndex `yaml:"pitchBendRange"`
		ModWheelRange   RangeIndex `yaml:"modWheelRange"`
		ModWheel14Bit   bool       `yaml:"modWheel14Bit,omitempty"`

		CC [NumCCColumns]CCConfig `yaml:"cc,flow"`
	}

	// CCConfig configures one column of a CC expander.
	CCConfig struct {
		CC      int        `yaml:"cc"`
		Is14Bit bool       `yaml:"is14bit,omitempty"`
		Range   RangeIndex `yaml:"range"`
	}
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoPath        = errors.New("no destination path configured")
)

// DefaultCCConfig returns the expander defaults: CC 2 to 6, 7 bit, 0 to 10 V.
func DefaultCCConfig() [NumCCColumns]CCConfig {
	var ret [NumCCColumns]CCConfig
	for i := range ret {
		ret[i] = CCConfig{CC: 2 + i, Range: Range0To10}
	}
	return ret
}

func DefaultConfig() Config {
	return Config{
		AutoIncrement:   true,
		Tempo:           DefaultTempo,
		VelocityRange:   Range0To10,
		AftertouchRange: Range0To10,
		PitchBendRange:  RangeMinus5To5,
		ModWheelRange:   Range0To10,
		CC:              DefaultCCConfig(),
	}
}

// Validate checks the ranges of all fields. An empty Path is valid here: a
// recorder refuses to start without one, but the rest of the configuration
// can still be edited and saved.
func (c *Config) Validate() error {
	if c.Tempo < 0 || c.Tempo > MaxTempo {
		return fmt.Errorf("%w: tempo %v out of range", ErrInvalidConfig, c.Tempo)
	}
	for _, r := range []RangeIndex{c.VelocityRange, c.AftertouchRange, c.PitchBendRange, c.ModWheelRange} {
		if !r.Valid() {
			return fmt.Errorf("%w: CV range %d", ErrInvalidConfig, int(r))
		}
	}
	for i, cc := range c.CC {
		if cc.CC < 0 || cc.CC > MaxController {
			return fmt.Errorf("%w: CC#%d number %d not in 0..127", ErrInvalidConfig, i+1, cc.CC)
		}
		if !cc.Range.Valid() {
			return fmt.Errorf("%w: CC#%d range %d", ErrInvalidConfig, i+1, int(cc.Range))
		}
	}
	return nil
}

// DefaultTempoOrFallback returns Tempo, or DefaultTempo if it was left zero.
func (c *Config) DefaultTempoOrFallback() float64 {
	if c.Tempo <= 0 {
		return DefaultTempo
	}
	return ClampTempo(c.Tempo)
}

// LoadConfig reads a YAML configuration. Fields missing from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %v: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %v: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create config directory %v: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("could not write config %v: %w", path, err)
	}
	return nil
}
