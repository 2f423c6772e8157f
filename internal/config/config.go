package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"squeeze/internal/codec"
	apperrors "squeeze/internal/errors"
)

// Progress renderers.
const (
	ProgressTUI  = "tui"
	ProgressBars = "bars"
	ProgressNone = "none"
)

// Search strategies.
const (
	StrategyBest      = "best"
	StrategyLastProbe = "last-probe"
)

// Config represents the run configuration. Values come from Default, then an
// optional YAML file, then command-line flags.
type Config struct {
	Output     string `yaml:"output"`
	Format     string `yaml:"format"`
	Size       string `yaml:"size"`
	Fit        bool   `yaml:"fit"`
	MaxKB      int    `yaml:"max_kb"`
	Zip        string `yaml:"zip"`
	Workers    int    `yaml:"workers"`
	Strategy   string `yaml:"strategy"`
	AutoOrient bool   `yaml:"auto_orient"`
	Progress   string `yaml:"progress"`
	Verbose    bool   `yaml:"verbose"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Output:   "output",
		Format:   "JPG",
		Size:     "1000x1000",
		MaxKB:    50,
		Workers:  runtime.NumCPU(),
		Strategy: StrategyBest,
		Progress: ProgressTUI,
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, apperrors.New(apperrors.KindConfig, "read config", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, apperrors.New(apperrors.KindConfig, "parse config", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.Output == "" {
		return configErr("output directory is required")
	}
	if _, err := codec.ParseFormat(c.Format); err != nil {
		return apperrors.New(apperrors.KindConfig, "format", "", err)
	}
	if _, _, err := ParseDims(c.Size); err != nil {
		return err
	}
	if c.MaxKB <= 0 {
		return configErr("max_kb must be positive")
	}
	if c.Workers < 0 {
		return configErr("workers must not be negative")
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	switch c.Strategy {
	case StrategyBest, StrategyLastProbe:
	default:
		return configErr(fmt.Sprintf("unknown strategy %q", c.Strategy))
	}
	switch c.Progress {
	case ProgressTUI, ProgressBars, ProgressNone:
	default:
		return configErr(fmt.Sprintf("unknown progress renderer %q", c.Progress))
	}
	if strings.ContainsAny(c.Zip, `/\`) {
		return configErr("zip must be a file name, not a path")
	}
	return nil
}

// ParseDims parses "WxH" (case-insensitive separator) into positive ints.
func ParseDims(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, apperrors.New(apperrors.KindConfig, "size", "",
			fmt.Errorf("%w: %q is not WxH", apperrors.ErrInvalidDimensions, s))
	}

	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, apperrors.New(apperrors.KindConfig, "size", "",
			fmt.Errorf("%w: %q", apperrors.ErrInvalidDimensions, s))
	}
	return w, h, nil
}

func configErr(msg string) error {
	return apperrors.New(apperrors.KindConfig, "validate", "", fmt.Errorf("%s", msg))
}
