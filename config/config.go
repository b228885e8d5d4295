// Package config loads fitscore settings from an optional file and
// FITSCORE_* environment variables using viper.
package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/stretch"
)

const EnvPrefix = "FITSCORE"

type Config struct {
	Log     LogConfig     `mapstructure:"log" toml:"log" yaml:"log" json:"log"`
	Table   TableConfig   `mapstructure:"table" toml:"table" yaml:"table" json:"table"`
	Analyze AnalyzeConfig `mapstructure:"analyze" toml:"analyze" yaml:"analyze" json:"analyze"`
	Stretch StretchConfig `mapstructure:"stretch" toml:"stretch" yaml:"stretch" json:"stretch"`
	Detect  DetectConfig  `mapstructure:"detect" toml:"detect" yaml:"detect" json:"detect"`
}

type LogConfig struct {
	JSON      bool `mapstructure:"json" toml:"json" yaml:"json" json:"json"`
	Verbosity int  `mapstructure:"verbosity" toml:"verbosity" yaml:"verbosity" json:"verbosity"`
}

type TableConfig struct {
	Strict bool `mapstructure:"strict" toml:"strict" yaml:"strict" json:"strict"`
}

type AnalyzeConfig struct {
	Depth string `mapstructure:"depth" toml:"depth" yaml:"depth" json:"depth"` // brief, normal or details
}

// StretchConfig holds the default stretch. Bounds are written as
// "kind:value", e.g. "percentage:99" or "sigma:-2".
type StretchConfig struct {
	Algorithm            string  `mapstructure:"algorithm" toml:"algorithm" yaml:"algorithm" json:"algorithm"`
	Lower                string  `mapstructure:"lower" toml:"lower" yaml:"lower" json:"lower"`
	Upper                string  `mapstructure:"upper" toml:"upper" yaml:"upper" json:"upper"`
	Gamma                float64 `mapstructure:"gamma" toml:"gamma" yaml:"gamma" json:"gamma"`
	Beta                 float64 `mapstructure:"beta" toml:"beta" yaml:"beta" json:"beta"`
	Bias                 float64 `mapstructure:"bias" toml:"bias" yaml:"bias" json:"bias"`
	Contrast             float64 `mapstructure:"contrast" toml:"contrast" yaml:"contrast" json:"contrast"`
	ZscaleContrast       float64 `mapstructure:"zscale_contrast" toml:"zscale_contrast" yaml:"zscale_contrast" json:"zscale_contrast"`
	ZscaleSamples        int     `mapstructure:"zscale_samples" toml:"zscale_samples" yaml:"zscale_samples" json:"zscale_samples"`
	ZscaleSamplesPerLine int     `mapstructure:"zscale_samples_per_line" toml:"zscale_samples_per_line" yaml:"zscale_samples_per_line" json:"zscale_samples_per_line"`
	Blank                int     `mapstructure:"blank" toml:"blank" yaml:"blank" json:"blank"`
}

type DetectConfig struct {
	SampleBytes int `mapstructure:"sample_bytes" toml:"sample_bytes" yaml:"sample_bytes" json:"sample_bytes"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)

	v.SetDefault("table.strict", false)

	v.SetDefault("analyze.depth", common.Normal.String())

	def := stretch.DefaultRangeValues()
	v.SetDefault("stretch.algorithm", def.Algorithm.String())
	v.SetDefault("stretch.lower", def.Lower.String())
	v.SetDefault("stretch.upper", def.Upper.String())
	v.SetDefault("stretch.gamma", def.Gamma)
	v.SetDefault("stretch.beta", def.Beta)
	v.SetDefault("stretch.bias", def.Bias)
	v.SetDefault("stretch.contrast", def.Contrast)
	v.SetDefault("stretch.zscale_contrast", def.ZscaleContrast)
	v.SetDefault("stretch.zscale_samples", def.ZscaleSamples)
	v.SetDefault("stretch.zscale_samples_per_line", def.ZscaleSamplesPerLine)
	v.SetDefault("stretch.blank", 255)

	v.SetDefault("detect.sample_bytes", 32768)
}

// New returns a viper instance with defaults and FITSCORE_* environment
// binding applied.
func New() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// Load reads the configuration file at path, if any, over the defaults.
// Environment variables take precedence over both.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yml" {
			v.SetConfigType("yaml")
		} else {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the settings held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := common.ParseDepth(c.Analyze.Depth); err != nil {
		return errors.WithHint(err, "analyze.depth must be brief, normal or details")
	}
	if _, err := c.RangeValues(); err != nil {
		return errors.Wrap(err, "invalid stretch section")
	}
	if c.Stretch.Blank < 0 || c.Stretch.Blank > 255 {
		return errors.Formatf("stretch.blank must be a byte value, got %d", c.Stretch.Blank)
	}
	if c.Detect.SampleBytes <= 0 {
		return errors.Formatf("detect.sample_bytes must be positive, got %d", c.Detect.SampleBytes)
	}
	return nil
}

// Depth returns the parsed analyze depth.
func (c *Config) Depth() common.Depth {
	d, _ := common.ParseDepth(c.Analyze.Depth)
	return d
}

// RangeValues converts the stretch section.
func (c *Config) RangeValues() (stretch.RangeValues, error) {
	s := c.Stretch

	algo, err := stretch.ParseAlgorithm(s.Algorithm)
	if err != nil {
		return stretch.RangeValues{}, err
	}
	lower, err := stretch.ParseBound(s.Lower)
	if err != nil {
		return stretch.RangeValues{}, errors.Wrap(err, "stretch.lower")
	}
	upper, err := stretch.ParseBound(s.Upper)
	if err != nil {
		return stretch.RangeValues{}, errors.Wrap(err, "stretch.upper")
	}

	return stretch.NewRangeValues(
		stretch.WithAlgorithm(algo),
		stretch.WithBounds(lower, upper),
		stretch.WithGamma(s.Gamma),
		stretch.WithBeta(s.Beta),
		stretch.WithBiasContrast(s.Bias, s.Contrast),
		stretch.WithZscale(s.ZscaleContrast, s.ZscaleSamples, s.ZscaleSamplesPerLine),
	)
}

// Render marshals cfg as toml, yaml or json.
func Render(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to TOML")
		}
		return data, nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to YAML")
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil
	}
	return nil, errors.Unsupportedf("unknown config format %q", format)
}
