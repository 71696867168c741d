// Package config loads run settings for the diamondprice command.
//
// Sources are applied in order, each overriding the previous one:
// built-in defaults, an optional YAML file, an optional .env file, and
// DIAMOND_* environment variables. Command-line flags are applied on top by
// the caller.
package config

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/diamondprice/diamond"
	"github.com/YuminosukeSato/diamondprice/ensemble"
	"github.com/YuminosukeSato/diamondprice/evaluate"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "DIAMOND"

// DefaultEnvFile is read when present. A missing file is not an error.
const DefaultEnvFile = ".env"

// Config represents the complete run configuration
type Config struct {
	LogLevel  string       `yaml:"log_level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Separator string       `yaml:"separator" split_words:"true" validate:"required,separator"`
	Seed      uint64       `yaml:"seed" split_words:"true"`
	TestSize  float64      `yaml:"test_size" split_words:"true" validate:"gt=0,lt=1"`
	Forest    ForestConfig `yaml:"forest" split_words:"true"`
	Plot      PlotConfig   `yaml:"plot" split_words:"true"`
}

// ForestConfig contains random forest parameters
type ForestConfig struct {
	NEstimators     int `yaml:"n_estimators" split_words:"true" validate:"min=1"`
	MaxDepth        int `yaml:"max_depth" split_words:"true" validate:"min=1"`
	MinSamplesSplit int `yaml:"min_samples_split" split_words:"true" validate:"min=2"`
	MinSamplesLeaf  int `yaml:"min_samples_leaf" split_words:"true" validate:"min=1"`
	// NJobs <= 0 uses every CPU
	NJobs int `yaml:"n_jobs" split_words:"true"`
}

// PlotConfig contains the held-out scatter settings. An empty Path disables the plot.
type PlotConfig struct {
	Path     string  `yaml:"path" split_words:"true"`
	FontSize float64 `yaml:"font_size" split_words:"true" validate:"gt=0"`
	Width    float64 `yaml:"width" split_words:"true" validate:"gt=0"`
	Height   float64 `yaml:"height" split_words:"true" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Separator: "\t",
		Seed:      diamond.DefaultSeed,
		TestSize:  diamond.DefaultTestSize,
		Forest: ForestConfig{
			NEstimators:     ensemble.DefaultNEstimators,
			MaxDepth:        ensemble.DefaultMaxDepth,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
		},
		Plot: PlotConfig{
			FontSize: evaluate.DefaultFontSize,
			Width:    evaluate.DefaultWidth,
			Height:   evaluate.DefaultHeight,
		},
	}
}

// Load reads configuration from the OS filesystem. path may be empty.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path, DefaultEnvFile)
}

// LoadFs reads the YAML file at path and the .env file at envFile from fsys,
// then applies DIAMOND_* environment variables and validates the result.
// Empty paths are skipped. A missing envFile is ignored; a missing YAML
// file is an error.
func LoadFs(fsys afero.Fs, path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	if envFile != "" {
		if err := loadEnvFile(fsys, envFile); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "config: environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile sets variables from a dotenv file without overriding ones
// already present in the environment.
func loadEnvFile(fsys afero.Fs, envFile string) error {
	f, err := fsys.Open(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "config: open %s", envFile)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "config: parse %s", envFile)
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return errors.Wrapf(err, "config: set %s", k)
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("separator", func(fl validator.FieldLevel) bool {
		_, err := ParseSeparator(fl.Field().String())
		return err == nil
	})
	// Use YAML tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field constraint. The first violation is returned
// as a ValidationError naming the YAML key path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		param := strings.TrimPrefix(fe.Namespace(), "Config.")
		reason := "failed '" + fe.Tag() + "' check"
		if fe.Param() != "" {
			reason = "failed '" + fe.Tag() + "=" + fe.Param() + "' check"
		}
		return errors.NewValidationError(param, reason, fe.Value())
	}
	return errors.Wrap(err, "config: validate")
}

// ParseSeparator accepts a single character or one of the names "tab",
// "comma", "semicolon", "pipe" and "space". The escape `\t` means tab.
func ParseSeparator(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	case "space":
		return ' ', nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if r != '\n' && r != '\r' && r != '"' && r != utf8.RuneError {
			return r, nil
		}
	}
	return 0, errors.NewValidationError("separator", "must be a single character or tab/comma/semicolon/pipe/space", s)
}

// SeparatorRune returns the parsed separator. Validate guarantees it parses.
func (c *Config) SeparatorRune() rune {
	r, _ := ParseSeparator(c.Separator)
	return r
}

// ForestOptions returns the ensemble options for the forest settings.
func (c *Config) ForestOptions() []ensemble.Option {
	return []ensemble.Option{
		ensemble.WithNEstimators(c.Forest.NEstimators),
		ensemble.WithMaxDepth(c.Forest.MaxDepth),
		ensemble.WithMinSamplesSplit(c.Forest.MinSamplesSplit),
		ensemble.WithMinSamplesLeaf(c.Forest.MinSamplesLeaf),
		ensemble.WithNJobs(c.Forest.NJobs),
	}
}

// ScatterConfig returns the evaluate plot settings.
func (c *Config) ScatterConfig() evaluate.PlotConfig {
	return evaluate.PlotConfig{
		Path:     c.Plot.Path,
		FontSize: c.Plot.FontSize,
		Width:    c.Plot.Width,
		Height:   c.Plot.Height,
	}
}

// DiamondOptions returns the train/predict options for this configuration.
func (c *Config) DiamondOptions() []diamond.Option {
	return []diamond.Option{
		diamond.WithSeparator(c.SeparatorRune()),
		diamond.WithSeed(c.Seed),
		diamond.WithTestSize(c.TestSize),
		diamond.WithForestOptions(c.ForestOptions()...),
		diamond.WithPlot(c.ScatterConfig()),
	}
}
