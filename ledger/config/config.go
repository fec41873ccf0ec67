// Package config loads CLI settings from a TOML or YAML file, a .env file
// and LEDGER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. LEDGER_FILE.
const EnvPrefix = "LEDGER"

// ErrUnknownFormat is returned for config files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown config format")

// Config holds the CLI settings.
type Config struct {
	File     string `toml:"file" yaml:"file" envconfig:"FILE" validate:"required"`
	Currency string `toml:"currency" yaml:"currency" envconfig:"CURRENCY" validate:"required,max=24"`
	Backup   bool   `toml:"backup" yaml:"backup" envconfig:"BACKUP"`
	Columns  int    `toml:"columns" yaml:"columns" envconfig:"COLUMNS" validate:"gte=12,lte=1000"`
	Debug    bool   `toml:"debug" yaml:"debug" envconfig:"DEBUG"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		File:     "main.beancount",
		Currency: "USD",
		Columns:  80,
	}
}

// Load builds the configuration. An empty path skips the file layer; a .env
// file in the working directory is loaded when present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
