// Package config loads engine settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// a .env file, then the process environment. The result is validated before
// it is returned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devqa/devqa.go/pkg/constants"
)

// Environment variables read by [Load].
const (
	EnvStoreURL   = "DEVQA_STORE_URL"
	EnvAPIKey     = "DEVQA_API_KEY"
	EnvPageSize   = "DEVQA_PAGE_SIZE"
	EnvLogLevel   = "DEVQA_LOG_LEVEL"
	EnvBridgeAddr = "DEVQA_BRIDGE_ADDR"
	EnvRateLimit  = "DEVQA_RATE_LIMIT"
)

// DefaultEnvFile is the dotenv file [Load] reads when it exists.
const DefaultEnvFile = ".env"

type Tables struct {
	Questions string `yaml:"questions" validate:"required"`
	Answers   string `yaml:"answers" validate:"required"`
	Votes     string `yaml:"votes" validate:"required"`
	Users     string `yaml:"users" validate:"required"`
	Badges    string `yaml:"badges" validate:"required"`
}

type Config struct {
	StoreURL string `yaml:"store_url" validate:"required,url"`
	APIKey   string `yaml:"api_key" validate:"required"`
	Tables   Tables `yaml:"tables"`

	PageSize          int           `yaml:"page_size" validate:"min=1,max=100"`
	SearchQuietPeriod time.Duration `yaml:"search_quiet_period" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" validate:"gt=0"`
	XPPerLevel        int           `yaml:"xp_per_level" validate:"min=1"`
	NotificationTTL   time.Duration `yaml:"notification_ttl" validate:"gt=0"`
	Workers           int           `yaml:"workers" validate:"min=1"`

	BridgeAddr string `yaml:"bridge_addr" validate:"omitempty,hostname_port"`
	LogLevel   string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

func Default() Config {
	return Config{
		Tables: Tables{
			Questions: constants.TableQuestions,
			Answers:   constants.TableAnswers,
			Votes:     constants.TableVotes,
			Users:     constants.TableUsers,
			Badges:    constants.TableBadges,
		},
		PageSize:          constants.DefaultPageSize,
		SearchQuietPeriod: constants.DefaultSearchQuietPeriod,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		HTTPTimeout:       constants.DefaultHTTPTimeout,
		XPPerLevel:        constants.DefaultXPPerLevel,
		NotificationTTL:   constants.DefaultNotificationTTL,
		Workers:           4,
		BridgeAddr:        "127.0.0.1:8088",
		LogLevel:          "info",
	}
}

// Load reads path (skipped when empty), the .env file in the working
// directory and the environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, DefaultEnvFile, os.LookupEnv)
}

// LoadWith is [Load] with an explicit dotenv file and environment lookup.
// Values from lookup win over the dotenv file.
func LoadWith(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	if v, ok := get(EnvStoreURL); ok {
		c.StoreURL = v
	}
	if v, ok := get(EnvAPIKey); ok {
		c.APIKey = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvBridgeAddr); ok {
		c.BridgeAddr = v
	}
	if v, ok := get(EnvPageSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", constants.ErrInvalidInput, EnvPageSize, v)
		}
		c.PageSize = n
	}
	if v, ok := get(EnvRateLimit); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", constants.ErrInvalidInput, EnvRateLimit, v)
		}
		c.RequestsPerSecond = f
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", constants.ErrInvalidInput, err)
	}
	return nil
}
