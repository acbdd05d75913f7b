package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/notify-router/internal/notification"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

const (
	KindLog     = "log"
	KindWebhook = "webhook"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	Timeout          string `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	MaxPerDay     int    `mapstructure:"max_per_day"`
	Store         string `mapstructure:"store"`
	RedisAddr     string `mapstructure:"redis_addr"`
	PruneSchedule string `mapstructure:"prune_schedule"`
	Location      string `mapstructure:"location"`
}

type ChannelConfig struct {
	Name       string   `mapstructure:"name"`
	Kind       string   `mapstructure:"kind"`
	Types      []string `mapstructure:"types"`
	URL        string   `mapstructure:"url"`
	Timeout    string   `mapstructure:"timeout"`
	RatePerSec int      `mapstructure:"rate_per_sec"`
	FailEvery  int      `mapstructure:"fail_every"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Channels  []ChannelConfig `mapstructure:"channels"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("rate_limit.max_per_day", 3)
	v.SetDefault("rate_limit.store", StoreMemory)
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.prune_schedule", "@daily")
	v.SetDefault("rate_limit.location", "UTC")
	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("channels", []map[string]any{
		{"name": "email", "kind": KindLog, "types": []string{"EMAIL"}},
		{"name": "sms", "kind": KindLog, "types": []string{"SMS"}},
	})

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// BreakerTimeout returns the parsed breaker timeout. Call after Validate.
func (c *Config) BreakerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.Timeout)
	return d
}

// QuotaLocation returns the time zone that defines a calendar day.
func (c *Config) QuotaLocation() (*time.Location, error) {
	if c.RateLimit.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.RateLimit.Location)
}

// ParsedTypes converts the configured type names. Call after Validate.
func (cc ChannelConfig) ParsedTypes() []notification.ChannelType {
	types := make([]notification.ChannelType, 0, len(cc.Types))
	for _, name := range cc.Types {
		if t, err := notification.ParseChannelType(name); err == nil {
			types = append(types, t)
		}
	}
	return types
}

// TimeoutDuration returns the parsed send timeout, zero when unset.
func (cc ChannelConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(cc.Timeout)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&bc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.RateLimit,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.MaxPerDay,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&rc.Store,
						validation.Required,
						validation.In(StoreMemory, StoreRedis),
					),
					validation.Field(&rc.RedisAddr,
						validation.When(rc.Store == StoreRedis,
							validation.Required,
							validation.By(validateHostPort),
						),
					),
					validation.Field(&rc.Location,
						validation.By(validateLocation),
					),
				)
			}),
		),
		validation.Field(&c.Channels,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateChannelConfig)),
			validation.By(validateUniqueNames),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Min(0)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateLocation(value interface{}) error {
	name, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if name == "" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return validation.NewError("validation_invalid_location", "must be an IANA time zone name")
	}
	return nil
}

func validateWebhookURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateChannelType(value interface{}) error {
	name, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if _, err := notification.ParseChannelType(name); err != nil {
		return validation.NewError("validation_invalid_channel_type", "must be one of EMAIL, SMS, PUSH, WEBHOOK")
	}
	return nil
}

func validateChannelConfig(value interface{}) error {
	ch, ok := value.(ChannelConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ChannelConfig")
	}

	return validation.ValidateStruct(&ch,
		validation.Field(&ch.Name, validation.Required),
		validation.Field(&ch.Kind,
			validation.Required,
			validation.In(KindLog, KindWebhook),
		),
		validation.Field(&ch.Types,
			validation.Required,
			validation.Each(validation.By(validateChannelType)),
		),
		validation.Field(&ch.URL,
			validation.When(ch.Kind == KindWebhook,
				validation.Required,
				validation.By(validateWebhookURL),
			),
		),
		validation.Field(&ch.Timeout,
			validation.When(ch.Timeout != "", validation.By(validateDuration)),
		),
		validation.Field(&ch.RatePerSec, validation.Min(0)),
		validation.Field(&ch.FailEvery, validation.Min(0)),
	)
}

func validateUniqueNames(value interface{}) error {
	channels, ok := value.([]ChannelConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of ChannelConfig")
	}

	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if seen[ch.Name] {
			return validation.NewError("validation_duplicate_channel", fmt.Sprintf("duplicate channel name %q", ch.Name))
		}
		seen[ch.Name] = true
	}
	return nil
}
