package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	ServiceName    string        `mapstructure:"service_name" validate:"required"`
	EtcdEndpoints  []string      `mapstructure:"etcd_endpoints" validate:"required,min=1"`
	EtcdTimeout    time.Duration `mapstructure:"etcd_timeout" validate:"gt=0"`
	HttpListenAddr string        `mapstructure:"http_listen_addr" validate:"required"`
	GrpcListenAddr string        `mapstructure:"grpc_listen_addr"`
	RedisURL       string        `mapstructure:"redis_url" validate:"omitempty,url"`
	InstanceTTL    time.Duration `mapstructure:"instance_ttl" validate:"gte=1s"`

	PageSize       int           `mapstructure:"page_size" validate:"gte=1,lte=100"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" validate:"gt=0"`
	RealtimeWindow int           `mapstructure:"realtime_window" validate:"gte=1,lte=500"`

	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout" validate:"gt=0"`
	SessionSweepSpec   string        `mapstructure:"session_sweep_spec" validate:"required,cronspec"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("service_name", "swipework-feed")
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50051")
	v.SetDefault("redis_url", "")
	v.SetDefault("instance_ttl", "10s")
	v.SetDefault("page_size", 12)
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("retry_backoff", "3s")
	v.SetDefault("realtime_window", 50)
	v.SetDefault("session_idle_timeout", "30m")
	v.SetDefault("session_sweep_spec", "@every 1m")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the sweep schedule.
func (c *Config) Validate() error {
	validate := validator.New()
	_ = validate.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
