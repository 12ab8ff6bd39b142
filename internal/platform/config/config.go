package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds everything the smsc CLI needs to build a client.
type Config struct {
	Login          string `mapstructure:"LOGIN" validate:"required"`
	Password       string `mapstructure:"PASSWORD" validate:"required"`
	Sender         string `mapstructure:"SENDER"`
	BaseURL        string `mapstructure:"BASE_URL" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"TIMEOUT_SECONDS" validate:"gte=0"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
}

// Load reads smsc.yaml (current directory or ~/.config/smsc) merged with
// SMSC_-prefixed environment variables, applies defaults and validates
// the result. Credentials have no defaults on purpose.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("smsc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/smsc")

	v.AutomaticEnv()
	v.SetEnvPrefix("SMSC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEOUT_SECONDS", 10)
	v.SetDefault("SENDER", "")
	v.SetDefault("BASE_URL", "")

	// Viper only picks environment variables up during Unmarshal when the
	// keys are known, so bind the credential keys explicitly.
	for _, key := range []string{"LOGIN", "PASSWORD", "SENDER", "BASE_URL", "TIMEOUT_SECONDS", "LOG_LEVEL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; environment variables may carry everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
