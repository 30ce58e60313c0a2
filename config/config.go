// Package config loads application configuration from a .env file and the
// environment, layered through Viper.
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	HTTP struct {
		Port         string `mapstructure:"port"`
		RateCapacity int    `mapstructure:"rate_capacity"`
		RateWindowS  int    `mapstructure:"rate_window_seconds"`
	} `mapstructure:"http"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Redis struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"redis"`

	AI struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"ai"`

	Session struct {
		CompanyID      string `mapstructure:"company_id"`
		OpeningBalance string `mapstructure:"opening_balance"`
		UserName       string `mapstructure:"user_name"`
	} `mapstructure:"session"`

	Bills struct {
		DataFile string `mapstructure:"data_file"`
	} `mapstructure:"bills"`
}

var (
	envOnce sync.Once
)

// LoadEnv loads variables from a .env file when one exists. Safe to call more
// than once.
func LoadEnv() {
	envOnce.Do(func() {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return
		}
		if err := godotenv.Load(".env"); err != nil {
			logrus.Warnf("Error loading .env file: %v", err)
		}
	})
}

// Load builds the configuration with defaults, an optional config file and
// environment overrides (PAYMENT_AGENT_ prefix).
func Load() (*Config, error) {
	LoadEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("payment-agent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.payment-agent")

	v.SetEnvPrefix("PAYMENT_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// The OpenAI key is conventionally set without the prefix.
	if v.GetString("ai.api_key") == "" {
		v.Set("ai.api_key", os.Getenv("OPENAI_API_KEY"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.rate_capacity", 20)
	v.SetDefault("http.rate_window_seconds", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("session.company_id", "12.345.678/0001-90")
	v.SetDefault("session.opening_balance", "10000.00")
	v.SetDefault("session.user_name", "Célia")
	v.SetDefault("bills.data_file", "")
}
