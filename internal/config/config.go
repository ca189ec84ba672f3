package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Bot     BotConfig     `mapstructure:"bot"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type BotConfig struct {
	GroupToken string   `mapstructure:"group_token"`
	GroupID    int64    `mapstructure:"group_id"`
	APIBaseURL string   `mapstructure:"api_base_url"`
	APIVersion string   `mapstructure:"api_version"`
	DBPath     string   `mapstructure:"db_path"`
	Fields     []string `mapstructure:"fields"`
	PollWait   int      `mapstructure:"poll_wait"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Bot.GroupToken == "" {
		return nil, fmt.Errorf("bot.group_token is required")
	}
	if cfg.Bot.GroupID == 0 {
		return nil, fmt.Errorf("bot.group_id is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Bot
	v.SetDefault("bot.api_base_url", "https://api.vk.com")
	v.SetDefault("bot.api_version", "5.131")
	v.SetDefault("bot.db_path", "./data/selections.db")
	v.SetDefault("bot.fields", []string{"city", "bdate", "sex"})
	v.SetDefault("bot.poll_wait", 25)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Bot
	v.BindEnv("bot.group_token", "VK_GROUP_TOKEN")
	v.BindEnv("bot.group_id", "VK_GROUP_ID")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")
}
