package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the bot needs at startup. Values come from
// config.yaml with WHITOVER_* environment overrides.
type Config struct {
	BotToken string `mapstructure:"bot_token"`

	CivilianDB string `mapstructure:"civilian_db"`
	BankDB     string `mapstructure:"bank_db"`
	TasksDB    string `mapstructure:"tasks_db"`

	BlacklistFile   string `mapstructure:"blacklist_file"`
	ApplicationsDir string `mapstructure:"applications_dir"`

	FeedSnapshot string        `mapstructure:"feed_snapshot"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	// empty defaults register the keys so env-only values survive Unmarshal
	v.SetDefault("bot_token", "")
	v.SetDefault("feed_snapshot", "")
	v.SetDefault("civilian_db", "civilian.db")
	v.SetDefault("bank_db", "bank.db")
	v.SetDefault("tasks_db", "tasks.db")
	v.SetDefault("blacklist_file", "blacklist.json")
	v.SetDefault("applications_dir", "admin_notifications")
	v.SetDefault("sync_interval", 30*time.Minute)

	v.SetEnvPrefix("WHITOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot_token is required (or WHITOVER_BOT_TOKEN)")
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("sync_interval must be positive, got %s", cfg.SyncInterval)
	}
	return &cfg, nil
}
