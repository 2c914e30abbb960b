package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Health struct {
		Port int `env:"HEALTH_PORT" envDefault:"8080"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Bot struct {
		Token string `env:"BOT_TOKEN,required"`

		// DevID is the single operator allowed to run admin commands.
		DevID int64 `env:"BOT_DEV_ID,required"`

		// GroupID is the staff group whose forum topics mirror user chats.
		GroupID int64 `env:"BOT_GROUP_ID,required"`

		// EmojiID is the custom emoji used as the forum topic icon.
		EmojiID string `env:"BOT_EMOJI_ID" envDefault:""`

		// StickerID is sent back on /start before the main menu.
		StickerID string `env:"BOT_STICKER_ID" envDefault:""`
	}
}

func Load() (*Config, error) {
	// A missing .env file is fine; in production the variables are set
	// directly in the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
