package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the whole environment surface of the bot. A .env file is
// honored when present, otherwise plain environment variables win.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`

	Port      int    `env:"PORT" envDefault:"3000"`
	BaseURL   string `env:"WEB_UI_URL"`
	ClientDir string `env:"CLIENT_DIR" envDefault:"client"`

	VoiceChannelID string `env:"VOICE_CHANNEL_ID"`
	// Optional dedicated channel for playback notices; when empty the bot
	// picks a writable text channel in the guild.
	TextChannelID string `env:"TEXT_CHANNEL_ID_FOR_BOT_MESSAGES"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // no .env file is fine

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return cfg, nil
}
