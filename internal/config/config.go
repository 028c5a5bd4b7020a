package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	DBPath   string `env:"CODEROOM_DB_PATH,default=./data/coderoom.db"`

	// Allowed browser origin for CORS and websocket upgrades. "*" allows any.
	FrontendURL string `env:"FRONTEND_URL,default=*"`

	DisconnectGrace time.Duration `env:"DISCONNECT_GRACE,default=7s"`
	EndRoomDelay    time.Duration `env:"END_ROOM_DELAY,default=2s"`

	MessagesPerSecond float64 `env:"MESSAGES_PER_SECOND,default=100"`
	MessageBurst      int     `env:"MESSAGE_BURST,default=200"`

	HistoryRetention     time.Duration `env:"HISTORY_RETENTION,default=720h"`
	HistorySweepInterval time.Duration `env:"HISTORY_SWEEP_INTERVAL,default=1h"`
	HistoryQueueSize     int           `env:"HISTORY_QUEUE_SIZE,default=256"`

	StreamAPIKey    string        `env:"STREAM_API_KEY"`
	StreamAPISecret string        `env:"STREAM_API_SECRET"`
	CallTokenTTL    time.Duration `env:"CALL_TOKEN_TTL,default=24h"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.DisconnectGrace <= 0 {
		errs = append(errs, errors.New("DISCONNECT_GRACE must be positive"))
	}
	if c.EndRoomDelay < 0 {
		errs = append(errs, errors.New("END_ROOM_DELAY must not be negative"))
	}
	if c.MessagesPerSecond <= 0 || c.MessageBurst <= 0 {
		errs = append(errs, errors.New("MESSAGES_PER_SECOND and MESSAGE_BURST must be positive"))
	}
	if c.HistoryRetention <= 0 || c.HistorySweepInterval <= 0 {
		errs = append(errs, errors.New("HISTORY_RETENTION and HISTORY_SWEEP_INTERVAL must be positive"))
	}
	if (c.StreamAPIKey == "") != (c.StreamAPISecret == "") {
		errs = append(errs, errors.New("STREAM_API_KEY and STREAM_API_SECRET must be set together"))
	}
	return errors.Join(errs...)
}

// Load reads a .env file when one exists, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
