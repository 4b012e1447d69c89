package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/luma/chatter/session"
)

// Config is read from the environment, after .env.local has been loaded into
// it. Command line flags override it.
type Config struct {
	Host     string `env:"CHAT_HOST,default=127.0.0.1"`
	Port     int    `env:"CHAT_PORT,default=9999"`
	HTTPPort string `env:"CHAT_HTTP_PORT,default=9998"`

	// Motd defaults to session.DefaultMotd.
	Motd string `env:"CHAT_MOTD"`

	HandshakeTimeout time.Duration `env:"CHAT_HANDSHAKE_TIMEOUT,default=5s"`

	// LogFile, when set, receives a copy of the logs and is rotated.
	LogFile string `env:"CHAT_LOG_FILE"`

	DebugHTTP bool `env:"CHAT_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom reads the config from lookuper instead of the process
// environment.
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	if config.Motd == "" {
		config.Motd = session.DefaultMotd
	}

	return &config, nil
}
