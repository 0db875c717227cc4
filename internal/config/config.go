package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds all process configuration, loaded once from the
// environment with the WEBTERM_ prefix and passed into services from main.
type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath     string `envconfig:"DATA_PATH" default:"./data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/webterm.db"`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	AuthDisabled bool   `envconfig:"AUTH_DISABLED" default:"false"`

	// SSHConnectTimeout bounds the connect/handshake phase of a terminal
	// session. Once the shell is open, sessions are long-lived and carry
	// no timeout.
	SSHConnectTimeout time.Duration `envconfig:"SSH_CONNECT_TIMEOUT" default:"20s"`

	// SessionTTL is the lifetime of browser auth sessions.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"1h"`

	// SeedFile is an optional YAML file of connections imported at startup.
	SeedFile string `envconfig:"SEED_FILE" default:""`
}

// Load reads Settings from the environment. Fatal on malformed values.
func Load() Settings {
	var s Settings
	if err := envconfig.Process("WEBTERM", &s); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return s
}
