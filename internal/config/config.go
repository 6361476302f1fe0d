package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`

	// SignalPort serves the session registry REST API and the signaling
	// websocket; TicketPort serves the ticket broker.
	SignalPort int `mapstructure:"signal_port"`
	TicketPort int `mapstructure:"ticket_port"`

	// TLSCert/TLSKey apply to both servers; empty means plaintext (the
	// binaries log a warning in that case).
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`

	ReadLimit         int64         `mapstructure:"read_limit"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// ICEURLs is a comma-separated list of stun:/turn(s): urls handed to
	// clients. Empty keeps the built-in STUN default unless DisableSTUN is
	// set, which forces host-only candidates for isolated-LAN demos.
	ICEURLs        string `mapstructure:"ice_urls"`
	TurnUsername   string `mapstructure:"turn_username"`
	TurnCredential string `mapstructure:"turn_credential"`
	DisableSTUN    bool   `mapstructure:"disable_stun"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("assist")
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("signal_port", 8080)
	v.SetDefault("ticket_port", 8081)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("heartbeat_interval", "25s")
	v.SetDefault("ice_urls", "")
	v.SetDefault("disable_stun", false)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// TLSEnabled reports whether a full certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
