package network

import (
	"time"

	"github.com/nats-io/nats.go"
)

type Config struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	Token          string        `mapstructure:"token"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`

	// Handle is the public name this client registers in the directory.
	Handle          string `mapstructure:"handle"`
	SessionFile     string `mapstructure:"session_file"`
	DirectoryBucket string `mapstructure:"directory_bucket"`
	SubjectPrefix   string `mapstructure:"subject_prefix"`
	BufferSize      int    `mapstructure:"buffer_size"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		Name:            "botping",
		ConnectTimeout:  5 * time.Second,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
		Handle:          "@pingbot",
		SessionFile:     "botping.session",
		DirectoryBucket: "agent-directory",
		SubjectPrefix:   "agents",
		BufferSize:      256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = def.ReconnectWait
	}
	if c.DirectoryBucket == "" {
		c.DirectoryBucket = def.DirectoryBucket
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = def.SubjectPrefix
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

func buildOptions(cfg Config) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}
