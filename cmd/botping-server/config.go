package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EternisAI/botping/internal/api/http"
	"github.com/EternisAI/botping/internal/db"
	grpcserver "github.com/EternisAI/botping/internal/grpc/server"
	"github.com/EternisAI/botping/internal/network"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Http     http.Config
	Grpc     grpcserver.Config
	Nats     NatsConfig
	Network  NetworkConfig
	Probe    ProbeConfig
	Agents   AgentsConfig
	Auth     AuthConfig
	Database db.Config
}

type NatsConfig struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	Token          string        `mapstructure:"token" json:"-"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password" json:"-"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

type NetworkConfig struct {
	Handle          string `mapstructure:"handle"`
	SessionFile     string `mapstructure:"session_file"`
	DirectoryBucket string `mapstructure:"directory_bucket"`
	SubjectPrefix   string `mapstructure:"subject_prefix"`
	ProbeText       string `mapstructure:"probe_text"`
}

type ProbeConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

type AgentsConfig struct {
	Allowed []string `mapstructure:"allowed"`
	File    string   `mapstructure:"file"`
}

type AuthConfig struct {
	TokenHashes []string `mapstructure:"token_hashes" json:"-"`
	TokensFile  string   `mapstructure:"tokens_file"`
}

var config Config

func (c Config) networkConfig() network.Config {
	return network.Config{
		URL:             c.Nats.URL,
		Name:            c.Nats.Name,
		Token:           c.Nats.Token,
		User:            c.Nats.User,
		Password:        c.Nats.Password,
		ConnectTimeout:  c.Nats.ConnectTimeout,
		ReconnectWait:   c.Nats.ReconnectWait,
		MaxReconnects:   c.Nats.MaxReconnects,
		Handle:          c.Network.Handle,
		SessionFile:     c.Network.SessionFile,
		DirectoryBucket: c.Network.DirectoryBucket,
		SubjectPrefix:   c.Network.SubjectPrefix,
	}
}

func setDefaults() {
	def := network.DefaultConfig()

	viper.SetDefault("log.level", LOG_LEVEL_INFO)
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("grpc.port", 9090)
	viper.SetDefault("nats.url", def.URL)
	viper.SetDefault("nats.name", def.Name)
	viper.SetDefault("nats.connect_timeout", def.ConnectTimeout)
	viper.SetDefault("nats.reconnect_wait", def.ReconnectWait)
	viper.SetDefault("nats.max_reconnects", def.MaxReconnects)
	viper.SetDefault("network.handle", def.Handle)
	viper.SetDefault("network.session_file", def.SessionFile)
	viper.SetDefault("network.directory_bucket", def.DirectoryBucket)
	viper.SetDefault("network.subject_prefix", def.SubjectPrefix)
	viper.SetDefault("network.probe_text", "/start")
	viper.SetDefault("probe.grace_period", 2*time.Second)
	viper.SetDefault("probe.stale_after", 60*time.Second)
	viper.SetDefault("database.schema", "botping")
}

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/botping-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	_ = viper.BindEnv("nats.url", "NATS_URL")
	_ = viper.BindEnv("nats.token", "NATS_TOKEN")
	_ = viper.BindEnv("http.admin_api_key", "ADMIN_API_KEY")
	_ = viper.BindEnv("database.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
