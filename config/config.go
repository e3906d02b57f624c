package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr        string `yaml:"addr"`
	CallTimeout string `yaml:"callTimeout"` // 10s
}

type HTTP struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"readTimeout"`
	WriteTimeout    string `yaml:"writeTimeout"`
	IdleTimeout     string `yaml:"idleTimeout"`
	APITimeout      string `yaml:"apiTimeout"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Chat struct {
	DefaultChannels     []string `yaml:"defaultChannels"`
	MaxMessageLength    int      `yaml:"maxMessageLength"`
	PrivateReadReceipts bool     `yaml:"privateReadReceipts"`
	InboxSize           int      `yaml:"inboxSize"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"` // 0 disables
	Burst int     `yaml:"burst"`
}

type WS struct {
	MaxMessageSize string    `yaml:"maxMessageSize"` // "64 KiB"
	SendBuffer     int       `yaml:"sendBuffer"`
	PingInterval   string    `yaml:"pingInterval"`
	WriteWait      string    `yaml:"writeWait"`
	RateLimit      RateLimit `yaml:"rateLimit"`
}

type Uploads struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"urlPrefix"`
	MaxSize   string `yaml:"maxSize"` // "10 MB"
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	CORS    CORS    `yaml:"cors"`
	Chat    Chat    `yaml:"chat"`
	WS      WS      `yaml:"ws"`
	Uploads Uploads `yaml:"uploads"`
}

// LoadConfig reads .env (if present), then the YAML file named by
// CONFIG_PATH, then applies PORT and CLIENT_URL overrides.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.HTTP.Addr = ":" + port
	}
	if origin := strings.TrimSpace(os.Getenv("CLIENT_URL")); origin != "" {
		c.CORS.AllowedOrigins = []string{origin}
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if _, err := c.UploadMaxSize(); err != nil {
		return err
	}
	if _, err := c.WSMaxMessageSize(); err != nil {
		return err
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.CORS.AllowedOrigins = lo.Compact(lo.Map(c.CORS.AllowedOrigins, func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if len(c.Chat.DefaultChannels) == 0 {
		c.Chat.DefaultChannels = []string{"general", "tech", "random"}
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.InboxSize <= 0 {
		c.Chat.InboxSize = 1024
	}

	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.RateLimit.RPS < 0 {
		return errors.New("ws.rateLimit.rps must not be negative")
	}
	if c.WS.RateLimit.Burst <= 0 {
		c.WS.RateLimit.Burst = 20
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "./uploads"
	}
	if c.Uploads.URLPrefix == "" {
		c.Uploads.URLPrefix = "/uploads"
	}
	return nil
}

func (c *Config) ReadTimeout() time.Duration  { return parseDurationOr(10*time.Second, c.HTTP.ReadTimeout) }
func (c *Config) WriteTimeout() time.Duration { return parseDurationOr(15*time.Second, c.HTTP.WriteTimeout) }
func (c *Config) IdleTimeout() time.Duration  { return parseDurationOr(60*time.Second, c.HTTP.IdleTimeout) }
func (c *Config) APITimeout() time.Duration   { return parseDurationOr(30*time.Second, c.HTTP.APITimeout) }
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDurationOr(10*time.Second, c.HTTP.ShutdownTimeout)
}
func (c *Config) GRPCCallTimeout() time.Duration { return parseDurationOr(10*time.Second, c.GRPC.CallTimeout) }
func (c *Config) PingInterval() time.Duration    { return parseDurationOr(15*time.Second, c.WS.PingInterval) }
func (c *Config) WriteWait() time.Duration       { return parseDurationOr(5*time.Second, c.WS.WriteWait) }

// UploadMaxSize parses uploads.maxSize; empty means 10 MB.
func (c *Config) UploadMaxSize() (int64, error) {
	return parseBytesOr(10*humanize.MByte, c.Uploads.MaxSize, "uploads.maxSize")
}

// WSMaxMessageSize parses ws.maxMessageSize; empty means 64 KiB.
func (c *Config) WSMaxMessageSize() (int64, error) {
	return parseBytesOr(64*humanize.KiByte, c.WS.MaxMessageSize, "ws.maxMessageSize")
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

func parseBytesOr(def int64, s, field string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return int64(n), nil
}
