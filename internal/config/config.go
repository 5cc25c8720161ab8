package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Client    ClientConfig    `mapstructure:"client"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// TelegramConfig holds the relay's server-side credentials.
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Configured reports whether both credentials are present.
func (t TelegramConfig) Configured() bool {
	return strings.TrimSpace(t.BotToken) != "" && strings.TrimSpace(t.ChatID) != ""
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"` // empty disables rate limiting
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	RPM int `mapstructure:"rpm"` // submissions per client IP per minute
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProxyConfig struct {
	Name     string `mapstructure:"name"`
	Kind     string `mapstructure:"kind"`     // "corsproxy" | "allorigins"
	Encoding string `mapstructure:"encoding"` // "json" | "form"
	BaseURL  string `mapstructure:"base_url"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ClientConfig replaces the page-level BOT_TOKEN / CHAT_ID globals of the
// browser sender. Static credentials are optional; without them only the
// relay is tried.
type ClientConfig struct {
	RelayURL      string        `mapstructure:"relay_url"`
	BotToken      string        `mapstructure:"bot_token"`
	ChatID        string        `mapstructure:"chat_id"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ContactPhones []string      `mapstructure:"contact_phones"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
	Proxies       []ProxyConfig `mapstructure:"proxies"`
}

// HasStaticCredentials reports whether direct and proxy delivery are possible.
func (c ClientConfig) HasStaticCredentials() bool {
	return strings.TrimSpace(c.BotToken) != "" && strings.TrimSpace(c.ChatID) != ""
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CONTACTRELAY_*).
// BOT_TOKEN and CHAT_ID are honoured as well for the relay credentials.
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (CONTACTRELAY_*)
	v.SetEnvPrefix("CONTACTRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("telegram.bot_token", "CONTACTRELAY_TELEGRAM_BOT_TOKEN", "BOT_TOKEN"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("telegram.chat_id", "CONTACTRELAY_TELEGRAM_CHAT_ID", "CHAT_ID"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
