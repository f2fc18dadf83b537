package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/monarchdos/cloudsign/pkg/cloudsign"
	"github.com/monarchdos/cloudsign/pkg/logger"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	CloudSign CloudSignConfig `json:"cloudsign"`
	Channels  ChannelsConfig  `json:"channels"`
	Log       LogConfig       `json:"log"`
	mu        sync.RWMutex
}

// CloudSignConfig holds the relay options sent with every command.
type CloudSignConfig struct {
	Key       string `json:"key" env:"CLOUDSIGN_KEY"`
	Master    string `json:"master" env:"CLOUDSIGN_MASTER"`
	ReplyMode string `json:"reply_mode" env:"CLOUDSIGN_REPLY_MODE"`
}

type ChannelsConfig struct {
	OneBot OneBotConfig `json:"onebot"`
}

type OneBotConfig struct {
	Enabled           bool                `json:"enabled" env:"CLOUDSIGN_CHANNELS_ONEBOT_ENABLED"`
	WSUrl             string              `json:"ws_url" env:"CLOUDSIGN_CHANNELS_ONEBOT_WS_URL"`
	AccessToken       string              `json:"access_token" env:"CLOUDSIGN_CHANNELS_ONEBOT_ACCESS_TOKEN"`
	ReconnectInterval int                 `json:"reconnect_interval" env:"CLOUDSIGN_CHANNELS_ONEBOT_RECONNECT_INTERVAL"`
	AllowGroups       FlexibleStringSlice `json:"allow_groups" env:"CLOUDSIGN_CHANNELS_ONEBOT_ALLOW_GROUPS"`
	AllowFrom         FlexibleStringSlice `json:"allow_from" env:"CLOUDSIGN_CHANNELS_ONEBOT_ALLOW_FROM"`
	SendRatePerSecond float64             `json:"send_rate_per_second" env:"CLOUDSIGN_CHANNELS_ONEBOT_SEND_RATE_PER_SECOND"`
	SendBurst         int                 `json:"send_burst" env:"CLOUDSIGN_CHANNELS_ONEBOT_SEND_BURST"`
}

type LogConfig struct {
	Level string `json:"level" env:"CLOUDSIGN_LOG_LEVEL"`
	File  string `json:"file" env:"CLOUDSIGN_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		CloudSign: CloudSignConfig{
			Key:       "null",
			Master:    "",
			ReplyMode: string(cloudsign.ReplyModeQuote),
		},
		Channels: ChannelsConfig{
			OneBot: OneBotConfig{
				Enabled:           false,
				WSUrl:             "ws://127.0.0.1:3001",
				AccessToken:       "",
				ReconnectInterval: 5,
				AllowGroups:       FlexibleStringSlice{},
				AllowFrom:         FlexibleStringSlice{},
				SendRatePerSecond: 0,
				SendBurst:         1,
			},
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := cloudsign.ParseReplyMode(c.CloudSign.ReplyMode); err != nil {
		return fmt.Errorf("cloudsign.reply_mode: %w", err)
	}
	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	if c.Channels.OneBot.SendRatePerSecond < 0 {
		return fmt.Errorf("channels.onebot.send_rate_per_second must not be negative")
	}
	return nil
}

// Options converts the cloudsign section into relay options. Call Validate
// first; an unparsable reply mode falls back to quote.
func (c *Config) Options() cloudsign.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mode, err := cloudsign.ParseReplyMode(c.CloudSign.ReplyMode)
	if err != nil {
		mode = cloudsign.ReplyModeQuote
	}
	return cloudsign.Options{
		Key:       c.CloudSign.Key,
		Master:    c.CloudSign.Master,
		ReplyMode: mode,
	}
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
