package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix marks the environment variables Load reads, e.g. BITTORRENT_DIAL_TIMEOUT.
const EnvPrefix = "BITTORRENT_"

type Config struct {
	LogLevel       string        `mapstructure:"log_level"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	TrackerTimeout time.Duration `mapstructure:"tracker_timeout"`
}

func Default() *Config {
	return &Config{
		LogLevel:       "info",
		DialTimeout:    3 * time.Second,
		TrackerTimeout: 15 * time.Second,
	}
}

// Load overlays BITTORRENT_* variables from environ (as returned by os.Environ) on the
// defaults. Unknown BITTORRENT_* variables are rejected.
func Load(environ []string) (*Config, error) {
	settings := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}
		settings[strings.ToLower(name)] = value
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("invalid configuration: dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if c.TrackerTimeout <= 0 {
		return fmt.Errorf("invalid configuration: tracker_timeout must be positive, got %s", c.TrackerTimeout)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("invalid configuration: log_level: %w", err)
	}
	return level, nil
}
