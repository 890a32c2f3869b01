package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	xdgAppName = "flowdesk"
	configFile = "config.toml"

	// DirEnv overrides the configuration directory.
	DirEnv = "FLOWDESK_CONFIG_DIR"

	DefaultAPIURL       = "http://localhost:3000/api"
	DefaultCalendar     = "Tasks"
	DefaultPollInterval = 30 * time.Second
	DefaultTheme        = "dark"
)

type Config struct {
	APIURL       string   `toml:"api_url"`
	Calendar     string   `toml:"calendar"`
	PollInterval Duration `toml:"poll_interval"`
	Locale       string   `toml:"locale"`
	Theme        string   `toml:"theme"`
	DefaultSort  string   `toml:"default_sort"`
	DefaultOrder string   `toml:"default_order"`
}

// Duration lets intervals be written as "30s" in the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		Calendar:     DefaultCalendar,
		PollInterval: Duration{DefaultPollInterval},
		Theme:        DefaultTheme,
	}
}

// Dir returns the directory holding the config, session and caches.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Calendar == "" {
		c.Calendar = DefaultCalendar
	}
	if c.PollInterval.Duration <= 0 {
		c.PollInterval = Duration{DefaultPollInterval}
	}
	if c.Theme != "light" {
		c.Theme = DefaultTheme
	}
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
