// Package config resolves the CLI configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Makepad-fr/tada-cloud/internal/auth"
	"github.com/Makepad-fr/tada-cloud/internal/store/rtdb"
)

const (
	UserConfigFile    = "config.toml"
	ProjectConfigFile = "tada.toml"
	DefaultLogLevel   = "info"
	DefaultTheme      = "classic"
)

// Config is the resolved configuration.
type Config struct {
	BaseURL  string `toml:"base_url"`
	Token    string `toml:"token"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	Theme    string `toml:"theme"`

	// Files lists the config files that were applied, in order.
	Files []string `toml:"-"`
}

// Load resolves configuration in priority order:
// 1. Defaults
// 2. User config file (~/.tada/config.toml)
// 3. Project config file (./tada.toml)
// 4. File named by -config
// 5. Environment variables
// 6. CLI flags explicitly set
//
// It parses args with fs and returns the remaining positional args.
func Load(fs *flag.FlagSet, args []string) (*Config, []string, error) {
	if fs == nil {
		fs = flag.NewFlagSet("todo", flag.ContinueOnError)
	}
	var fl Config
	var explicit string
	fs.StringVar(&fl.BaseURL, "url", "", "database base URL")
	fs.StringVar(&fl.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	fs.StringVar(&fl.LogFile, "log-file", "", "log destination (path or stderr)")
	fs.StringVar(&fl.Theme, "theme", "", "output theme: classic|neon|mono")
	fs.StringVar(&explicit, "config", "", "extra TOML config file")
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	if p := findUserConfigFile(); p != "" {
		if err := loadConfigFile(cfg, p); err != nil {
			return nil, nil, fmt.Errorf("loading user config file %s: %w", p, err)
		}
	}
	if p := findProjectConfigFile(); p != "" {
		if err := loadConfigFile(cfg, p); err != nil {
			return nil, nil, fmt.Errorf("loading project config file %s: %w", p, err)
		}
	}
	if explicit != "" {
		if err := loadConfigFile(cfg, expandPath(explicit)); err != nil {
			return nil, nil, fmt.Errorf("loading config file %s: %w", explicit, err)
		}
	}

	loadFromEnv(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.BaseURL = fl.BaseURL
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		case "log-file":
			cfg.LogFile = fl.LogFile
		case "theme":
			cfg.Theme = fl.Theme
		}
	})

	if err := finalizeConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cfg, fs.Args(), nil
}

func setDefaults(cfg *Config) {
	cfg.BaseURL = rtdb.DefaultBaseURL
	cfg.LogLevel = DefaultLogLevel
	cfg.Theme = DefaultTheme
}

// loadConfigFile overlays the keys present in path onto cfg.
func loadConfigFile(cfg *Config, path string) error {
	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	if md.IsDefined("base_url") {
		cfg.BaseURL = file.BaseURL
	}
	if md.IsDefined("token") {
		cfg.Token = file.Token
	}
	if md.IsDefined("log_level") {
		cfg.LogLevel = file.LogLevel
	}
	if md.IsDefined("log_file") {
		cfg.LogFile = file.LogFile
	}
	if md.IsDefined("theme") {
		cfg.Theme = file.Theme
	}
	cfg.Files = append(cfg.Files, path)
	return nil
}

// loadFromEnv overrides config from environment variables. The token env
// var is resolved by package auth.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TADA_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TADA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TADA_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TADA_THEME"); v != "" {
		cfg.Theme = v
	}
}

func finalizeConfig(cfg *Config) error {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return errors.New("base_url is empty")
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", cfg.LogLevel)
	}
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	switch cfg.Theme {
	case "classic", "neon", "mono":
	default:
		return fmt.Errorf("theme %q: want classic, neon or mono", cfg.Theme)
	}
	if cfg.LogFile != "stderr" && cfg.LogFile != "stdout" {
		cfg.LogFile = expandPath(cfg.LogFile)
	}
	return nil
}

func findUserConfigFile() string {
	dir, err := auth.Dir()
	if err != nil {
		return ""
	}
	return existing(filepath.Join(dir, UserConfigFile))
}

func findProjectConfigFile() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return existing(filepath.Join(wd, ProjectConfigFile))
}

func existing(p string) string {
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p
	}
	return ""
}

// expandPath expands a leading ~/ and environment variables.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		return filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
	}
	return expanded
}
