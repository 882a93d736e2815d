// Package config loads and normalizes the dev server's Config: decode
// whatever the file provides, then fill in every zero-valued field with a
// sane default rather than requiring a complete file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"vite.dev/core/internal/appdir"
	"vite.dev/core/internal/jsonc"
)

// OptimizeConfig controls the dependency optimizer's include/exclude lists.
type OptimizeConfig struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Config is the dev server's full runtime configuration.
type Config struct {
	Root             string         `json:"root,omitempty"`
	Port             int            `json:"port,omitempty"`
	Host             string         `json:"host,omitempty"`
	Base             string         `json:"base,omitempty"`
	CorsAllowOrigins []string       `json:"corsAllowOrigins,omitempty"`
	Optimize         OptimizeConfig `json:"optimize,omitempty"`
	WatchIgnore      []string       `json:"watchIgnore,omitempty"`
	CacheDir         string         `json:"cacheDir,omitempty"`
	LogLevel         string         `json:"logLevel,omitempty"`
	LogDir           string         `json:"logDir,omitempty"`
	// HMRPort is decoded from the config file but not read by the server:
	// the HMR websocket is always served on Port at /@vite/hmr, and no
	// value of HMRPort moves it to another port or disables HMR.
	HMRPort int `json:"hmrPort,omitempty"`
}

// DefaultConfig returns the configuration used when no config file is
// given, matching server/config.go's Default().
func DefaultConfig() *Config {
	c := &Config{}
	fixConfig(c)
	return c
}

// LoadConfig reads and decodes a JSONC config file at path, then applies
// the same defaulting fixConfig runs over DefaultConfig's zero value.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fail to read config file: %w", err)
	}
	var c Config
	if err := json.Unmarshal(jsonc.StripJSONC(raw), &c); err != nil {
		return nil, fmt.Errorf("fail to parse config file: %w", err)
	}
	fixConfig(&c)
	return &c, nil
}

func fixConfig(c *Config) {
	if c.Root == "" {
		c.Root, _ = os.Getwd()
	}
	if c.Port == 0 {
		c.Port = 5173
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Base == "" {
		c.Base = "/"
	} else if c.Base[0] != '/' {
		c.Base = "/" + c.Base
	}
	if len(c.CorsAllowOrigins) == 0 {
		c.CorsAllowOrigins = []string{"*"}
	}
	if len(c.WatchIgnore) == 0 {
		c.WatchIgnore = []string{"**/node_modules/**", "**/.git/**", "**/dist/**"}
	}
	if c.CacheDir == "" {
		if dir, err := appdir.Get(); err == nil {
			c.CacheDir = filepath.Join(dir, "cache")
		} else {
			c.CacheDir = filepath.Join(os.TempDir(), "vite-devcore-cache")
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.CacheDir, "log")
	}
}
