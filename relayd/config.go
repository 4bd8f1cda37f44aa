package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Listen  string
	Db      string
	Redis   string
	AuthKey string
}

func DefaultConfig() *Config {
	return &Config{
		Listen: ":8090",
	}
}

type fileConfig struct {
	Listen  string `toml:"listen"`
	Db      string `toml:"db"`
	Redis   string `toml:"redis"`
	AuthKey string `toml:"auth_key"`
}

// loadConfig reads a toml config file over the defaults. Unset keys
// keep their defaults.
func loadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load relay config: %w", err)
	}

	if meta.IsDefined("listen") {
		config.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("db") {
		config.Db = strings.TrimSpace(raw.Db)
	}
	if meta.IsDefined("redis") {
		config.Redis = strings.TrimSpace(raw.Redis)
	}
	if meta.IsDefined("auth_key") {
		config.AuthKey = raw.AuthKey
	}
	return config, nil
}
