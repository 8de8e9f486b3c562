// Package config assembles storefront settings from an optional YAML file, a
// .env file and the process environment, in that order of increasing
// precedence. Command-line flags are applied by the caller last.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the complete storefront configuration.
type File struct {
	goSession.Config `yaml:",inline"`

	Listen    string `yaml:"listen"`
	RedisAddr string `yaml:"redis_addr"`
	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() File {
	return File{
		Config:    goSession.DefaultConfig(),
		Listen:    ":3000",
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// Load reads path (optional) and envFile (optional, missing is not an error),
// then applies environment overrides. Variables already set in the process
// take precedence over the .env file.
func Load(path, envFile string) (File, error) {
	return load(path, envFile, os.LookupEnv)
}

func load(path, envFile string, lookupEnv func(string) (string, bool)) (File, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return File{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return File{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	applyEnv(&cfg, lookup)
	return cfg, nil
}

func applyEnv(cfg *File, lookup func(string) (string, bool)) {
	if v, ok := lookup("API_BASE_URL"); ok && v != "" {
		cfg.Upstream.BaseURL = v
	}
	if isProduction(lookup) {
		cfg.Production = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok && v != "" {
		cfg.Listen = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
}

// APP_ENV wins over NODE_ENV when both are set.
func isProduction(lookup func(string) (string, bool)) bool {
	for _, key := range []string{"APP_ENV", "NODE_ENV"} {
		if v, ok := lookup(key); ok && v != "" {
			return strings.EqualFold(v, "production")
		}
	}
	return false
}
