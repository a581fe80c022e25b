package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the non-secret server settings. Database credentials come
// from DB_* environment variables via dbconfig.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Session struct {
		// AuthorityToken is the shared credential that marks a caller as
		// the session coordinator on operation routes.
		AuthorityToken string `yaml:"authority_token"`
	} `yaml:"session"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the YAML config file when present, then applies
// environment overrides. A missing file falls back to defaults.
func loadConfig(path string) (*Config, error) {
	var config Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.NATS.URL = getEnv("NATS_URL", defaultString(config.NATS.URL, "nats://localhost:4222"))
	config.Session.AuthorityToken = getEnv("SESSION_AUTHORITY_TOKEN", config.Session.AuthorityToken)

	return &config, nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
