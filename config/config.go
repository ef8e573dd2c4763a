// Package config holds the process-wide settings read once at start-up.
package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash-image-preview"
)

type (
	Gemini struct {
		APIKey  string
		BaseURL string
		Model   string
	}

	Storage struct {
		Type           string
		LocalPath      string
		DataSourceName string
		BucketName     string
	}

	Config struct {
		Gemini    Gemini
		JWTSecret string
		Storage   Storage
	}
)

// Load reads the configuration from the environment. Call it after the .env
// file has been loaded.
func Load() Config {
	cfg := Config{
		Gemini: Gemini{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			BaseURL: getenv("GEMINI_BASE_URL", DefaultGeminiBaseURL),
			Model:   getenv("GEMINI_MODEL", DefaultGeminiModel),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		Storage: Storage{
			Type:           os.Getenv("STORAGE_TYPE"),
			LocalPath:      getenv("LOCAL_STORAGE_PATH", "./data"),
			DataSourceName: getenv("DATA_SOURCE_NAME", "canvas.db"),
			BucketName:     os.Getenv("S3_BUCKET_NAME"),
		},
	}

	if cfg.Gemini.APIKey == "" {
		logrus.Warn("GEMINI_API_KEY is not set. Image generation will be unavailable.")
	}
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set. Session tokens cannot be issued.")
	}
	return cfg
}

// HasCredential reports whether an API key for image generation is configured.
func (c Config) HasCredential() bool { return c.Gemini.APIKey != "" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
