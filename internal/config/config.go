// Package config provides environment-based configuration for the voice agent.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process-wide configuration loaded from the environment.
// Provider credentials are passed explicitly into constructors; nothing
// here is read again after startup.
type Config struct {
	// HTTP server
	Port     string
	LogLevel string

	// Provider credentials
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string

	// Dialogue policy selection: "rules" or "llm".
	PolicyKind string

	// Transcriber selection: "whisper", "realtime", or "chain"
	// (realtime with Whisper fallback).
	STTKind string

	// Order storage
	OrdersPath string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:             Getenv("PORT", "8080"),
		LogLevel:         Getenv("LOG_LEVEL", "info"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  os.Getenv("ELEVENLABS_VOICE_ID"),
		PolicyKind:       Getenv("POLICY", "rules"),
		STTKind:          Getenv("STT", "whisper"),
		OrdersPath:       Getenv("ORDERS_PATH", "data/orders.json"),
	}
}

// Getenv returns the value of key, or fallback if unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetenvInt returns the integer value of key, or fallback if unset or invalid.
func GetenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetenvFloat returns the float value of key, or fallback if unset or invalid.
func GetenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetenvDuration returns the duration value of key, or fallback if unset or invalid.
func GetenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
