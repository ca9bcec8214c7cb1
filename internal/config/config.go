package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the care-line phone service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	GeminiAPIKey      string
	GeminiEndpoint    string
	GeminiModel       string
	GeminiVoice       string
	SystemInstruction string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TargetNumber     string
	WebhookBaseURL   string

	ReminderInterval   time.Duration
	BridgeBufferFrames int

	DatabaseURL string
	SQLitePath  string
}

const defaultSystemInstruction = "You are a warm, patient phone companion for an elderly person. " +
	"Speak clearly and briefly, one thought at a time. You can manage reminders and contacts, " +
	"look up information about the user, and tell the current time using your tools."

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "careline"),
		AllowAnyOrigin:   false,

		GeminiAPIKey:      stringsTrimSpace("GEMINI_API_KEY"),
		GeminiEndpoint:    envOrDefault("GEMINI_LIVE_ENDPOINT", "wss://generativelanguage.googleapis.com"),
		GeminiModel:       envOrDefault("GEMINI_LIVE_MODEL", "models/gemini-2.5-flash-native-audio-preview-12-2025"),
		GeminiVoice:       envOrDefault("GEMINI_LIVE_VOICE", "Puck"),
		SystemInstruction: envOrDefault("AGENT_SYSTEM_INSTRUCTION", defaultSystemInstruction),

		TwilioAccountSID: stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: stringsTrimSpace("TWILIO_PHONE_NUMBER"),
		TargetNumber:     stringsTrimSpace("TARGET_PHONE_NUMBER"),
		WebhookBaseURL:   stringsTrimSpace("WEBHOOK_BASE_URL"),

		ReminderInterval:   60 * time.Second,
		BridgeBufferFrames: 50,

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),
		SQLitePath:  envOrDefault("SQLITE_PATH", "careline.db"),

		ShutdownTimeout: 15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReminderInterval, err = durationFromEnv("REMINDER_CHECK_INTERVAL", cfg.ReminderInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.BridgeBufferFrames, err = intFromEnv("BRIDGE_BUFFER_FRAMES", cfg.BridgeBufferFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ReminderInterval < time.Second {
		return Config{}, fmt.Errorf("REMINDER_CHECK_INTERVAL must be at least 1s")
	}
	if cfg.BridgeBufferFrames <= 0 {
		return Config{}, fmt.Errorf("BRIDGE_BUFFER_FRAMES must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
