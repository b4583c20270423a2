package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrNoEndpoint = errors.New("chat endpoint is required (AZURE_AI_CHAT_ENDPOINT or MODEL_ENDPOINT)")

type Config struct {
	ChatEndpoint    string
	ChatKey         string
	ChatModel       string
	Organization    string // sent as OpenAI-Organization when set
	CompletionsPath string
	StreamingFormat string
	ChatTimeout     time.Duration
	MaxRetries      int
	RateLimit       float64 // requests per second, 0 disables
	MaxIterations   int

	OTLPEndpoint string
	OTLPProtocol string // "grpc", "http/protobuf", "stdout" or "none"
	OTLPInsecure bool
	ServiceName  string

	MetricsAddr string
	LogLevel    string
	Env         string // "dev" or "prod"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := getDuration("CHAT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := getInt("CHAT_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	iterations, err := getInt("CHAT_MAX_ITERATIONS", 10)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getFloat("CHAT_RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}
	insecure, err := getBool("OTEL_EXPORTER_OTLP_INSECURE", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ChatEndpoint:    firstEnv("AZURE_AI_CHAT_ENDPOINT", "MODEL_ENDPOINT"),
		ChatKey:         firstEnv("AZURE_AI_CHAT_KEY", "AZURE_API_KEY"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o"),
		Organization:    os.Getenv("CHAT_ORGANIZATION"),
		CompletionsPath: getEnv("CHAT_COMPLETIONS_PATH", "/v1/chat/completions"),
		StreamingFormat: getEnv("CHAT_STREAMING_FORMAT", "sse"),
		ChatTimeout:     timeout,
		MaxRetries:      retries,
		RateLimit:       rateLimit,
		MaxIterations:   iterations,
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		OTLPProtocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
		OTLPInsecure:    insecure,
		ServiceName:     getEnv("OTEL_SERVICE_NAME", "demo-app"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Env:             getEnv("APP_ENV", "dev"),
	}

	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("CHAT_MAX_ITERATIONS must be positive, got %d", cfg.MaxIterations)
	}

	if cfg.Env == "prod" {
		if cfg.ChatEndpoint == "" {
			return nil, fmt.Errorf("prod: %w", ErrNoEndpoint)
		}
		if cfg.ChatKey == "" {
			return nil, fmt.Errorf("prod: AZURE_AI_CHAT_KEY is required")
		}
	}

	return cfg, nil
}

// ValidateChat reports whether the remote completion service is configured.
func (c *Config) ValidateChat() error {
	if c.ChatEndpoint == "" {
		return ErrNoEndpoint
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
