package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supported vision providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port              int
	StreamURL         string
	CaptureDirectory  string
	LedgerPath        string // empty disables the artifact ledger
	LogDirectory      string
	StaticDirectory   string
	VisionProvider    string
	VisionModel       string
	VisionBaseURL     string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	PromptLanguage    string // "fr" or "en"
	MaxTokens         int
	Annotate          bool
	MarkerRadius      int
	JPEGQuality       int
	WSMaxMessageBytes int64
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is fine: production passes everything through the environment.
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("VISION_PROVIDER", ProviderGemini))

	return &Config{
		Port:              getEnvAsInt("PORT", 8765),
		StreamURL:         getEnv("STREAM_URL", "http://nginx-rtmp:8080/live/camera/index.m3u8"),
		CaptureDirectory:  getEnv("CAPTURE_DIR", "captures"),
		LedgerPath:        getEnv("LEDGER_PATH", filepath.Join(".", "data", "artifacts.db")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory:   getEnv("STATIC_DIR", "static"),
		VisionProvider:    provider,
		VisionModel:       getEnv("VISION_MODEL", defaultModel(provider)),
		VisionBaseURL:     getEnv("VISION_BASE_URL", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		PromptLanguage:    strings.ToLower(getEnv("PROMPT_LANGUAGE", "fr")),
		MaxTokens:         getEnvAsInt("MAX_TOKENS", 1024),
		Annotate:          getEnvAsBool("ANNOTATE", true),
		MarkerRadius:      getEnvAsInt("MARKER_RADIUS", 12),
		JPEGQuality:       getEnvAsInt("JPEG_QUALITY", 90),
		WSMaxMessageBytes: getEnvAsInt64("WS_MAX_MESSAGE_BYTES", 10*1024*1024), // base64 images
	}
}

// Validate reports configuration that prevents the service from starting.
func (c *Config) Validate() error {
	switch c.VisionProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.VisionProvider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.VisionProvider)
		}
	case ProviderOllama:
		// local server, no credential
	default:
		return fmt.Errorf("unknown VISION_PROVIDER %q", c.VisionProvider)
	}

	if c.StreamURL == "" {
		return fmt.Errorf("STREAM_URL must not be empty")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100")
	}
	if c.MarkerRadius < 1 {
		return fmt.Errorf("MARKER_RADIUS must be positive")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOllama:
		return "llava"
	default:
		return "gemini-1.5-flash"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
