package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gemini-relay/internal/logger"
)

const (
	DefaultSystemInstruction = "Sei un assistente per l'ITSCG Primo Levi. Rispondi in modo conciso e amichevole, fornendo informazioni utili legate alla scuola."

	DefaultPromptTemplate = `Rispondi alla domanda dell'utente usando esclusivamente informazioni pubblicate sul sito {{.Domain}}.
Se sul sito non trovi informazioni pertinenti, dillo con gentilezza e non inventare nulla.

Domanda: {{.Message}}`

	DefaultFallbackText = "Non ho trovato informazioni pertinenti per rispondere alla tua domanda. Prova a riformularla o consulta il sito della scuola."
)

type Config struct {
	// Server
	Port string
	Env  string

	// Cross-origin
	AllowedOrigins []string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiBackend        string
	GeminiBaseURL        string
	GeminiConcurrentReqs int // 0 disables the cap
	ProviderTimeout      time.Duration

	// Prompt policy
	PromptMode        string
	PromptTemplate    string
	GroundingDomain   string
	SystemInstruction string
	EnableSearch      bool
	FallbackText      string

	// Sessions
	SessionStore       string
	RedisURL           string
	SessionIdleTimeout time.Duration
	SessionMaxTurns    int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads the environment (and a .env file when present). A missing
// provider credential is reported as an error so the caller can abort
// before binding its listener.
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	apiKey, err := requireEnv("GEMINI_API_KEY")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "3000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		AllowedOrigins:       getEnvAsListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
		GeminiAPIKey:         apiKey,
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBackend:        getEnvOrDefault("GEMINI_BACKEND", "genai"),
		GeminiBaseURL:        getEnvOrDefault("GEMINI_BASE_URL", ""),
		ProviderTimeout:      getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", 60*time.Second),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 8),
		PromptMode:           getEnvOrDefault("PROMPT_MODE", "session"),
		PromptTemplate:       getEnvOrDefault("PROMPT_TEMPLATE", DefaultPromptTemplate),
		GroundingDomain:      getEnvOrDefault("GROUNDING_DOMAIN", ""),
		SystemInstruction:    getEnvOrDefault("SYSTEM_INSTRUCTION", DefaultSystemInstruction),
		EnableSearch:         getEnvAsBoolOrDefault("ENABLE_SEARCH", false),
		FallbackText:         getEnvOrDefault("FALLBACK_TEXT", DefaultFallbackText),
		SessionStore:         getEnvOrDefault("SESSION_STORE", "memory"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		SessionIdleTimeout:   getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionMaxTurns:      getEnvAsIntOrDefault("SESSION_MAX_TURNS", 40),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "pretty"),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
	}

	if path := os.Getenv("PROMPT_TEMPLATE_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read PROMPT_TEMPLATE_FILE: %w", err)
		}
		cfg.PromptTemplate = string(data)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("LOG_FORMAT: %w", err)
	}

	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.GeminiBackend {
	case "genai", "generativeai":
	default:
		return fmt.Errorf("unknown GEMINI_BACKEND %q", c.GeminiBackend)
	}

	if c.GeminiConcurrentReqs < 0 {
		return errors.New("GEMINI_CONCURRENT_REQUESTS must not be negative")
	}

	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}

	return nil
}

// AllowsAnyOrigin reports whether the cross-origin policy is the open one.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func requireEnv(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return val, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
