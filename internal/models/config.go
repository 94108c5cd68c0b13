package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Log        LogConfig        `yaml:"log"`
	AI         AIConfig         `yaml:"ai"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider, used when vision/text providers are not set.
	DefaultProvider string `yaml:"default_provider"` // "openai", "gemini", "ollama"
	VisionProvider  string `yaml:"vision_provider"`
	TextProvider    string `yaml:"text_provider"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "llava", "llama3"
}

// ExtractionConfig tunes the strategy chain.
type ExtractionConfig struct {
	Strategies         []string `yaml:"strategies"`
	MaxTextChars       int      `yaml:"max_text_chars"`
	VisionMaxDimension int      `yaml:"vision_max_dimension"`
}

// DatabaseConfig configures the optional PostgreSQL store.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN returns the connection string, or "" when the database is not configured.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" || c.User == "" || c.Name == "" {
		return ""
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, port, c.Name)
}

// StorageConfig configures the optional MinIO upload store.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether enough is configured to connect.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoadConfig reads a YAML config file, applies environment overrides and
// defaults. A missing file is not an error; env and defaults still apply.
func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	config.ApplyDefaults()
	return &config, nil
}

// ApplyEnv overrides config values with environment variables if present.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if port := getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	set(&c.Host, "HOST")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")

	set(&c.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.AI.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&c.AI.OpenAI.Model, "OPENAI_MODEL")
	set(&c.AI.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.AI.Gemini.Model, "GEMINI_MODEL")
	set(&c.AI.Ollama.BaseURL, "OLLAMA_BASE_URL")
	set(&c.AI.Ollama.Model, "OLLAMA_MODEL")
	set(&c.AI.DefaultProvider, "AI_PROVIDER")
	set(&c.AI.VisionProvider, "VISION_PROVIDER")
	set(&c.AI.TextProvider, "TEXT_PROVIDER")
	if v := getenv("AI_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AI.RequestTimeout = d
		}
	}
	if v := getenv("EXTRACTION_STRATEGIES"); v != "" {
		c.Extraction.Strategies = splitList(v)
	}

	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Database.Host, "DB_HOST")
	set(&c.Database.Port, "DB_PORT")
	set(&c.Database.User, "DB_USER")
	set(&c.Database.Password, "DB_PASSWORD")
	set(&c.Database.Name, "DB_NAME")

	set(&c.Storage.Endpoint, "MINIO_ENDPOINT")
	set(&c.Storage.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Storage.SecretKey, "MINIO_SECRET_KEY")
	set(&c.Storage.Bucket, "MINIO_BUCKET")
	if v := getenv("MINIO_USE_SSL"); v != "" {
		c.Storage.UseSSL = v == "true"
	}

	set(&c.Auth.JWTSecret, "JWT_SECRET")
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8081
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = "openai"
	}
	if c.AI.VisionProvider == "" {
		c.AI.VisionProvider = c.AI.DefaultProvider
	}
	if c.AI.TextProvider == "" {
		c.AI.TextProvider = c.AI.DefaultProvider
	}
	if c.AI.RequestTimeout <= 0 {
		c.AI.RequestTimeout = 60 * time.Second
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-1.5-flash"
	}
	if c.AI.Ollama.BaseURL == "" {
		c.AI.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.AI.Ollama.Model == "" {
		c.AI.Ollama.Model = "llava"
	}
	if len(c.Extraction.Strategies) == 0 {
		c.Extraction.Strategies = []string{string(MethodVision), string(MethodTextModel), string(MethodRegex)}
	}
	if c.Extraction.MaxTextChars <= 0 {
		c.Extraction.MaxTextChars = 12000
	}
	if c.Extraction.VisionMaxDimension <= 0 {
		c.Extraction.VisionMaxDimension = 2000
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "invoices"
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
