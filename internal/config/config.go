package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Context    ContextConfig    `yaml:"context"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GenerationConfig selects and tunes the text-generation provider.
type GenerationConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	OpenAIAPIKey string  `yaml:"-"` // env-only, never in YAML
	GeminiAPIKey string  `yaml:"-"` // env-only, never in YAML
}

// APIKey returns the key of the selected provider.
func (g GenerationConfig) APIKey() string {
	if g.Provider == ProviderGemini {
		return g.GeminiAPIKey
	}
	return g.OpenAIAPIKey
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ContextConfig bounds how much history is fetched and rendered.
type ContextConfig struct {
	Limits       LimitsConfig `yaml:"limits"`
	Budgets      BudgetConfig `yaml:"budgets"`
	ReportWindow Duration     `yaml:"report_window"`
	ChatWindow   Duration     `yaml:"chat_window"`
}

// LimitsConfig caps the number of records fetched per entity type.
type LimitsConfig struct {
	Markers      int `yaml:"markers"`
	Snapshots    int `yaml:"snapshots"`
	MicroEntries int `yaml:"micro_entries"`
	Sessions     int `yaml:"sessions"`
	CoachNotes   int `yaml:"coach_notes"`
	AudioMemos   int `yaml:"audio_memos"`
	Files        int `yaml:"files"`
}

func (l LimitsConfig) positive() bool {
	for _, n := range []int{l.Markers, l.Snapshots, l.MicroEntries, l.Sessions, l.CoachNotes, l.AudioMemos, l.Files} {
		if n <= 0 {
			return false
		}
	}
	return true
}

// BudgetConfig caps long free-text fields, in characters.
type BudgetConfig struct {
	Transcript    int `yaml:"transcript"`
	Transcription int `yaml:"transcription"`
}

// ArchiveConfig configures the optional S3-compatible report archive.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only
	SecretKey string `yaml:"-"` // env-only
	UseSSL    *bool  `yaml:"use_ssl"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("COMPASS_CONFIG_PATH", "config/compass.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit config paths.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(120 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/compass.db",
		},
		Generation: GenerationConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o",
			MaxTokens:   2048,
			Temperature: 0.4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Context: ContextConfig{
			Limits: LimitsConfig{
				Markers:      10,
				Snapshots:    3,
				MicroEntries: 30,
				Sessions:     5,
				CoachNotes:   10,
				AudioMemos:   5,
				Files:        10,
			},
			Budgets: BudgetConfig{
				Transcript:    2000,
				Transcription: 1000,
			},
			ReportWindow: Duration(7 * 24 * time.Hour),
			ChatWindow:   Duration(14 * 24 * time.Hour),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("COMPASS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COMPASS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("COMPASS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("COMPASS_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("COMPASS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Generation (OPENAI_API_KEY / GEMINI_API_KEY are provider conventions)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.OpenAIAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Generation.GeminiAPIKey = v
	}
	if v := os.Getenv("COMPASS_GENERATION_PROVIDER"); v != "" {
		cfg.Generation.Provider = v
	}
	if v := os.Getenv("COMPASS_GENERATION_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("COMPASS_GENERATION_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.MaxTokens = n
		}
	}

	// Auth
	if v := os.Getenv("COMPASS_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("COMPASS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("COMPASS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Context
	if v := os.Getenv("COMPASS_TRANSCRIPT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Context.Budgets.Transcript = n
		}
	}
	if v := os.Getenv("COMPASS_TRANSCRIPTION_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Context.Budgets.Transcription = n
		}
	}
	if v := os.Getenv("COMPASS_REPORT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Context.ReportWindow = Duration(d)
		}
	}

	// Archive
	if v := os.Getenv("COMPASS_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("COMPASS_S3_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("COMPASS_S3_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("COMPASS_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("COMPASS_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("COMPASS_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}
}

// validate checks that required configuration values are set.
// In dev mode (COMPASS_DEV_MODE=true), secret validation is skipped.
func (c *Config) validate() error {
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}

	if c.Context.Budgets.Transcript <= 0 || c.Context.Budgets.Transcription <= 0 {
		return errors.New("context budgets must be positive")
	}

	if !c.Context.Limits.positive() {
		return errors.New("context limits must be positive")
	}

	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("archive endpoint is required when archive bucket is set")
	}

	if os.Getenv("COMPASS_DEV_MODE") == "true" {
		return nil
	}

	if c.Generation.APIKey() == "" {
		if c.Generation.Provider == ProviderGemini {
			return errors.New("GEMINI_API_KEY is required")
		}
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("COMPASS_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
