package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// Config is the complete runtime configuration of the service and CLI.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	LLM     LLMConfig     `yaml:"llm"`
	Store   StoreConfig   `yaml:"store"`
	YouTube YouTubeConfig `yaml:"youtube"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json logfmt"`
}

// EngineConfig tunes the ranking engine.
type EngineConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int           `yaml:"max_retries" validate:"min=0,max=10"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"min=0"`
	MinItems   int           `yaml:"min_items" validate:"min=1"`
	MaxItems   int           `yaml:"max_items" validate:"min=1,gtefield=MinItems"`

	// MaxConcurrency of zero leaves the fan-out unbounded.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=0"`
}

// LLMConfig selects and tunes the language model backing the analyzers.
type LLMConfig struct {
	Provider          string        `yaml:"provider" validate:"provider"`
	Model             string        `yaml:"model" validate:"required"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"min=0"`
	Burst             int           `yaml:"burst" validate:"min=0"`
	Temperature       float64       `yaml:"temperature" validate:"min=0,max=2"`
}

// StoreConfig enables persistence. An empty DSN disables the store.
type StoreConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=sqlite pgx"`
	DSN           string        `yaml:"dsn"`
	TranscriptTTL time.Duration `yaml:"transcript_ttl" validate:"min=0"`
}

// YouTubeConfig points the fetch source at its endpoints.
type YouTubeConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	OEmbedURL    string        `yaml:"oembed_url" validate:"required,url"`
	TimedTextURL string        `yaml:"timedtext_url" validate:"required,url"`
	Language     string        `yaml:"language" validate:"required"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"min=0"`
}

// Providers accepted by LLMConfig.Provider.
var supportedProviders = []string{"openai", "anthropic", "google"}

// DefaultConfig returns a configuration that runs without a config file.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			MaxRetries: DefaultMaxRetries,
			RetryDelay: DefaultRetryDelay,
			MinItems:   1,
			MaxItems:   5,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			Temperature:       0.3,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			TranscriptTTL: 24 * time.Hour,
		},
		YouTube: YouTubeConfig{
			BaseURL:      "https://www.youtube.com",
			OEmbedURL:    "https://www.youtube.com/oembed",
			TimedTextURL: "https://www.youtube.com/api/timedtext",
			Language:     "en",
			HTTPTimeout:  15 * time.Second,
		},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, ports.NewConfigError("file", err)
		}
		if err := decodeConfig(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeConfig uses strict decoding so a misspelt key fails loudly.
func decodeConfig(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return ports.NewConfigError("yaml", err)
	}
	return nil
}

// Validate checks struct constraints plus the registered provider rule.
func (c Config) Validate() error {
	v := validator.New()
	if err := registerConfigValidators(v); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return ports.NewConfigError(verrs[0].Namespace(), err)
		}
		return ports.NewConfigError("config", err)
	}
	if c.Store.DSN == "" && c.Store.Driver == "pgx" {
		return ports.NewConfigError("Config.Store.DSN", errors.New("pgx driver requires a dsn"))
	}
	return nil
}

// RetryPolicy builds the engine retry policy from the config.
func (c EngineConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: c.MaxRetries, Delay: c.RetryDelay}
}

func registerConfigValidators(v *validator.Validate) error {
	return v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		p := strings.ToLower(fl.Field().String())
		for _, s := range supportedProviders {
			if p == s {
				return true
			}
		}
		return false
	})
}

// applyEnv overrides config values from VIDRANK_* variables. The API key
// additionally falls back to the provider's conventional variable.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"VIDRANK_SERVER_ADDR":  &cfg.Server.Addr,
		"VIDRANK_LOG_LEVEL":    &cfg.Log.Level,
		"VIDRANK_LOG_FORMAT":   &cfg.Log.Format,
		"VIDRANK_LLM_PROVIDER": &cfg.LLM.Provider,
		"VIDRANK_LLM_MODEL":    &cfg.LLM.Model,
		"VIDRANK_LLM_API_KEY":  &cfg.LLM.APIKey,
		"VIDRANK_LLM_BASE_URL": &cfg.LLM.BaseURL,
		"VIDRANK_STORE_DRIVER": &cfg.Store.Driver,
		"VIDRANK_STORE_DSN":    &cfg.Store.DSN,
		"VIDRANK_YOUTUBE_LANG": &cfg.YouTube.Language,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"VIDRANK_ENGINE_MAX_RETRIES":     &cfg.Engine.MaxRetries,
		"VIDRANK_ENGINE_MIN_ITEMS":       &cfg.Engine.MinItems,
		"VIDRANK_ENGINE_MAX_ITEMS":       &cfg.Engine.MaxItems,
		"VIDRANK_ENGINE_MAX_CONCURRENCY": &cfg.Engine.MaxConcurrency,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return ports.NewConfigError(key, err)
		}
		*dst = n
	}

	if v, ok := lookup("VIDRANK_ENGINE_RETRY_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ports.NewConfigError("VIDRANK_ENGINE_RETRY_DELAY", err)
		}
		cfg.Engine.RetryDelay = d
	}

	if cfg.LLM.APIKey == "" {
		providerEnv := map[string]string{
			"openai":    "OPENAI_API_KEY",
			"anthropic": "ANTHROPIC_API_KEY",
			"google":    "GOOGLE_API_KEY",
		}
		if key, ok := providerEnv[strings.ToLower(cfg.LLM.Provider)]; ok {
			if v, ok := lookup(key); ok {
				cfg.LLM.APIKey = v
			}
		}
	}
	return nil
}
