package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vidrank/internal/ports"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.Equal(t, time.Second, cfg.Engine.RetryDelay)
	assert.Equal(t, 1, cfg.Engine.MinItems)
	assert.Equal(t, 5, cfg.Engine.MaxItems)
	assert.Equal(t, 0, cfg.Engine.MaxConcurrency)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "overrides selected fields",
			yaml: `
engine:
  max_retries: 4
  retry_delay: 250ms
  min_items: 2
  max_concurrency: 8
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, 4, cfg.Engine.MaxRetries)
				assert.Equal(t, 250*time.Millisecond, cfg.Engine.RetryDelay)
				assert.Equal(t, 2, cfg.Engine.MinItems)
				assert.Equal(t, 5, cfg.Engine.MaxItems, "untouched fields keep defaults")
				assert.Equal(t, 8, cfg.Engine.MaxConcurrency)
				assert.Equal(t, "anthropic", cfg.LLM.Provider)
			},
		},
		{
			name: "empty document keeps defaults",
			yaml: "",
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name:    "unknown field rejected",
			yaml:    "engine:\n  max_retires: 3\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "engine: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := decodeConfig(strings.NewReader(tt.yaml), &cfg)
			if tt.wantErr {
				require.Error(t, err)
				var cerr *ports.ConfigError
				assert.ErrorAs(t, err, &cerr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, "Provider"},
		{"min items zero", func(c *Config) { c.Engine.MinItems = 0 }, "MinItems"},
		{"max below min", func(c *Config) { c.Engine.MinItems = 3; c.Engine.MaxItems = 2 }, "MaxItems"},
		{"negative concurrency", func(c *Config) { c.Engine.MaxConcurrency = -1 }, "MaxConcurrency"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "Level"},
		{"bad store driver", func(c *Config) { c.Store.Driver = "mysql" }, "Driver"},
		{"pgx without dsn", func(c *Config) { c.Store.Driver = "pgx" }, "DSN"},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 3 }, "Temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ports.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, cerr.ConfigKey, tt.key)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VIDRANK_LLM_PROVIDER":           "google",
		"VIDRANK_ENGINE_MAX_CONCURRENCY": "3",
		"VIDRANK_ENGINE_RETRY_DELAY":     "10ms",
		"VIDRANK_STORE_DSN":              "file:vidrank.db",
		"GOOGLE_API_KEY":                 "g-key",
		"OPENAI_API_KEY":                 "o-key",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, applyEnv(&cfg, lookup))

	assert.Equal(t, "google", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.RetryDelay)
	assert.Equal(t, "file:vidrank.db", cfg.Store.DSN)
	assert.Equal(t, "g-key", cfg.LLM.APIKey, "key follows the selected provider")

	t.Run("explicit key wins", func(t *testing.T) {
		env["VIDRANK_LLM_API_KEY"] = "explicit"
		defer delete(env, "VIDRANK_LLM_API_KEY")

		cfg := DefaultConfig()
		require.NoError(t, applyEnv(&cfg, lookup))
		assert.Equal(t, "explicit", cfg.LLM.APIKey)
	})

	t.Run("bad integer", func(t *testing.T) {
		bad := func(k string) (string, bool) {
			if k == "VIDRANK_ENGINE_MIN_ITEMS" {
				return "two", true
			}
			return "", false
		}
		cfg := DefaultConfig()
		err := applyEnv(&cfg, bad)
		var cerr *ports.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "VIDRANK_ENGINE_MIN_ITEMS", cerr.ConfigKey)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vidrank.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		var cerr *ports.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "file", cerr.ConfigKey)
	})
}
