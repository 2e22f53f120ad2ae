// Package config loads KeyMap settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/RichardoC/keymap/internal/llm"
	"github.com/RichardoC/keymap/internal/router"
)

// DefaultPath is read when neither a flag nor KEYMAP_CONFIG names a file.
const DefaultPath = "keymap.toml"

var ErrMissingAPIKey = errors.New("no API key: set llm.api_key, KEYMAP_API_KEY or GEMINI_API_KEY")

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Chat     ChatConfig     `toml:"chat"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"` // Listen address for serve and the HTTP MCP transport
}

// DatabaseConfig holds project store settings.
type DatabaseConfig struct {
	Path string `toml:"path"` // sqlite file holding projects
}

// LLMConfig holds text generation settings.
type LLMConfig struct {
	BaseURL     string        `toml:"base_url"` // Any OpenAI-compatible endpoint
	Model       string        `toml:"model"`
	APIKey      string        `toml:"api_key"`
	Temperature float64       `toml:"temperature"`
	TopP        float64       `toml:"top_p"`
	TopK        int           `toml:"top_k"`
	MaxTokens   int           `toml:"max_tokens"`
	Timeout     time.Duration `toml:"timeout"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	Style string `toml:"style"` // guided or strict
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	opts := llm.DefaultOptions()
	return &Config{
		Server:   ServerConfig{Addr: ":8100"},
		Database: DatabaseConfig{Path: "keymap.db"},
		LLM: LLMConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-2.0-flash",
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			TopK:        opts.TopK,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
		},
		Chat: ChatConfig{Style: string(router.StyleGuided)},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// An empty path falls back to KEYMAP_CONFIG and then DefaultPath. A missing
// file is not an error unless it was named explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv("KEYMAP_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	// KEYMAP_API_KEY always wins; the provider variables only fill a gap.
	if v := os.Getenv("KEYMAP_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY"} {
		if cfg.LLM.APIKey != "" {
			break
		}
		cfg.LLM.APIKey = os.Getenv(key)
	}
	if v := os.Getenv("KEYMAP_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KEYMAP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate checks the settings needed to talk to the model.
func (cfg *Config) Validate() error {
	if cfg.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, err := router.ParseStyle(cfg.Chat.Style); err != nil {
		return err
	}
	return nil
}

// Options converts the LLM section into generation options.
func (cfg *Config) Options() llm.Options {
	return llm.Options{
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		TopK:        cfg.LLM.TopK,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}
}

// Write encodes cfg as TOML, leaving out the API key.
func (cfg *Config) Write(w io.Writer) error {
	out := *cfg
	out.LLM.APIKey = ""
	return toml.NewEncoder(w).Encode(out)
}
