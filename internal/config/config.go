// Package config loads and watches the Vowrite configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/paths"
)

// Provider identifies a remote API vendor. All of them speak the
// OpenAI-compatible wire protocol; only the base URL and default models differ.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGroq       Provider = "groq"
	ProviderTogether   Provider = "together"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderCustom     Provider = "custom"
)

// DefaultBaseURL returns the provider's default API base URL.
func (p Provider) DefaultBaseURL() string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderGroq:
		return "https://api.groq.com/openai/v1"
	case ProviderTogether:
		return "https://api.together.xyz/v1"
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1"
	default:
		return ""
	}
}

// DefaultSTTModel returns the provider's default transcription model.
func (p Provider) DefaultSTTModel() string {
	switch p {
	case ProviderOpenRouter:
		return "openai/whisper-large-v3"
	case ProviderGroq:
		return "whisper-large-v3-turbo"
	case ProviderTogether:
		return "whisper-large-v3"
	default:
		return "whisper-1"
	}
}

// DefaultPolishModel returns the provider's default polish model.
func (p Provider) DefaultPolishModel() string {
	switch p {
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	case ProviderGroq:
		return "llama-3.1-8b-instant"
	case ProviderTogether:
		return "meta-llama/Llama-3.1-8B-Instruct-Turbo"
	case ProviderDeepSeek:
		return "deepseek-chat"
	default:
		return "gpt-4o-mini"
	}
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderOpenRouter, ProviderGroq, ProviderTogether, ProviderDeepSeek, ProviderCustom:
		return true
	}
	return false
}

// Config is the merged Vowrite configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Prompt    PromptConfig    `toml:"prompt"`
	Injection InjectionConfig `toml:"injection"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig holds the provider settings consumed by both network clients.
type APIConfig struct {
	Provider    Provider `toml:"provider"`
	BaseURL     string   `toml:"baseUrl"`
	STTModel    string   `toml:"sttModel"`
	PolishModel string   `toml:"polishModel"`
	APIKey      string   `toml:"apiKey"`
}

// PromptConfig holds the polish prompt customization.
type PromptConfig struct {
	SystemPrompt string `toml:"systemPrompt"` // empty = built-in default
	UserPrompt   string `toml:"userPrompt"`   // appended as a preference block
	Scene        string `toml:"scene"`        // scene profile id, "none" disables
}

// InjectionConfig tunes the text injection handshake delays.
type InjectionConfig struct {
	SettleDelayMS   int  `toml:"settleDelayMs"`   // focus restoration settle
	RestoreDelayMS  int  `toml:"restoreDelayMs"`  // clipboard restore after paste
	CharDelayMicros int  `toml:"charDelayMicros"` // per-character typing delay
	ForceTyping     bool `toml:"forceTyping"`     // skip clipboard path even when permitted
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `toml:"level"` // "debug", "info", "warn", "error"
	ShowCaller bool   `toml:"showCaller"`
}

// Default returns a config with all defaults applied and no credential.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from path. An empty path resolves via
// paths.ConfigPath; a missing file yields defaults, not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = paths.ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		logging.L_debug("config: loaded", "path", path)
	} else {
		logging.L_debug("config: no config file, using defaults")
	}

	cfg.applyDefaults()
	if !cfg.API.Provider.Valid() {
		return nil, fmt.Errorf("unknown provider %q", cfg.API.Provider)
	}
	if cfg.API.Provider == ProviderCustom && cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("custom provider requires api.baseUrl")
	}
	return cfg, nil
}

// applyDefaults fills zero values from provider defaults and the environment.
func (c *Config) applyDefaults() {
	if c.API.Provider == "" {
		c.API.Provider = ProviderOpenAI
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = c.API.Provider.DefaultBaseURL()
	}
	if c.API.STTModel == "" {
		c.API.STTModel = c.API.Provider.DefaultSTTModel()
	}
	if c.API.PolishModel == "" {
		c.API.PolishModel = c.API.Provider.DefaultPolishModel()
	}
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv("VOWRITE_API_KEY")
	}
	if c.Prompt.Scene == "" {
		c.Prompt.Scene = "none"
	}
	if c.Injection.SettleDelayMS == 0 {
		c.Injection.SettleDelayMS = 300
	}
	if c.Injection.RestoreDelayMS == 0 {
		c.Injection.RestoreDelayMS = 2000
	}
	if c.Injection.CharDelayMicros == 0 {
		c.Injection.CharDelayMicros = 3000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// HasCredentials reports whether a non-blank API key is configured.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.API.APIKey) != ""
}

// LogLevel maps the configured level name to a logging level constant.
func (c *Config) LogLevel() int {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
