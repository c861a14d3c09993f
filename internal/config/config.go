// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Extraction() ExtractionConfig
	Dispatcher() DispatcherConfig
	LLM() LLMRouterConfig
	Store() StoreConfig
	Watch() WatchConfig
	Publish() PublishConfig
	Source() SourceConfig
	Analyze() AnalyzeConfig
	SetAnalyzeConfig(ac AnalyzeConfig)
}

// Config holds the entire application configuration.
type Config struct {
	Logging    LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Extract    ExtractionConfig `mapstructure:"extract" yaml:"extract"`
	Dispatch   DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`
	LLMRouter  LLMRouterConfig  `mapstructure:"llm" yaml:"llm"`
	Storage    StoreConfig      `mapstructure:"store" yaml:"store"`
	Watcher    WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Publishing PublishConfig    `mapstructure:"publish" yaml:"publish"`
	SourceCtx  SourceConfig     `mapstructure:"source" yaml:"source"`

	// analyze gets its marching orders from CLI flags, not the config file.
	analyze AnalyzeConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations ---

func (c *Config) Logger() LoggerConfig         { return c.Logging }
func (c *Config) Extraction() ExtractionConfig { return c.Extract }
func (c *Config) Dispatcher() DispatcherConfig { return c.Dispatch }
func (c *Config) LLM() LLMRouterConfig         { return c.LLMRouter }
func (c *Config) Store() StoreConfig           { return c.Storage }
func (c *Config) Watch() WatchConfig           { return c.Watcher }
func (c *Config) Publish() PublishConfig       { return c.Publishing }
func (c *Config) Source() SourceConfig         { return c.SourceCtx }
func (c *Config) Analyze() AnalyzeConfig       { return c.analyze }

func (c *Config) SetAnalyzeConfig(ac AnalyzeConfig) { c.analyze = ac }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ExtractionConfig tunes the log parsing and stack reassembly pass.
type ExtractionConfig struct {
	// ContextLines is how many preceding lines each record captures.
	ContextLines int `mapstructure:"context_lines" yaml:"context_lines"`
	// MaxCauseDepth bounds "Caused by" recursion; deeper chains are
	// truncated and flagged, never failed.
	MaxCauseDepth int `mapstructure:"max_cause_depth" yaml:"max_cause_depth"`
	// MaxLineBytes caps the scanner buffer for very long stack lines.
	MaxLineBytes int `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
}

// DispatcherConfig controls the fix-generation fan-out. It replaces any
// process-wide LLM defaults: the dispatcher only sees what is in here.
type DispatcherConfig struct {
	Model             string  `mapstructure:"model" yaml:"model"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutMs         int     `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	MaxFrames         int     `mapstructure:"max_frames" yaml:"max_frames"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// Timeout returns the per-call deadline as a duration.
func (d DispatcherConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// StoreConfig holds the run persistence settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
}

// WatchConfig tunes the live tail mode.
type WatchConfig struct {
	// FlushInterval is the quiet period after which a buffered burst of
	// continuation lines is considered complete.
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	// FromStart replays the file from the beginning instead of seeking to
	// the end.
	FromStart bool `mapstructure:"from_start" yaml:"from_start"`
}

// PublishConfig defines the configuration for GitHub issue publishing.
type PublishConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Token         string   `mapstructure:"token" yaml:"-"`
	RepoOwner     string   `mapstructure:"repo_owner" yaml:"repo_owner"`
	RepoName      string   `mapstructure:"repo_name" yaml:"repo_name"`
	Labels        []string `mapstructure:"labels" yaml:"labels"`
	MinConfidence float64  `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// SourceConfig points the prompt enricher at the analyzed application's
// source tree.
type SourceConfig struct {
	// Root is the directory searched for the Java files named by stack
	// frames. Empty disables source context entirely.
	Root string `mapstructure:"root" yaml:"root"`
	// MaxSnippetLines bounds the method snippet attached to a prompt.
	MaxSnippetLines int `mapstructure:"max_snippet_lines" yaml:"max_snippet_lines"`
}

// AnalyzeConfig holds settings populated from CLI flags for a specific
// analysis job.
type AnalyzeConfig struct {
	Files   []string
	Output  string
	Format  string
	Publish bool
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	GeminiAPIKey         string                    `mapstructure:"gemini_api_key" yaml:"-"`
	OpenAIAPIKey         string                    `mapstructure:"openai_api_key" yaml:"-"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// Resolve returns a complete model config for the given model name. Models
// absent from the configured map are synthesized: the provider is inferred
// from the model name and the API key is taken from the provider-level key.
func (lc LLMRouterConfig) Resolve(name string) (LLMModelConfig, error) {
	if name == "" {
		return LLMModelConfig{}, fmt.Errorf("model name must not be empty")
	}

	mc, ok := lc.Models[name]
	if !ok {
		mc = LLMModelConfig{Model: name}
	}
	if mc.Model == "" {
		mc.Model = name
	}
	if mc.Provider == "" {
		if strings.HasPrefix(strings.ToLower(mc.Model), "gemini") {
			mc.Provider = ProviderGemini
		} else {
			mc.Provider = ProviderOpenAI
		}
	}
	if mc.APIKey == "" {
		switch mc.Provider {
		case ProviderGemini:
			mc.APIKey = lc.GeminiAPIKey
		case ProviderOpenAI:
			mc.APIKey = lc.OpenAIAPIKey
		}
	}
	if mc.APITimeout <= 0 {
		mc.APITimeout = 90 * time.Second
	}
	return mc, nil
}

// NewDefaultConfig creates a new configuration struct populated with
// default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration
// parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "logsurgeon")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Extraction --
	v.SetDefault("extract.context_lines", 3)
	v.SetDefault("extract.max_cause_depth", 10)
	v.SetDefault("extract.max_line_bytes", 1024*1024)

	// -- Dispatcher --
	v.SetDefault("dispatcher.model", "")
	v.SetDefault("dispatcher.temperature", 0.1)
	v.SetDefault("dispatcher.timeout_ms", 45000)
	v.SetDefault("dispatcher.max_concurrency", 4)
	v.SetDefault("dispatcher.max_retries", 1)
	v.SetDefault("dispatcher.max_frames", 5)
	v.SetDefault("dispatcher.requests_per_second", 2.0)

	// -- LLM Router --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")

	// -- Store --
	v.SetDefault("store.enabled", false)

	// -- Watch --
	v.SetDefault("watch.flush_interval", "500ms")
	v.SetDefault("watch.from_start", false)

	// -- Publish --
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.labels", []string{"autofix"})
	v.SetDefault("publish.min_confidence", 0.5)

	// -- Source context --
	v.SetDefault("source.root", "")
	v.SetDefault("source.max_snippet_lines", 60)
}

// NewConfigFromViper creates a new configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("publish.token", "LOGSURGEON_GITHUB_TOKEN", "GITHUB_TOKEN")
	v.BindEnv("store.url", "LOGSURGEON_STORE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the token if Unmarshal didn't pick it up.
	if cfg.Publishing.Enabled && cfg.Publishing.Token == "" {
		cfg.Publishing.Token = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Extract.Validate(); err != nil {
		return fmt.Errorf("extract configuration invalid: %w", err)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatcher configuration invalid: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if err := c.Publishing.Validate(); err != nil {
		return fmt.Errorf("publish configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the extraction settings.
func (e *ExtractionConfig) Validate() error {
	if e.ContextLines < 0 {
		return fmt.Errorf("context_lines must not be negative")
	}
	if e.MaxCauseDepth < 1 {
		return fmt.Errorf("max_cause_depth must be at least 1")
	}
	if e.MaxLineBytes <= 0 {
		return fmt.Errorf("max_line_bytes must be a positive integer")
	}
	return nil
}

// Validate checks the dispatcher settings.
func (d *DispatcherConfig) Validate() error {
	if d.MaxConcurrency < 1 || d.MaxConcurrency > 64 {
		return fmt.Errorf("max_concurrency must be between 1 and 64")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if d.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be a positive integer")
	}
	if d.Temperature < 0.0 || d.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if d.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	return nil
}

// Validate checks the store settings.
func (s *StoreConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.URL == "" {
		return fmt.Errorf("store.url is required when the store is enabled. Ensure LOGSURGEON_STORE_URL is set")
	}
	return nil
}

// Validate checks the publish settings.
func (p *PublishConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.MinConfidence < 0.0 || p.MinConfidence > 1.0 {
		return fmt.Errorf("min_confidence must be between 0.0 and 1.0")
	}
	if p.RepoOwner == "" || p.RepoName == "" {
		return fmt.Errorf("publish.repo_owner and publish.repo_name are required")
	}
	if p.Token == "" {
		return fmt.Errorf("GitHub token is required but not found. Ensure LOGSURGEON_GITHUB_TOKEN or GITHUB_TOKEN is set")
	}
	return nil
}
