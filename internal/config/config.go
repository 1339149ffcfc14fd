// Package config provides the configuration schema, loader, and provider
// registry for the Voxform field-report assistant.
package config

// LogLevel controls log verbosity for the Voxform server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxform.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Email     EmailConfig     `yaml:"email"`
}

// ServerConfig holds network and logging settings for the Voxform server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins permitted by the CORS middleware.
	// Empty means same-origin only; "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallback, when set, is tried after LLM fails or its circuit
	// breaker is open.
	LLMFallback *ProviderEntry `yaml:"llm_fallback"`

	STT ProviderEntry `yaml:"stt"`

	// STTFallback, when set, is tried after STT fails or its circuit
	// breaker is open.
	STTFallback *ProviderEntry `yaml:"stt_fallback"`

	TTS ProviderEntry `yaml:"tts"`

	// TTSFallback, when set, is tried after TTS fails or its circuit
	// breaker is open.
	TTSFallback *ProviderEntry `yaml:"tts_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AudioConfig holds intake limits for uploaded recordings.
type AudioConfig struct {
	// MaxSizeMB caps the decoded audio size in megabytes. 0 means the
	// built-in default of 25.
	MaxSizeMB int `yaml:"max_size_mb"`

	// SupportedFormats lists accepted container formats. Empty means the
	// built-in default list (m4a, mp3, wav, webm, ogg, flac).
	SupportedFormats []string `yaml:"supported_formats"`
}

// EmailConfig holds SendGrid delivery settings for report emails.
type EmailConfig struct {
	// APIKey is the SendGrid API key. Empty disables email delivery.
	APIKey string `yaml:"api_key"`

	// FromAddr is the verified sender address.
	FromAddr string `yaml:"from_addr"`

	// FromName is the display name shown as the sender.
	FromName string `yaml:"from_name"`

	// Recipients is the default recipient list used when a request does not
	// name its own.
	Recipients []string `yaml:"recipients"`
}
