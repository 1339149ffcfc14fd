package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai"},
	"tts": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation; warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	if cfg.Providers.LLMFallback != nil {
		validateProviderName("llm", cfg.Providers.LLMFallback.Name)
		if cfg.Providers.LLMFallback.Name == "" {
			errs = append(errs, errors.New("providers.llm_fallback.name is required when llm_fallback is set"))
		}
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	if cfg.Providers.STTFallback != nil {
		validateProviderName("stt", cfg.Providers.STTFallback.Name)
		if cfg.Providers.STTFallback.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallback.name is required when stt_fallback is set"))
		}
		if cfg.Providers.STT.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallback requires a primary providers.stt"))
		}
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.TTSFallback != nil {
		validateProviderName("tts", cfg.Providers.TTSFallback.Name)
		if cfg.Providers.TTSFallback.Name == "" {
			errs = append(errs, errors.New("providers.tts_fallback.name is required when tts_fallback is set"))
		}
		if cfg.Providers.TTS.Name == "" {
			errs = append(errs, errors.New("providers.tts_fallback requires a primary providers.tts"))
		}
	}

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required; voice commands cannot be resolved without an LLM"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; audio uploads will be rejected")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; spoken responses will be text-only")
	}

	// Audio intake limits
	if cfg.Audio.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("audio.max_size_mb %d must not be negative", cfg.Audio.MaxSizeMB))
	}

	// Email delivery
	if cfg.Email.APIKey != "" {
		if cfg.Email.FromAddr == "" {
			errs = append(errs, errors.New("email.from_addr is required when email.api_key is set"))
		} else if _, err := mail.ParseAddress(cfg.Email.FromAddr); err != nil {
			errs = append(errs, fmt.Errorf("email.from_addr %q is not a valid address: %w", cfg.Email.FromAddr, err))
		}
		for i, rcpt := range cfg.Email.Recipients {
			if _, err := mail.ParseAddress(rcpt); err != nil {
				errs = append(errs, fmt.Errorf("email.recipients[%d] %q is not a valid address: %w", i, rcpt, err))
			}
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
