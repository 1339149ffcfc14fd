// Command voxform is the main entry point for the Voxform field-report server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/voxform/voxform/internal/command"
	"github.com/voxform/voxform/internal/config"
	"github.com/voxform/voxform/internal/health"
	"github.com/voxform/voxform/internal/httpapi"
	"github.com/voxform/voxform/internal/observe"
	"github.com/voxform/voxform/internal/report"
	"github.com/voxform/voxform/internal/resilience"
	"github.com/voxform/voxform/internal/summary"
	"github.com/voxform/voxform/internal/transcribe"
	"github.com/voxform/voxform/internal/transcript"
	"github.com/voxform/voxform/internal/transcript/llmcorrect"
	"github.com/voxform/voxform/internal/transcript/phonetic"
	"github.com/voxform/voxform/pkg/provider/llm"
	"github.com/voxform/voxform/pkg/provider/llm/anyllm"
	oaillm "github.com/voxform/voxform/pkg/provider/llm/openai"
	"github.com/voxform/voxform/pkg/provider/stt"
	oaistt "github.com/voxform/voxform/pkg/provider/stt/openai"
	"github.com/voxform/voxform/pkg/provider/tts"
	oaitts "github.com/voxform/voxform/pkg/provider/tts/openai"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxform: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxform: %v\n", err)
		}
		return 1
	}

	// Logger with a dynamic level so hot reloads can adjust verbosity.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voxform starting",
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: Prometheus-backed metrics plus tracing.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxform"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// Watch the config file so log level and intake limits follow edits
	// without a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.AudioLimitsChanged || d.EmailRecipientsChanged {
			slog.Info("config changed; audio and email settings apply on restart")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	srv, err := buildServer(cfg, providers, logger)
	if err != nil {
		slog.Error("failed to assemble server", "err", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready", "addr", httpServer.Addr)
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// providerSet holds the instantiated pipeline backends.
type providerSet struct {
	llm llm.Provider
	stt stt.Provider
	tts tts.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// The OpenAI LLM backend uses the official SDK directly.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// Everything else goes through the any-llm adapter. These providers share
	// the same pattern: optional APIKey plus optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.Model != "" {
			opts = append(opts, oaistt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		return oaistt.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.Model != "" {
			opts = append(opts, oaitts.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oaitts.WithVoice(voice))
		}
		return oaitts.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. The LLM is
// mandatory; STT and TTS are optional and their endpoints degrade to 503 when
// absent. A configured LLM fallback is wrapped into a circuit-breaking
// failover group.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)
	ps.llm = primary

	if fb := cfg.Providers.LLMFallback; fb != nil {
		secondary, err := reg.CreateLLM(*fb)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, secondary)
		ps.llm = group
		slog.Info("provider created", "kind", "llm_fallback", "name", fb.Name)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.stt = p
		slog.Info("provider created", "kind", "stt", "name", name)

		if fb := cfg.Providers.STTFallback; fb != nil {
			secondary, err := reg.CreateSTT(*fb)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
			}
			group := resilience.NewSTTFallback(p, name, resilience.FallbackConfig{})
			group.AddFallback(fb.Name, secondary)
			ps.stt = group
			slog.Info("provider created", "kind", "stt_fallback", "name", fb.Name)
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.tts = p
		slog.Info("provider created", "kind", "tts", "name", name)

		if fb := cfg.Providers.TTSFallback; fb != nil {
			secondary, err := reg.CreateTTS(*fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			group := resilience.NewTTSFallback(p, name, resilience.FallbackConfig{})
			group.AddFallback(fb.Name, secondary)
			ps.tts = group
			slog.Info("provider created", "kind", "tts_fallback", "name", fb.Name)
		}
	}

	return ps, nil
}

// buildServer assembles the pipeline services around the providers and
// returns the HTTP API server.
func buildServer(cfg *config.Config, ps *providerSet, logger *slog.Logger) (*httpapi.Server, error) {
	resolver, err := command.NewResolver(ps.llm, command.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	extractor, err := summary.NewExtractor(ps.llm, summary.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		httpapi.WithHealth(health.New(health.Checker{
			Name: "llm",
			Check: func(ctx context.Context) error {
				if ps.llm == nil {
					return errors.New("no llm provider")
				}
				return nil
			},
		})),
	}

	if ps.stt != nil {
		var sopts []transcribe.ServiceOption
		if cfg.Audio.MaxSizeMB > 0 {
			sopts = append(sopts, transcribe.WithMaxSizeMB(cfg.Audio.MaxSizeMB))
		}
		if len(cfg.Audio.SupportedFormats) > 0 {
			sopts = append(sopts, transcribe.WithFormats(cfg.Audio.SupportedFormats))
		}
		transcriber, err := transcribe.NewService(ps.stt, sopts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpapi.WithTranscriber(transcriber))

		// Vocabulary correction rides on top of transcription. The phonetic
		// stage is always on; the LLM stage reuses the main provider.
		corrector := transcript.NewPipeline(
			transcript.WithPhoneticMatcher(phonetic.New()),
			transcript.WithLLMCorrector(llmcorrect.New(ps.llm)),
		)
		opts = append(opts, httpapi.WithCorrector(corrector))
	}

	if ps.tts != nil {
		opts = append(opts, httpapi.WithSynthesizer(ps.tts))
	}

	if cfg.Email.APIKey != "" {
		mailer, err := report.NewMailer(cfg.Email.APIKey, cfg.Email.FromAddr, cfg.Email.FromName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpapi.WithMailer(mailer, cfg.Email.Recipients))
	}

	return httpapi.New(resolver, extractor, opts...)
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
