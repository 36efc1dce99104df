// Command voicescreen runs the voice-first screening front end: it captures
// spoken answers, screens them for crisis content before anything leaves the
// process, and relays safe turns to the conversational backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindline/voicescreen/internal/app"
	"github.com/mindline/voicescreen/internal/config"
	"github.com/mindline/voicescreen/internal/observe"
	"github.com/mindline/voicescreen/pkg/backend"
	"github.com/mindline/voicescreen/pkg/provider/recognizer"
	recmock "github.com/mindline/voicescreen/pkg/provider/recognizer/mock"
	"github.com/mindline/voicescreen/pkg/provider/recognizer/remote"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
	synthmock "github.com/mindline/voicescreen/pkg/provider/synthesizer/mock"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer/noop"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicescreen: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicescreen: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicescreen starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName: "voicescreen",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, providers)

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("session ready; press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// voicescreen into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognition ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("remote", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		var opts []remote.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, remote.WithLanguage(lang))
		}
		return remote.New(entry.BaseURL, entry.APIKey, opts...)
	})

	// mock recognizes nothing; it exists so the pipeline can be exercised
	// without a speech gateway.
	reg.RegisterRecognizer("mock", func(config.ProviderEntry) (recognizer.Provider, error) {
		return &recmock.Provider{}, nil
	})

	// ── Synthesis ─────────────────────────────────────────────────────────────

	reg.RegisterSynthesizer("noop", func(config.ProviderEntry) (synthesizer.Provider, error) {
		return noop.New(), nil
	})

	reg.RegisterSynthesizer("mock", func(config.ProviderEntry) (synthesizer.Provider, error) {
		return &synthmock.Provider{}, nil
	})
}

// buildProviders instantiates the configured providers plus the backend
// client. A missing recognizer or synthesizer degrades the session rather
// than failing startup; a missing backend is fatal.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	p := &app.Providers{}

	var backendOpts []backend.Option
	if cfg.Backend.AuthToken != "" {
		backendOpts = append(backendOpts, backend.WithAuthToken(cfg.Backend.AuthToken))
	}
	if cfg.Backend.RequestTimeout > 0 {
		backendOpts = append(backendOpts, backend.WithTimeout(cfg.Backend.RequestTimeout))
	}
	p.Backend = backend.New(cfg.Backend.Endpoint, backendOpts...)

	if name := cfg.Providers.Recognizer.Name; name != "" {
		rec, err := reg.CreateRecognizer(cfg.Providers.Recognizer)
		if err != nil {
			return nil, fmt.Errorf("recognizer %q: %w", name, err)
		}
		p.Recognizer = rec
	}

	if name := cfg.Providers.Synthesizer.Name; name != "" {
		synth, err := reg.CreateSynthesizer(cfg.Providers.Synthesizer)
		if err != nil {
			return nil, fmt.Errorf("synthesizer %q: %w", name, err)
		}
		p.Synthesizer = synth
	}

	return p, nil
}

// printStartupSummary logs the effective capabilities of this session.
func printStartupSummary(cfg *config.Config, providers *app.Providers) {
	recognizerName := "none (typed input only)"
	if providers.Recognizer != nil {
		recognizerName = providers.Recognizer.Name()
	}
	synthesizerName := "none (text output only)"
	if providers.Synthesizer != nil {
		synthesizerName = providers.Synthesizer.Name()
	}
	slog.Info("capabilities",
		"backend", cfg.Backend.Endpoint,
		"recognizer", recognizerName,
		"synthesizer", synthesizerName,
		"language", cfg.Speech.Language,
	)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
