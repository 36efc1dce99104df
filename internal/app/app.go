// Package app wires all voicescreen subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the session loop alongside the speech consumer
// and the admin HTTP server, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSurface,
// WithInput, WithClock). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mindline/voicescreen/internal/clock"
	"github.com/mindline/voicescreen/internal/config"
	"github.com/mindline/voicescreen/internal/conversation"
	"github.com/mindline/voicescreen/internal/health"
	"github.com/mindline/voicescreen/internal/observe"
	"github.com/mindline/voicescreen/internal/presence"
	"github.com/mindline/voicescreen/internal/safety"
	"github.com/mindline/voicescreen/internal/speech"
	"github.com/mindline/voicescreen/pkg/backend"
	"github.com/mindline/voicescreen/pkg/provider/recognizer"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer/noop"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// Recognizer captures voice input. Nil runs the session in typed-input
	// mode from the start.
	Recognizer recognizer.Provider

	// Synthesizer speaks assistant output. Nil falls back to silent output.
	Synthesizer synthesizer.Provider

	// Backend is the conversational screening service. Required.
	Backend backend.Chat
}

// App owns all subsystem lifetimes for one screening session.
type App struct {
	cfg       *config.Config
	providers *Providers

	clk     clock.Clock
	surface conversation.Surface
	input   io.Reader
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	detector  *safety.Detector
	indicator *presence.Indicator
	speaker   *speech.Speaker
	listener  *speech.Listener
	orch      *conversation.Orchestrator
	admin     *http.Server

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSurface injects the UI surface instead of the default console surface.
func WithSurface(s conversation.Surface) Option {
	return func(a *App) { a.surface = s }
}

// WithInput injects the typed-input stream. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.input = r }
}

// WithClock injects the clock driving timeouts and retries.
func WithClock(clk clock.Clock) Option {
	return func(a *App) { a.clk = clk }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go, populated via the config registry.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Backend == nil {
		return nil, errors.New("app: a backend provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		clk:       clock.System{},
		input:     os.Stdin,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.surface == nil {
		a.surface = NewConsoleSurface(os.Stdout)
	}

	// ── 1. Safety detector ───────────────────────────────────────────────
	detector, err := safety.NewDetector(safety.Config{
		CriticalTriggers: cfg.Safety.CriticalTriggers,
		WarningTriggers:  cfg.Safety.WarningTriggers,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init safety detector: %w", err)
	}
	a.detector = detector

	// ── 2. Presence indicator ────────────────────────────────────────────
	a.indicator = presence.New(presence.Timeouts{
		Listening: cfg.Presence.ListeningTimeout,
		Thinking:  cfg.Presence.ThinkingTimeout,
		Speaking:  cfg.Presence.SpeakingTimeout,
	}, a.clk, a.onPresenceChange)

	// ── 3. Speech output ─────────────────────────────────────────────────
	synth := providers.Synthesizer
	if synth == nil {
		slog.Warn("no synthesizer configured; assistant output will be text only")
		synth = noop.New()
	}
	a.speaker = speech.NewSpeaker(synth, synthesizer.Options{
		Voice:    cfg.Speech.Voice.Name,
		Rate:     cfg.Speech.Voice.Rate,
		Pitch:    cfg.Speech.Voice.Pitch,
		Volume:   cfg.Speech.Voice.Volume,
		Language: cfg.Speech.Language,
	})

	// ── 4. Speech input ──────────────────────────────────────────────────
	a.listener = speech.NewListener(providers.Recognizer, speech.ListenerConfig{
		Language:       cfg.Speech.Language,
		ListenTimeout:  cfg.Speech.ListenTimeout,
		SilenceTimeout: cfg.Speech.SilenceTimeout,
		MaxRetries:     cfg.Speech.MaxRetries,
		BackoffStep:    cfg.Speech.BackoffStep,
		NoMatchDelay:   cfg.Speech.NoMatchDelay,
	}, a.clk)

	// ── 5. Conversation orchestrator ─────────────────────────────────────
	orchOpts := []conversation.Option{conversation.WithSurface(a.surface)}
	if cfg.Safety.Messages.Crisis != "" || cfg.Safety.Messages.Warning != "" {
		orchOpts = append(orchOpts, conversation.WithMessages(cfg.Safety.Messages))
	}
	resources := cfg.Safety.Resources
	if len(resources) == 0 {
		resources = safety.DefaultResources()
	}
	resources = safety.FilterResources(resources, cfg.Safety.ResourceCountry, cfg.Safety.ResourceKind)
	if len(resources) == 0 {
		slog.Warn("resource filter matched nothing; crisis support contacts will be empty",
			"country", cfg.Safety.ResourceCountry, "kind", string(cfg.Safety.ResourceKind))
	}
	orchOpts = append(orchOpts, conversation.WithResources(resources))
	a.orch = conversation.New(a.detector, providers.Backend, a.speaker, a.indicator, orchOpts...)

	// ── 6. Admin endpoint ────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		a.admin = a.newAdminServer(cfg.Server.ListenAddr)
	}

	return a, nil
}

// Session exposes the running session for inspection.
func (a *App) Session() *conversation.Session {
	return a.orch.Session()
}

// Run executes the application until the session ends or ctx is cancelled.
// It runs the speech consumer, the admin HTTP server, and the session loop
// concurrently and returns the first error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.speaker.Run(ctx)
	})

	if a.admin != nil {
		g.Go(func() error {
			slog.Info("admin endpoint listening", "addr", a.admin.Addr)
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.admin.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return a.sessionLoop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, errSessionOver) {
		return nil
	}
	return err
}

// errSessionOver stops the errgroup once the screening completes normally.
var errSessionOver = errors.New("session over")

// sessionLoop greets the user and then alternates between capturing an
// utterance and handling it, switching to typed input permanently after the
// first unrecoverable capture failure.
func (a *App) sessionLoop(ctx context.Context) error {
	a.metrics.ActiveSessions.Add(ctx, 1)
	defer a.metrics.ActiveSessions.Add(context.Background(), -1)

	if err := a.orch.Greet(ctx, a.cfg.Greeting); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		slog.Warn("greeting failed", "error", err)
	}

	voice := a.providers.Recognizer != nil
	if !voice {
		a.orch.ReportFallback(&speech.FallbackError{Reason: speech.ReasonMicrophoneDenied, Cause: speech.ErrNoProvider})
	}
	typed := a.readTypedInput(ctx)

	for a.Session().Active() {
		if err := ctx.Err(); err != nil {
			return err
		}

		utterance, err := a.nextUtterance(ctx, &voice, typed)
		if err != nil {
			return err
		}
		if utterance.Text == "" {
			continue
		}

		if a.cfg.Server.LogUtterances {
			slog.Debug("handling utterance", "source", string(utterance.Source), "text", utterance.Text)
		}
		if err := a.orch.HandleUtterance(ctx, utterance); err != nil {
			if errors.Is(err, conversation.ErrSessionEnded) {
				break
			}
			return err
		}
	}

	slog.Info("session finished", "session_id", a.Session().ID(), "phase", a.Session().Phase().String())
	return errSessionOver
}

// typedLine is one line of keyboard input, or the scanner error that ended
// the stream.
type typedLine struct {
	text string
	err  error
}

// readTypedInput scans a.input on its own goroutine so a blocked read (stdin
// with no pending line) cannot stall shutdown; the session loop selects the
// returned channel against ctx. The channel closes when input is exhausted.
func (a *App) readTypedInput(ctx context.Context) <-chan typedLine {
	lines := make(chan typedLine)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.input)
		for sc.Scan() {
			select {
			case lines <- typedLine{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- typedLine{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return lines
}

// nextUtterance captures one user utterance, demoting voice to typed input
// when the capture fails beyond recovery.
func (a *App) nextUtterance(ctx context.Context, voice *bool, typed <-chan typedLine) (conversation.Utterance, error) {
	if *voice {
		a.indicator.Set(presence.StateListening)
		transcript, err := a.listener.Listen(ctx)
		a.indicator.Set(presence.StateIdle)
		if err == nil {
			return conversation.NewUtterance(transcript.Text, conversation.SourceVoice), nil
		}

		var fb *speech.FallbackError
		if errors.As(err, &fb) {
			*voice = false
			a.orch.ReportFallback(fb)
			return conversation.Utterance{}, nil
		}
		return conversation.Utterance{}, err
	}

	select {
	case <-ctx.Done():
		return conversation.Utterance{}, ctx.Err()
	case line, ok := <-typed:
		if !ok {
			// Input closed; end the session.
			a.Session().End()
			return conversation.Utterance{}, nil
		}
		if line.err != nil {
			return conversation.Utterance{}, fmt.Errorf("app: reading typed input: %w", line.err)
		}
		return conversation.NewUtterance(strings.TrimSpace(line.text), conversation.SourceText), nil
	}
}

// onPresenceChange surfaces avatar state transitions. Timed-out transitions
// are logged because they indicate a stuck subsystem.
func (a *App) onPresenceChange(c presence.Change) {
	if c.TimedOut {
		slog.Warn("presence state timed out", "from", c.From.String(), "to", c.To.String())
	}
	if s, ok := a.surface.(PresenceObserver); ok {
		s.PresenceChanged(c)
	}
}

// newAdminServer builds the HTTP server exposing metrics and health probes.
func (a *App) newAdminServer(addr string) *http.Server {
	pinger, _ := a.providers.Backend.(health.Pinger)
	checker := health.New(
		health.BackendChecker(pinger),
		health.SpeechChecker(a.providers.Synthesizer != nil),
	)

	mux := http.NewServeMux()
	checker.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown stops background work not already owned by Run's context.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.speaker.Stop()
		a.indicator.Stop()
		if a.admin != nil {
			if e := a.admin.Shutdown(ctx); e != nil && !errors.Is(e, http.ErrServerClosed) {
				err = e
			}
		}
	})
	return err
}
