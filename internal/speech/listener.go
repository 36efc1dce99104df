package speech

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mindline/voicescreen/internal/clock"
	"github.com/mindline/voicescreen/internal/observe"
	"github.com/mindline/voicescreen/pkg/provider/recognizer"
)

// ListenerConfig tunes the recognition loop. Zero values use the defaults
// noted per field.
type ListenerConfig struct {
	// Language is the BCP-47 recognition language tag.
	Language string

	// ListenTimeout bounds how long a capture may run with no voice activity
	// detected. Default 10s.
	ListenTimeout time.Duration

	// SilenceTimeout bounds how long a capture may run after voice activity
	// was detected without producing a final transcript. Default 5s.
	SilenceTimeout time.Duration

	// MaxRetries bounds how many times a failed capture is retried before a
	// fallback is surfaced. Default 3.
	MaxRetries int

	// BackoffStep is the linear backoff unit for retryable errors: the n-th
	// retry waits n × BackoffStep. Default 1s.
	BackoffStep time.Duration

	// NoMatchDelay is the fixed pause before retrying an unrecognised
	// capture. Default 500ms.
	NoMatchDelay time.Duration
}

func (c ListenerConfig) withDefaults() ListenerConfig {
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = 10 * time.Second
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = time.Second
	}
	if c.NoMatchDelay <= 0 {
		c.NoMatchDelay = 500 * time.Millisecond
	}
	return c
}

// Listener runs microphone captures against a recognition provider and
// applies the bounded retry policy. One capture is active at a time; Listen
// must not be called concurrently with itself.
type Listener struct {
	provider recognizer.Provider
	cfg      ListenerConfig
	clk      clock.Clock
	metrics  *observe.Metrics
}

// NewListener creates a Listener. provider may be nil when the platform has
// no recognition capability; Listen then fails fast with [ErrNoProvider].
// A nil clk uses the system clock.
func NewListener(provider recognizer.Provider, cfg ListenerConfig, clk clock.Clock) *Listener {
	if clk == nil {
		clk = clock.System{}
	}
	return &Listener{
		provider: provider,
		cfg:      cfg.withDefaults(),
		clk:      clk,
		metrics:  observe.DefaultMetrics(),
	}
}

// Listen opens a capture and blocks until a final transcript, a fallback
// condition, or ctx cancellation.
//
// Retry policy: transport-level failures (network, audio-capture, aborted)
// are retried up to MaxRetries times with linearly increasing backoff;
// unrecognised speech is retried within the same budget after a short fixed
// delay. Permission, capability, and no-speech failures are surfaced
// immediately. Exhaustion and immediate failures both return a
// [*FallbackError] naming the reason.
func (l *Listener) Listen(ctx context.Context) (recognizer.Transcript, error) {
	if l.provider == nil {
		return recognizer.Transcript{}, &FallbackError{Reason: ReasonMicrophoneDenied, Cause: ErrNoProvider}
	}

	retries := 0
	for {
		transcript, capErr, err := l.capture(ctx)
		if err != nil {
			return recognizer.Transcript{}, err // ctx cancelled
		}
		if capErr == nil {
			l.metrics.RecordRecognitionAttempt(ctx, "", "ok")
			return transcript, nil
		}

		class := capErr.Class
		retryable := class.Retryable() || class == recognizer.ClassNoMatch
		if !retryable || retries >= l.cfg.MaxRetries {
			reason := fallbackReasonFor(class)
			l.metrics.RecordRecognitionAttempt(ctx, string(class), "fallback")
			l.metrics.RecordFallback(ctx, string(reason))
			slog.Info("voice input fallback",
				"provider", l.provider.Name(),
				"class", class,
				"reason", reason,
				"retries", retries,
			)
			return recognizer.Transcript{}, &FallbackError{Reason: reason, Cause: capErr}
		}

		retries++
		delay := l.cfg.NoMatchDelay
		if class != recognizer.ClassNoMatch {
			delay = time.Duration(retries) * l.cfg.BackoffStep
		}
		l.metrics.RecordRecognitionAttempt(ctx, string(class), "retry")
		slog.Debug("retrying capture",
			"provider", l.provider.Name(),
			"class", class,
			"attempt", retries,
			"delay", delay,
		)
		if err := l.sleep(ctx, delay); err != nil {
			return recognizer.Transcript{}, err
		}
	}
}

// capture runs a single recognition attempt. It returns exactly one of:
// a transcript, a classified capture error, or a context error.
func (l *Listener) capture(ctx context.Context) (recognizer.Transcript, *recognizer.CaptureError, error) {
	sess, err := l.provider.Open(ctx, recognizer.StreamConfig{
		Language:       l.cfg.Language,
		InterimResults: true,
	})
	if err != nil {
		return recognizer.Transcript{}, asCaptureError(err), nil
	}
	defer sess.Close()

	timeout := make(chan recognizer.ErrorClass, 1)
	listenTimer := l.clk.AfterFunc(l.cfg.ListenTimeout, func() {
		select {
		case timeout <- recognizer.ClassNoSpeech:
		default:
		}
	})
	defer listenTimer.Stop()
	var silenceTimer clock.Timer
	defer func() {
		if silenceTimer != nil {
			silenceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return recognizer.Transcript{}, nil, ctx.Err()

		case class := <-timeout:
			return recognizer.Transcript{}, recognizer.NewCaptureError(class, nil), nil

		case ev, ok := <-sess.Events():
			if !ok {
				// Session ended without a final result or a classified error.
				return recognizer.Transcript{}, recognizer.NewCaptureError(recognizer.ClassAborted, nil), nil
			}
			switch ev.Kind {
			case recognizer.EventSpeechStart:
				// Speech detected: the no-speech clock stops and the
				// post-speech silence clock starts.
				listenTimer.Stop()
				if silenceTimer == nil {
					silenceTimer = l.clk.AfterFunc(l.cfg.SilenceTimeout, func() {
						select {
						case timeout <- recognizer.ClassNoMatch:
						default:
						}
					})
				}
			case recognizer.EventFinal:
				return ev.Transcript, nil, nil
			case recognizer.EventError:
				return recognizer.Transcript{}, asCaptureError(ev.Err), nil
			}
		}
	}
}

// sleep waits for d on the injected clock, honouring ctx cancellation.
func (l *Listener) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	done := make(chan struct{})
	t := l.clk.AfterFunc(d, func() { close(done) })
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// asCaptureError normalises any provider error to a classified capture error.
// Unclassified errors are treated as network failures so they stay retryable.
func asCaptureError(err error) *recognizer.CaptureError {
	var capErr *recognizer.CaptureError
	if errors.As(err, &capErr) {
		return capErr
	}
	return recognizer.NewCaptureError(recognizer.ClassNetwork, err)
}
