// Package speech couples the two halves of the voice interface: a recognition
// loop with a bounded retry policy ([Listener]) and a prioritised,
// single-consumer synthesis queue ([Speaker]).
//
// The microphone and the synthesis engine are exclusive system resources.
// The Listener never opens a second capture while one is active, and the
// Speaker's single consumer guarantees utterances are played strictly
// sequentially, never interleaved.
package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mindline/voicescreen/internal/observe"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
)

// Priority orders speech requests. High preempts current playback and jumps
// the queue; requests of equal priority play in FIFO order.
type Priority int

const (
	// PriorityLow plays after everything else.
	PriorityLow Priority = iota

	// PriorityNormal is the default for conversational replies.
	PriorityNormal

	// PriorityHigh cancels current playback and plays next. Reserved for
	// crisis messaging.
	PriorityHigh
)

// String returns the lower-case name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Handle tracks the completion of one speech request. It resolves when the
// audio finishes normally and rejects on synthesis error or interruption.
type Handle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Done returns a channel closed when the request completes, successfully or
// not.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the completion error. Only valid after Done is closed; nil
// means the audio finished normally.
func (h *Handle) Err() error { return h.err }

// Wait blocks until the request completes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle resolves or rejects the handle exactly once.
func (h *Handle) settle(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// request is one queued synthesis job.
type request struct {
	text     string
	opts     synthesizer.Options
	priority Priority
	handle   *Handle
}

// Speaker is the prioritised synthesis queue. Enqueue with [Speaker.Speak];
// a single background consumer started by [Speaker.Run] plays requests
// strictly sequentially.
//
// All exported methods are safe for concurrent use.
type Speaker struct {
	provider synthesizer.Provider
	defaults synthesizer.Options
	metrics  *observe.Metrics

	mu            sync.Mutex
	queue         []*request
	wake          chan struct{}
	cancelCurrent context.CancelFunc
}

// NewSpeaker creates a Speaker. defaults fill in zero-valued fields of each
// request's options.
func NewSpeaker(provider synthesizer.Provider, defaults synthesizer.Options) *Speaker {
	return &Speaker{
		provider: provider,
		defaults: defaults,
		metrics:  observe.DefaultMetrics(),
		wake:     make(chan struct{}, 1),
	}
}

// Speak enqueues text for synthesis and returns its completion handle.
// High-priority requests cancel current playback and are inserted ahead of
// all lower-priority queued requests; the relative order of already-queued
// requests of the same priority is preserved.
func (s *Speaker) Speak(text string, opts synthesizer.Options, priority Priority) *Handle {
	req := &request{
		text:     text,
		opts:     s.withDefaults(opts),
		priority: priority,
		handle:   newHandle(),
	}

	s.mu.Lock()
	s.insertLocked(req)
	if priority == PriorityHigh && s.cancelCurrent != nil {
		s.cancelCurrent()
	}
	s.mu.Unlock()

	s.metrics.SpeechQueueDepth.Add(context.Background(), 1)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return req.handle
}

// Stop cancels current playback and rejects every queued-but-unstarted
// request with [ErrInterrupted], leaving the queue empty. The Speaker remains
// usable afterwards.
func (s *Speaker) Stop() {
	s.mu.Lock()
	if s.cancelCurrent != nil {
		s.cancelCurrent()
	}
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, req := range dropped {
		req.handle.settle(ErrInterrupted)
		s.metrics.RecordSpeechRequest(context.Background(), req.priority.String(), "interrupted")
	}
	if n := len(dropped); n > 0 {
		s.metrics.SpeechQueueDepth.Add(context.Background(), int64(-n))
	}
}

// Run is the queue's single consumer. It blocks until ctx is cancelled, at
// which point current playback is cancelled, all queued requests are
// rejected, and ctx.Err() is returned.
func (s *Speaker) Run(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				s.Stop()
				return ctx.Err()
			case <-s.wake:
				continue
			}
		}

		req := s.queue[0]
		s.queue = s.queue[1:]
		playCtx, cancel := context.WithCancel(ctx)
		s.cancelCurrent = cancel
		s.mu.Unlock()

		s.metrics.SpeechQueueDepth.Add(ctx, -1)
		start := time.Now()
		err := s.provider.Speak(playCtx, req.text, req.opts)

		s.mu.Lock()
		s.cancelCurrent = nil
		s.mu.Unlock()
		interrupted := playCtx.Err() != nil
		cancel()

		switch {
		case err == nil:
			req.handle.settle(nil)
			s.metrics.RecordSpeechRequest(ctx, req.priority.String(), "ok")
			s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
		case interrupted:
			req.handle.settle(ErrInterrupted)
			s.metrics.RecordSpeechRequest(ctx, req.priority.String(), "interrupted")
		default:
			req.handle.settle(err)
			s.metrics.RecordSpeechRequest(ctx, req.priority.String(), "error")
			slog.Warn("synthesis failed", "provider", s.provider.Name(), "err", err)
		}

		if ctx.Err() != nil {
			s.Stop()
			return ctx.Err()
		}
	}
}

// insertLocked places req before the first queued request of strictly lower
// priority, keeping FIFO order within each priority band. Caller holds s.mu.
func (s *Speaker) insertLocked(req *request) {
	pos := len(s.queue)
	for i, q := range s.queue {
		if q.priority < req.priority {
			pos = i
			break
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = req
}

// withDefaults fills zero-valued option fields from the speaker defaults.
func (s *Speaker) withDefaults(opts synthesizer.Options) synthesizer.Options {
	if opts.Voice == "" {
		opts.Voice = s.defaults.Voice
	}
	if opts.Rate == 0 {
		opts.Rate = s.defaults.Rate
	}
	if opts.Pitch == 0 {
		opts.Pitch = s.defaults.Pitch
	}
	if opts.Volume == 0 {
		opts.Volume = s.defaults.Volume
	}
	if opts.Language == "" {
		opts.Language = s.defaults.Language
	}
	return opts
}
