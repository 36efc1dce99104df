package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/mindline/voicescreen/internal/observe"
	"github.com/mindline/voicescreen/internal/presence"
	"github.com/mindline/voicescreen/internal/safety"
	"github.com/mindline/voicescreen/internal/speech"
	"github.com/mindline/voicescreen/pkg/backend"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
)

// ErrSessionEnded is returned by [Orchestrator.HandleUtterance] once the
// session no longer accepts input.
var ErrSessionEnded = errors.New("conversation: session has ended")

// apologyReply is spoken when the backend fails or times out mid-turn.
const apologyReply = "I'm sorry, I'm having trouble responding right now. Could you please repeat that?"

// Surface is the UI the orchestrator renders into: chat bubbles, input-mode
// switches, and support resources. Implementations must not block; the
// orchestrator calls them on its turn goroutine.
type Surface interface {
	// UserMessage displays an utterance attributed to the user.
	UserMessage(text string)
	// AssistantMessage displays a reply attributed to the assistant.
	AssistantMessage(text string)
	// InputFallback tells the UI to switch to typed input, with guidance the
	// user should see.
	InputFallback(reason speech.FallbackReason, guidance string)
	// SupportResources displays crisis support contacts.
	SupportResources(resources []safety.Resource)
	// ScreeningEnded tells the UI the question flow is over.
	ScreeningEnded()
}

// NopSurface is a Surface that renders nothing.
type NopSurface struct{}

func (NopSurface) UserMessage(string)                          {}
func (NopSurface) AssistantMessage(string)                     {}
func (NopSurface) InputFallback(speech.FallbackReason, string) {}
func (NopSurface) SupportResources([]safety.Resource)          {}
func (NopSurface) ScreeningEnded()                             {}

// Orchestrator coordinates one screening session: safety assessment first,
// then the backend turn, presence transitions, and speech output.
//
// HandleUtterance may be called from any goroutine; crisis handling takes
// effect even while an earlier turn's backend call is still in flight.
type Orchestrator struct {
	session   *Session
	detector  *safety.Detector
	chat      backend.Chat
	speaker   *speech.Speaker
	indicator *presence.Indicator
	surface   Surface
	metrics   *observe.Metrics

	messages  safety.Messages
	resources []safety.Resource

	// publish serializes reply publication with crisis pre-emption. A turn
	// may only append, render, and enqueue its reply while holding this lock
	// and with the crisis latch still clear; handleCrisis takes the same lock
	// to latch, stop playback, and park the indicator, so a stale reply can
	// neither slip out after the latch nor leave the indicator in SPEAKING.
	publish sync.Mutex
}

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithSurface sets the UI surface. The default renders nothing.
func WithSurface(s Surface) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.surface = s
		}
	}
}

// WithMessages overrides the crisis and supportive message templates.
func WithMessages(m safety.Messages) Option {
	return func(o *Orchestrator) { o.messages = m }
}

// WithResources overrides the support resources shown during a crisis.
func WithResources(rs []safety.Resource) Option {
	return func(o *Orchestrator) { o.resources = rs }
}

// New creates an Orchestrator for a fresh session.
//
// detector, chat, speaker, and indicator are required; options cover the
// rest. The defaults use [safety.DefaultMessages] and
// [safety.DefaultResources].
func New(detector *safety.Detector, chat backend.Chat, speaker *speech.Speaker, indicator *presence.Indicator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:   NewSession(),
		detector:  detector,
		chat:      chat,
		speaker:   speaker,
		indicator: indicator,
		surface:   NopSurface{},
		metrics:   observe.DefaultMetrics(),
		messages:  safety.DefaultMessages(),
		resources: safety.DefaultResources(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session exposes the session state for health reporting and shutdown.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Greet speaks and displays an opening line before the first question.
func (o *Orchestrator) Greet(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	o.session.Append(SenderAssistant, text, "")
	o.surface.AssistantMessage(text)
	o.indicator.Set(presence.StateSpeaking)
	err := o.speaker.Speak(text, synthesizer.Options{}, speech.PriorityNormal).Wait(ctx)
	o.indicator.Set(presence.StateIdle)
	return err
}

// HandleUtterance runs one conversational turn for a user utterance.
//
// Every utterance is safety-assessed before anything else happens. Crisis
// content short-circuits the turn: the backend is never consulted, the
// screening flow is terminated, and crisis support content takes over the
// output channels. Distress content annotates the turn and prepends a
// supportive acknowledgement to the backend's reply. Ordinary content flows
// straight through to the backend.
func (o *Orchestrator) HandleUtterance(ctx context.Context, u Utterance) error {
	if !o.session.Active() {
		return ErrSessionEnded
	}

	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "conversation.turn")
	defer span.End()
	defer func() {
		o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	question := o.session.CurrentQuestion()
	assessment := o.detector.Assess(u.Text, safety.QuestionContext{
		IsItemNine: question != nil && question.SelfHarmProbe,
	})
	o.metrics.RecordCrisis(ctx, assessment.Level.String())

	o.session.AppendUtterance(u, annotationFor(assessment))
	o.surface.UserMessage(u.Text)

	if assessment.Level == safety.LevelCritical {
		return o.handleCrisis(ctx, assessment)
	}
	return o.handleTurn(ctx, u.Text, question, assessment)
}

// handleCrisis terminates the screening flow and presents support content.
// It holds the publish lock while latching the override, so an in-flight turn
// either published its reply before the latch (and the Stop here rejects it)
// or observes the latch under the same lock and discards the reply.
func (o *Orchestrator) handleCrisis(ctx context.Context, assessment safety.Assessment) error {
	o.publish.Lock()
	o.session.EnterCrisis()
	slog.Warn("crisis content detected, screening terminated",
		"session_id", o.session.ID(),
		"item_nine", assessment.ItemNineContext,
	)

	// Whatever was playing or queued no longer matters.
	o.speaker.Stop()
	o.indicator.Set(presence.StateIdle)

	message := safety.RenderCrisisMessage(o.messages.Crisis, o.resources)
	o.session.Append(SenderAssistant, message, "crisis_response")
	o.surface.AssistantMessage(message)
	o.surface.SupportResources(o.resources)
	o.surface.ScreeningEnded()
	handle := o.speaker.Speak(message, synthesizer.Options{}, speech.PriorityHigh)
	o.publish.Unlock()

	return handle.Wait(ctx)
}

// handleTurn runs the ordinary backend round trip for a non-critical
// utterance.
func (o *Orchestrator) handleTurn(ctx context.Context, text string, question *backend.QuestionContext, assessment safety.Assessment) error {
	o.indicator.Set(presence.StateThinking)

	req := backend.Request{
		SessionID: o.session.ID(),
		Text:      text,
		Question:  question,
	}
	if assessment.Level == safety.LevelWarning {
		req.Annotations = []string{"distress_language"}
	}

	backendStart := time.Now()
	resp, err := o.chat.Converse(ctx, req)
	o.metrics.BackendDuration.Record(ctx, time.Since(backendStart).Seconds(),
		metric.WithAttributes(observe.Attr("outcome", outcomeFor(err))))

	// Publication happens under the publish lock: a crisis detected while
	// the backend call was in flight owns the session now, and its reply
	// must not surface. Checking the latch and enqueueing the reply under
	// one critical section closes the window where handleCrisis could latch
	// between the check and the enqueue.
	o.publish.Lock()
	if o.session.CrisisOverridden() {
		o.publish.Unlock()
		slog.Debug("discarding backend reply after crisis override", "session_id", o.session.ID())
		return nil
	}

	reply := resp.Reply
	if err != nil {
		slog.Error("backend turn failed", "session_id", o.session.ID(), "error", err)
		reply = apologyReply
	} else {
		o.session.SetQuestion(resp.NextQuestion)
	}
	if assessment.Level == safety.LevelWarning && o.messages.Warning != "" {
		reply = o.messages.Warning + " " + reply
	}

	o.session.Append(SenderAssistant, reply, "")
	o.surface.AssistantMessage(reply)

	o.indicator.Set(presence.StateSpeaking)
	handle := o.speaker.Speak(reply, synthesizer.Options{}, speech.PriorityNormal)
	o.publish.Unlock()

	speakErr := handle.Wait(ctx)
	if o.session.CrisisOverridden() {
		// The crisis turn rejected this playback and already parked the
		// indicator at IDLE; leave its state alone.
		return nil
	}
	o.indicator.Set(presence.StateIdle)

	if err == nil && resp.Done {
		o.session.End()
		o.surface.ScreeningEnded()
	}
	if speakErr != nil && !errors.Is(speakErr, speech.ErrInterrupted) {
		return speakErr
	}
	return nil
}

// ReportFallback tells the UI that voice input is unavailable and typed
// input should be used, with user-facing guidance for the specific failure.
func (o *Orchestrator) ReportFallback(fb *speech.FallbackError) {
	slog.Info("switching to typed input", "session_id", o.session.ID(), "reason", fb.Reason)
	o.surface.InputFallback(fb.Reason, fallbackGuidance(fb.Reason))
}

func annotationFor(a safety.Assessment) string {
	switch a.Level {
	case safety.LevelCritical:
		if a.ItemNineContext {
			return "crisis_item_nine"
		}
		return "crisis_language"
	case safety.LevelWarning:
		return "distress_language"
	default:
		return ""
	}
}

func outcomeFor(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func fallbackGuidance(reason speech.FallbackReason) string {
	switch reason {
	case speech.ReasonMicrophoneDenied:
		return "Microphone access isn't available. You can type your answers instead."
	case speech.ReasonNetworkError:
		return "Voice input isn't reachable right now. You can type your answers instead."
	case speech.ReasonNoSpeech:
		return "I didn't hear anything. You can type your answer instead."
	case speech.ReasonNotRecognized:
		return "I couldn't make that out. You can type your answer instead."
	default:
		return "Voice input is unavailable. You can type your answers instead."
	}
}
