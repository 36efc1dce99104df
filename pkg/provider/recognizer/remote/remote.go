// Package remote provides a recognizer backed by a capture gateway over a
// streaming WebSocket connection. The gateway owns the microphone and the
// actual speech-to-text engine; this client opens one capture per session and
// relays the gateway's event frames as recognizer events.
//
// Wire protocol (JSON text frames, gateway → client):
//
//	{"type": "speech_start"}
//	{"type": "final", "text": "...", "confidence": 0.93}
//	{"type": "error", "class": "no-speech", "message": "..."}
//
// The client sends a single start frame after dialing:
//
//	{"type": "start", "language": "en-US", "interim": true}
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/mindline/voicescreen/pkg/provider/recognizer"
)

// Option is a functional option for configuring the remote Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language tag used when a session's
// StreamConfig leaves Language empty.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithHTTPClient overrides the HTTP client used for the WebSocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements recognizer.Provider against a capture gateway.
type Provider struct {
	endpoint   string
	authToken  string
	language   string
	httpClient *http.Client
}

// New creates a remote Provider. endpoint must be a ws:// or wss:// URL.
func New(endpoint, authToken string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("remote: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:  endpoint,
		authToken: authToken,
		language:  "en-US",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements recognizer.Provider.
func (p *Provider) Name() string { return "remote" }

// Open dials the gateway and starts a capture session.
func (p *Provider) Open(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Session, error) {
	headers := http.Header{}
	if p.authToken != "" {
		headers.Set("Authorization", "Bearer "+p.authToken)
	}

	conn, _, err := websocket.Dial(ctx, p.endpoint, &websocket.DialOptions{
		HTTPHeader: headers,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return nil, recognizer.NewCaptureError(recognizer.ClassNetwork, fmt.Errorf("remote: dial: %w", err))
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	start := startFrame{Type: "start", Language: lang, Interim: cfg.InterimResults}
	payload, err := json.Marshal(start)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "start frame")
		return nil, fmt.Errorf("remote: marshal start frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		conn.Close(websocket.StatusInternalError, "start frame")
		return nil, recognizer.NewCaptureError(recognizer.ClassNetwork, fmt.Errorf("remote: send start frame: %w", err))
	}

	sess := &session{
		conn:   conn,
		events: make(chan recognizer.Event, 16),
		done:   make(chan struct{}),
	}
	sess.wg.Add(1)
	go sess.readLoop(ctx)
	return sess, nil
}

// startFrame is the client → gateway session-open message.
type startFrame struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Interim  bool   `json:"interim"`
}

// eventFrame is the gateway → client event message.
type eventFrame struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Class      string  `json:"class,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// session is a live gateway capture. It implements recognizer.Session.
type session struct {
	conn   *websocket.Conn
	events chan recognizer.Event

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Events implements recognizer.Session.
func (s *session) Events() <-chan recognizer.Event { return s.events }

// Close implements recognizer.Session.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// readLoop receives event frames from the gateway and dispatches them until
// a final result, an error frame, or connection teardown.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Closed locally; not an error.
			default:
				s.deliver(recognizer.Event{
					Kind: recognizer.EventError,
					Err:  recognizer.NewCaptureError(classifyReadError(err), err),
				})
			}
			return
		}

		var frame eventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.deliver(recognizer.Event{
				Kind: recognizer.EventError,
				Err:  recognizer.NewCaptureError(recognizer.ClassNetwork, fmt.Errorf("remote: malformed frame: %w", err)),
			})
			return
		}

		switch frame.Type {
		case "speech_start":
			s.deliver(recognizer.Event{Kind: recognizer.EventSpeechStart})
		case "final":
			s.deliver(recognizer.Event{
				Kind:       recognizer.EventFinal,
				Transcript: recognizer.Transcript{Text: frame.Text, Confidence: frame.Confidence},
			})
			return
		case "error":
			s.deliver(recognizer.Event{
				Kind: recognizer.EventError,
				Err:  recognizer.NewCaptureError(classFromWire(frame.Class), errors.New(frame.Message)),
			})
			return
		default:
			// Unknown frame types are skipped so the gateway can evolve.
		}
	}
}

// deliver places ev on the event stream unless the session was closed.
func (s *session) deliver(ev recognizer.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// classifyReadError maps a connection read failure to an error class.
func classifyReadError(err error) recognizer.ErrorClass {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusGoingAway {
		return recognizer.ClassAborted
	}
	return recognizer.ClassNetwork
}

// classFromWire maps the gateway's error class string to an ErrorClass.
// Unknown strings are treated as network failures so they stay retryable.
func classFromWire(class string) recognizer.ErrorClass {
	switch c := recognizer.ErrorClass(class); c {
	case recognizer.ClassNetwork, recognizer.ClassAudioCapture, recognizer.ClassAborted,
		recognizer.ClassNoSpeech, recognizer.ClassNoMatch,
		recognizer.ClassPermissionDenied, recognizer.ClassServiceNotAllowed,
		recognizer.ClassNotSupported:
		return c
	}
	return recognizer.ClassNetwork
}
