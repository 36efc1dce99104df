package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mindline/voicescreen/internal/safety"
)

// ValidProviderNames lists the provider names registered by the voicescreen
// binary, per provider kind. Used by [Validate] to warn about unrecognised
// provider names.
var ValidProviderNames = map[string][]string{
	"recognizer":  {"remote", "mock"},
	"synthesizer": {"noop", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

	// Backend
	if cfg.Backend.Endpoint == "" {
		errs = append(errs, errors.New("backend.endpoint is required"))
	}
	if cfg.Backend.RequestTimeout < 0 {
		errs = append(errs, errors.New("backend.request_timeout must not be negative"))
	}

	// Speech
	if cfg.Speech.MaxRetries < 0 {
		errs = append(errs, errors.New("speech.max_retries must not be negative"))
	}
	for name, d := range map[string]int64{
		"speech.listen_timeout":  int64(cfg.Speech.ListenTimeout),
		"speech.silence_timeout": int64(cfg.Speech.SilenceTimeout),
		"speech.backoff_step":    int64(cfg.Speech.BackoffStep),
		"speech.no_match_delay":  int64(cfg.Speech.NoMatchDelay),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	// Presence
	for name, d := range map[string]int64{
		"presence.listening_timeout": int64(cfg.Presence.ListeningTimeout),
		"presence.thinking_timeout":  int64(cfg.Presence.ThinkingTimeout),
		"presence.speaking_timeout":  int64(cfg.Presence.SpeakingTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	// Safety resources
	for i, res := range cfg.Safety.Resources {
		if res.Name == "" || res.Contact == "" {
			errs = append(errs, fmt.Errorf("safety.resources[%d] needs both name and contact", i))
		}
	}
	switch cfg.Safety.ResourceKind {
	case "", safety.KindHotline, safety.KindText, safety.KindEmergency:
	default:
		errs = append(errs, fmt.Errorf("safety.resource_kind %q is invalid; valid values: hotline, text, emergency", cfg.Safety.ResourceKind))
	}

	// Provider name validation warns rather than fails, so out-of-tree
	// registrations stay usable.
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("synthesizer", cfg.Providers.Synthesizer.Name)

	if cfg.Providers.Recognizer.Name == "" {
		slog.Warn("no recognizer provider configured; voice input will fall back to typed input")
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name)
	}
}
