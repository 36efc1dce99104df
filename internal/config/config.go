// Package config provides the configuration schema, loader, and provider
// registry for the voicescreen front end.
package config

import (
	"time"

	"github.com/mindline/voicescreen/internal/safety"
)

// LogLevel controls log verbosity.
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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Safety    SafetyConfig    `yaml:"safety"`
	Presence  PresenceConfig  `yaml:"presence"`
	Speech    SpeechConfig    `yaml:"speech"`
	Providers ProvidersConfig `yaml:"providers"`

	// Greeting is spoken and displayed when a session starts. Empty skips
	// the greeting.
	Greeting string `yaml:"greeting"`
}

// ServerConfig holds the admin endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving metrics and health endpoints
	// (e.g. ":8080"). Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogUtterances enables logging of user utterance content. Off by
	// default: transcripts of a screening conversation are sensitive.
	LogUtterances bool `yaml:"log_utterances"`
}

// BackendConfig points at the conversational screening service.
type BackendConfig struct {
	// Endpoint is the full URL of the service's conversation resource.
	Endpoint string `yaml:"endpoint"`

	// AuthToken is a bearer token attached to every request, if set.
	AuthToken string `yaml:"auth_token"`

	// RequestTimeout bounds a single conversational turn. Zero uses the
	// client default.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SafetyConfig tunes crisis detection and the support content shown when it
// fires. Empty trigger lists and messages fall back to the built-in defaults.
type SafetyConfig struct {
	CriticalTriggers []string          `yaml:"critical_triggers"`
	WarningTriggers  []string          `yaml:"warning_triggers"`
	Messages         safety.Messages   `yaml:"messages"`
	Resources        []safety.Resource `yaml:"resources"`

	// ResourceCountry narrows the surfaced resources to one country
	// (ISO 3166-1 alpha-2). Empty keeps every configured resource.
	ResourceCountry string `yaml:"resource_country"`

	// ResourceKind narrows the surfaced resources to one kind
	// (hotline, text, emergency). Empty keeps every kind.
	ResourceKind safety.ResourceKind `yaml:"resource_kind"`
}

// PresenceConfig sets how long the avatar may stay in each non-idle state
// before being forced back to idle. Zero disables the timeout for a state.
type PresenceConfig struct {
	ListeningTimeout time.Duration `yaml:"listening_timeout"`
	ThinkingTimeout  time.Duration `yaml:"thinking_timeout"`
	SpeakingTimeout  time.Duration `yaml:"speaking_timeout"`
}

// SpeechConfig tunes voice capture and synthesis.
type SpeechConfig struct {
	// Language is the BCP-47 tag used for recognition and synthesis.
	Language string `yaml:"language"`

	// ListenTimeout bounds a capture with no detected speech.
	ListenTimeout time.Duration `yaml:"listen_timeout"`

	// SilenceTimeout bounds a capture after speech was detected.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`

	// MaxRetries bounds capture retries before falling back to typed input.
	MaxRetries int `yaml:"max_retries"`

	// BackoffStep is the linear backoff unit between capture retries.
	BackoffStep time.Duration `yaml:"backoff_step"`

	// NoMatchDelay is the fixed pause before retrying unrecognised speech.
	NoMatchDelay time.Duration `yaml:"no_match_delay"`

	// Voice configures synthesis output.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig selects the synthesis voice and prosody.
type VoiceConfig struct {
	Name   string  `yaml:"name"`
	Rate   float64 `yaml:"rate"`
	Pitch  float64 `yaml:"pitch"`
	Volume float64 `yaml:"volume"`
}

// ProvidersConfig declares which provider implementation to use for each
// speech direction. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	Recognizer  ProviderEntry `yaml:"recognizer"`
	Synthesizer ProviderEntry `yaml:"synthesizer"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "remote").
	Name string `yaml:"name"`

	// APIKey is the authentication credential for the provider, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}
