// Package noop provides a silent synthesizer used when the platform reports
// no speech synthesis capability. Output degrades to text-only: every Speak
// call completes immediately and successfully, so the rest of the pipeline
// (queue ordering, completion handles, presence transitions) behaves exactly
// as it would with audio.
package noop

import (
	"context"

	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
)

// Provider implements synthesizer.Provider without producing audio.
type Provider struct{}

// New creates a silent Provider.
func New() *Provider { return &Provider{} }

// Name implements synthesizer.Provider.
func (*Provider) Name() string { return "noop" }

// Speak implements synthesizer.Provider. It completes immediately unless ctx
// is already cancelled.
func (*Provider) Speak(ctx context.Context, _ string, _ synthesizer.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

var _ synthesizer.Provider = (*Provider)(nil)
