package safety

import (
	"fmt"
	"strings"
)

// ResourceKind categorises an emergency contact.
type ResourceKind string

const (
	// KindHotline is a voice crisis line.
	KindHotline ResourceKind = "hotline"

	// KindText is a text/SMS crisis service.
	KindText ResourceKind = "text"

	// KindEmergency is a general emergency number.
	KindEmergency ResourceKind = "emergency"
)

// Resource is one emergency support contact surfaced during a crisis.
type Resource struct {
	// Name is the human-readable service name.
	Name string `yaml:"name"`

	// Contact is the number or instruction (e.g., "988", "Text HOME to 741741").
	Contact string `yaml:"contact"`

	// Country is the ISO 3166-1 alpha-2 country the resource serves.
	// Empty means globally applicable.
	Country string `yaml:"country"`

	// Kind categorises the resource.
	Kind ResourceKind `yaml:"kind"`
}

// DefaultResources returns the built-in emergency resource list (US).
func DefaultResources() []Resource {
	return []Resource{
		{Name: "Suicide & Crisis Lifeline", Contact: "988 (available 24/7)", Country: "US", Kind: KindHotline},
		{Name: "Emergency Services", Contact: "911", Country: "US", Kind: KindEmergency},
		{Name: "Crisis Text Line", Contact: "Text HOME to 741741", Country: "US", Kind: KindText},
	}
}

// FilterResources returns the resources matching country and kind. Empty
// country or kind match everything; resources with an empty country match any
// requested country.
func FilterResources(resources []Resource, country string, kind ResourceKind) []Resource {
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		if country != "" && r.Country != "" && !strings.EqualFold(r.Country, country) {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Messages holds the user-facing safety texts. The orchestrator is the only
// component that renders these; detection itself stays silent.
type Messages struct {
	// Crisis is spoken immediately when a CRITICAL assessment fires.
	Crisis string `yaml:"crisis"`

	// Warning is appended to the conversation after a WARNING assessment.
	Warning string `yaml:"warning"`
}

// DefaultMessages returns the built-in crisis and warning texts.
func DefaultMessages() Messages {
	return Messages{
		Crisis: "I'm very concerned about what you've shared with me. " +
			"Your safety is the most important thing right now. " +
			"Please reach out for immediate support. " +
			"You don't have to go through this alone. There are people who want to help you, " +
			"and things can get better. Please reach out right away.",
		Warning: "I hear that you're going through a difficult time. " +
			"While I can help with this screening, please remember that professional support " +
			"is available if you need someone to talk to.",
	}
}

// RenderCrisisMessage appends the given resources to the base crisis message
// as a readable contact list.
func RenderCrisisMessage(base string, resources []Resource) string {
	if len(resources) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nPlease reach out for immediate support:")
	for _, r := range resources {
		fmt.Fprintf(&b, "\n• %s: %s", r.Name, r.Contact)
	}
	return b.String()
}
