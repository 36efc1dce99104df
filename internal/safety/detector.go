// Package safety implements crisis detection for screening conversations.
//
// The central type is [Detector], a pure classifier from utterance text (plus
// the active screening-question context) to an [Assessment]. Detection is
// keyword-driven with one override: while the self-harm ideation question
// (PHQ-9 item 9) is active, anything short of an unambiguous negative answer
// is treated as CRITICAL regardless of keyword matches.
//
// Trigger phrase lists are configuration. They are compiled once at
// construction and never mutated afterwards, so a Detector is safe for
// concurrent use.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Level is the severity of a crisis assessment.
type Level int

const (
	// LevelNone means no crisis indicator was found.
	LevelNone Level = iota

	// LevelWarning means concerning language was found that does not require
	// interrupting the conversation.
	LevelWarning

	// LevelCritical means the utterance indicates possible self-harm or
	// harm-to-others risk and the crisis protocol must take over.
	LevelCritical
)

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// QuestionContext carries the screening-question state relevant to detection.
type QuestionContext struct {
	// IsItemNine is true while the active screening question is PHQ-9 item 9
	// (self-harm ideation).
	IsItemNine bool
}

// Assessment is the result of classifying one utterance.
type Assessment struct {
	// Level is the detected severity.
	Level Level

	// MatchedTrigger is the configured phrase that fired, when the level was
	// reached through keyword matching. Empty for the item-9 override path.
	MatchedTrigger string

	// ItemNineContext records whether the item-9 override context was active
	// during assessment.
	ItemNineContext bool
}

// Config holds the detector's trigger phrase sets. Empty slices fall back to
// the built-in defaults.
type Config struct {
	// CriticalTriggers are phrases that classify an utterance as CRITICAL.
	CriticalTriggers []string

	// WarningTriggers are phrases that classify an utterance as WARNING.
	WarningTriggers []string
}

// maxNegativeLen bounds how long an item-9 answer may be and still count as
// an unambiguous negative. Longer answers containing a negation marker
// ("no, well, sometimes...") stay on the cautious CRITICAL path.
const maxNegativeLen = 20

// itemNineNegative matches explicit negation markers in an item-9 answer.
var itemNineNegative = regexp.MustCompile(`(?i)\b(no|never|nope|not at all|haven't|don't|absolutely not|definitely not|of course not)\b`)

// Detector classifies utterances. Create one per session with [NewDetector].
type Detector struct {
	critical []trigger
	warning  []trigger
}

// trigger pairs a configured phrase with its compiled whole-phrase matcher.
type trigger struct {
	phrase string
	re     *regexp.Regexp
}

// NewDetector compiles the trigger sets in cfg into a ready Detector.
// Empty trigger lists use the built-in defaults.
func NewDetector(cfg Config) (*Detector, error) {
	criticalPhrases := cfg.CriticalTriggers
	if len(criticalPhrases) == 0 {
		criticalPhrases = DefaultCriticalTriggers()
	}
	warningPhrases := cfg.WarningTriggers
	if len(warningPhrases) == 0 {
		warningPhrases = DefaultWarningTriggers()
	}

	critical, err := compileTriggers(criticalPhrases)
	if err != nil {
		return nil, fmt.Errorf("safety: critical triggers: %w", err)
	}
	warning, err := compileTriggers(warningPhrases)
	if err != nil {
		return nil, fmt.Errorf("safety: warning triggers: %w", err)
	}

	return &Detector{critical: critical, warning: warning}, nil
}

// compileTriggers builds a case-insensitive whole-phrase matcher per phrase.
// Word boundaries prevent substring false positives ("die" inside "diet").
func compileTriggers(phrases []string) ([]trigger, error) {
	out := make([]trigger, 0, len(phrases))
	for _, phrase := range phrases {
		p := strings.TrimSpace(phrase)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(p)) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile trigger %q: %w", phrase, err)
		}
		out = append(out, trigger{phrase: p, re: re})
	}
	return out, nil
}

// Assess classifies text under qctx. It is pure: no I/O, no shared state.
//
// Priority: while item 9 is active, any answer that is not an unambiguous
// negative is CRITICAL, overriding keyword results. Otherwise critical
// triggers beat warning triggers beat none.
func (d *Detector) Assess(text string, qctx QuestionContext) Assessment {
	normalized := strings.TrimSpace(strings.ToLower(text))

	if qctx.IsItemNine && !isUnambiguousNegative(normalized) {
		return Assessment{Level: LevelCritical, ItemNineContext: true}
	}

	if hit, ok := match(d.critical, normalized); ok {
		return Assessment{Level: LevelCritical, MatchedTrigger: hit, ItemNineContext: qctx.IsItemNine}
	}
	if hit, ok := match(d.warning, normalized); ok {
		return Assessment{Level: LevelWarning, MatchedTrigger: hit, ItemNineContext: qctx.IsItemNine}
	}
	return Assessment{Level: LevelNone, ItemNineContext: qctx.IsItemNine}
}

// isUnambiguousNegative reports whether an item-9 answer clearly denies
// ideation: it carries an explicit negation marker and is short enough to
// leave no room for a qualified "no".
func isUnambiguousNegative(normalized string) bool {
	if normalized == "" {
		return false
	}
	return len([]rune(normalized)) <= maxNegativeLen && itemNineNegative.MatchString(normalized)
}

// match returns the first trigger whose phrase occurs in normalized.
func match(triggers []trigger, normalized string) (string, bool) {
	for _, t := range triggers {
		if t.re.MatchString(normalized) {
			return t.phrase, true
		}
	}
	return "", false
}
