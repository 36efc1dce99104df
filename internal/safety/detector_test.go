package safety

import "testing"

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(Config{})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

// ── Keyword classification ───────────────────────────────────────────────────

func TestAssessCriticalTriggers(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	cases := []struct {
		name string
		text string
	}{
		{"plain phrase", "I want to kill myself"},
		{"upper case", "I WANT TO KILL MYSELF"},
		{"mixed case with punctuation", "Sometimes I think about Suicide."},
		{"phrase mid-sentence", "lately it feels like I'd be better off dead, honestly"},
		{"hyphenated trigger", "I've been thinking about self-harm again"},
		{"harm to others", "I want to hurt others"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := d.Assess(tc.text, QuestionContext{})
			if got.Level != LevelCritical {
				t.Fatalf("want CRITICAL, got %s", got.Level)
			}
			if got.MatchedTrigger == "" {
				t.Fatal("want a matched trigger, got none")
			}
		})
	}
}

func TestAssessWarningTriggers(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	got := d.Assess("I feel hopeless and worthless", QuestionContext{})
	if got.Level != LevelWarning {
		t.Fatalf("want WARNING, got %s", got.Level)
	}
	if got.MatchedTrigger != "hopeless" {
		t.Fatalf("want first matched trigger %q, got %q", "hopeless", got.MatchedTrigger)
	}
}

func TestAssessNone(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	cases := []string{
		"I'm stressed about work",
		"my diet has been going well",       // "die" inside "diet" must not match
		"the suicidegarden band is playing", // no word boundary
		"",
	}
	for _, text := range cases {
		got := d.Assess(text, QuestionContext{})
		if got.Level != LevelNone {
			t.Fatalf("Assess(%q): want NONE, got %s (trigger %q)", text, got.Level, got.MatchedTrigger)
		}
	}
}

func TestAssessCriticalBeatsWarning(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	got := d.Assess("I feel hopeless and want to die", QuestionContext{})
	if got.Level != LevelCritical {
		t.Fatalf("want CRITICAL, got %s", got.Level)
	}
}

// ── Item-9 override ──────────────────────────────────────────────────────────

func TestAssessItemNineOverride(t *testing.T) {
	t.Parallel()
	d := newDetector(t)
	q9 := QuestionContext{IsItemNine: true}

	t.Run("affirmative without keywords is critical", func(t *testing.T) {
		t.Parallel()
		got := d.Assess("yes, nearly every day", q9)
		if got.Level != LevelCritical {
			t.Fatalf("want CRITICAL, got %s", got.Level)
		}
		if !got.ItemNineContext {
			t.Fatal("want ItemNineContext set")
		}
		if got.MatchedTrigger != "" {
			t.Fatalf("override path should not report a trigger, got %q", got.MatchedTrigger)
		}
	})

	t.Run("ambiguous answer is critical", func(t *testing.T) {
		t.Parallel()
		got := d.Assess("it crossed my mind once or twice", q9)
		if got.Level != LevelCritical {
			t.Fatalf("want CRITICAL, got %s", got.Level)
		}
	})

	t.Run("unambiguous negatives fall through", func(t *testing.T) {
		t.Parallel()
		for _, text := range []string{"no", "never", "No, not at all", "nope"} {
			got := d.Assess(text, q9)
			if got.Level != LevelNone {
				t.Fatalf("Assess(%q): want NONE, got %s", text, got.Level)
			}
		}
	})

	t.Run("long qualified negative stays critical", func(t *testing.T) {
		t.Parallel()
		got := d.Assess("no, well, maybe sometimes when things get really bad", q9)
		if got.Level != LevelCritical {
			t.Fatalf("want CRITICAL, got %s", got.Level)
		}
	})

	t.Run("negative with critical keyword still matches keywords", func(t *testing.T) {
		t.Parallel()
		// Falls through the override, then hits "kill myself".
		got := d.Assess("never kill myself", q9)
		if got.Level != LevelCritical {
			t.Fatalf("want CRITICAL, got %s", got.Level)
		}
		if got.MatchedTrigger != "kill myself" {
			t.Fatalf("want trigger %q, got %q", "kill myself", got.MatchedTrigger)
		}
	})
}

// ── Configuration ────────────────────────────────────────────────────────────

func TestAssessCustomTriggers(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(Config{
		CriticalTriggers: []string{"code red"},
		WarningTriggers:  []string{"code yellow"},
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	if got := d.Assess("this is a CODE RED situation", QuestionContext{}); got.Level != LevelCritical {
		t.Fatalf("want CRITICAL, got %s", got.Level)
	}
	if got := d.Assess("code yellow, please", QuestionContext{}); got.Level != LevelWarning {
		t.Fatalf("want WARNING, got %s", got.Level)
	}
	// Defaults are replaced, not extended.
	if got := d.Assess("I want to kill myself", QuestionContext{}); got.Level != LevelNone {
		t.Fatalf("want NONE with custom triggers, got %s", got.Level)
	}
}
