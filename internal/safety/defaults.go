package safety

// DefaultCriticalTriggers returns the built-in critical trigger phrase list.
// Deployments are expected to extend or replace this via configuration.
func DefaultCriticalTriggers() []string {
	return []string{
		"suicide", "suicidal", "kill myself", "end my life",
		"self-harm", "hurt myself", "cut myself", "harm myself",
		"want to die", "better off dead", "no point living",
		"hurt others", "kill someone", "harm others", "end it all",
		"take my own life", "not worth living", "kill them",
	}
}

// DefaultWarningTriggers returns the built-in warning indicator phrase list.
func DefaultWarningTriggers() []string {
	return []string{
		"hopeless", "worthless", "trapped", "burden",
		"desperate", "overwhelmed", "can't cope", "give up",
		"no way out", "pointless", "useless", "hate myself",
	}
}
