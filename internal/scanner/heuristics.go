package scanner

import "strings"

// RiskThresholds names the cheap content signals that predict parser distress
// on a file. A zero value for any numeric field disables that signal. Two
// instances are in use: a sensitive pipeline-level gate that routes files
// straight to the text tier, and a higher-threshold in-scanner guard as a
// last resort. Their values intentionally differ; see DESIGN.md.
type RiskThresholds struct {
	// MaxContentBytes routes files larger than this to the text tier.
	MaxContentBytes int

	// MaxOpenBraces bounds the count of open-brace characters, a cheap
	// proxy for nesting depth.
	MaxOpenBraces int

	// MaxCloseBraces bounds the count of close-brace characters. The
	// in-scanner guard checks both brace kinds; the gate only opens.
	MaxCloseBraces int

	// MaxMacroCount bounds macro definitions plus attribute openers.
	MaxMacroCount int

	// PathFragments are substrings of the repository-qualified file path
	// that mark known-pathological locations.
	PathFragments []string

	// ContentFragments are substrings of the file content that mark
	// known-pathological inputs.
	ContentFragments []string
}

// DefaultGateThresholds returns the pipeline-level routing thresholds.
func DefaultGateThresholds() RiskThresholds {
	return RiskThresholds{
		MaxContentBytes: 200_000,
		MaxOpenBraces:   500,
		MaxMacroCount:   100,
		PathFragments:   []string{"rust-lang/rust/tests/", "associated-consts"},
		ContentFragments: []string{
			"expected `!`",
			"issue-105330",
		},
	}
}

// DefaultGuardThresholds returns the in-scanner thresholds. They trip later
// than the gate's, catching only what the gate was configured to let through.
func DefaultGuardThresholds() RiskThresholds {
	return RiskThresholds{
		MaxContentBytes: 500_000,
		MaxOpenBraces:   1000,
		MaxCloseBraces:  1000,
		MaxMacroCount:   200,
		PathFragments:   []string{"rust-lang/rust/tests/"},
	}
}

// Risky reports whether any signal fires for the given file. The path is the
// repository-qualified file path so repository-level fragments can match.
func (t RiskThresholds) Risky(path, content string) bool {
	for _, frag := range t.PathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}

	if t.MaxContentBytes > 0 && len(content) > t.MaxContentBytes {
		return true
	}

	if t.MaxMacroCount > 0 && MacroDensity(content) > t.MaxMacroCount {
		return true
	}

	if t.MaxOpenBraces > 0 && strings.Count(content, "{") > t.MaxOpenBraces {
		return true
	}
	if t.MaxCloseBraces > 0 && strings.Count(content, "}") > t.MaxCloseBraces {
		return true
	}

	for _, frag := range t.ContentFragments {
		if strings.Contains(content, frag) {
			return true
		}
	}

	return false
}

// MacroDensity counts macro definitions plus attribute openers, the signal
// used for the macro-usage threshold.
func MacroDensity(content string) int {
	return strings.Count(content, "macro_rules!") + strings.Count(content, "#[")
}
