package advisor

import (
	"strings"
)

const maxSuggestions = 3

// SplitSuggestions splits a raw model response at the first sentinel. Without
// a sentinel the whole response is the primary answer and there are no
// suggestions. Only lines starting with "1", "2", "3" or "- " are kept, at
// most three of them.
//
// A body that itself contains the sentinel is cut at that point.
func SplitSuggestions(raw string) (primary string, suggestions []string, found bool) {
	primary, rest, found := strings.Cut(raw, Sentinel)
	if !found {
		return raw, []string{}, false
	}
	return primary, parseSuggestions(rest), true
}

func parseSuggestions(text string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if !hasSuggestionPrefix(s) {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func hasSuggestionPrefix(s string) bool {
	for _, p := range []string{"1", "2", "3", "- "} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ExtractTitle pulls the diagnosis title from the first line of the report
// when it is a "**Title:**" line or a markdown heading.
func ExtractTitle(report, cropType string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(report), "\n")
	if strings.Contains(first, "**Title:**") || strings.HasPrefix(first, "#") {
		title := strings.ReplaceAll(first, "**Title:**", "")
		title = strings.TrimSpace(strings.ReplaceAll(title, "#", ""))
		if title != "" {
			return title
		}
	}
	return DefaultTitle(cropType)
}

func DefaultTitle(cropType string) string {
	return "Diagnosis for " + cropType
}

func fallbackTitle(cropType string) string {
	return "Plant Health Analysis: " + cropType
}
