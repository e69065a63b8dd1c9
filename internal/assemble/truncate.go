package assemble

import (
	"strings"
)

const ellipsis = "…"

// truncateProse hard-cuts text to fit maxTokens, appending an ellipsis.
// Used for free-form sections where mid-line cuts are acceptable.
func truncateProse(text string, maxTokens, charsPerToken int) (string, bool) {
	if maxTokens <= 0 {
		return "", text != ""
	}
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text, false
	}
	cut := maxChars - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + ellipsis, true
}

// truncateLines drops whole trailing lines until the text fits, then appends
// an ellipsis marker line. Used for line-oriented sections so entries are
// never cut mid-line.
func truncateLines(text string, maxTokens, charsPerToken int) (string, bool) {
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text, false
	}

	lines := strings.Split(text, "\n")
	for len(lines) > 0 {
		lines = lines[:len(lines)-1]
		candidate := strings.Join(lines, "\n")
		if candidate != "" {
			candidate += "\n" + ellipsis
		}
		if len(candidate) <= maxChars {
			return candidate, true
		}
	}
	return ellipsis, true
}
