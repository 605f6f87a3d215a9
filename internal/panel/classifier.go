package panel

import "strings"

// DefaultOfflinePhrases are the backend failure messages that mean "the
// model server is unreachable", matched case-insensitively as substrings.
// They mirror the messages the assistant API emits when Ollama is down.
var DefaultOfflinePhrases = []string{
	"cannot connect to ollama",
	"ollama server timeout",
	"lost connection to ollama",
	"not running",
	"connection refused",
}

// Classifier decides whether a failure message indicates the backend went
// offline (as opposed to a request-specific error like a missing snapshot).
type Classifier struct {
	phrases []string
}

// NewClassifier builds a classifier; with no phrases it uses the defaults.
func NewClassifier(phrases ...string) *Classifier {
	if len(phrases) == 0 {
		phrases = DefaultOfflinePhrases
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &Classifier{phrases: lowered}
}

// IsOffline reports whether msg matches any offline phrase.
func (c *Classifier) IsOffline(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range c.phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
