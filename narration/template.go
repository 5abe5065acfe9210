package narration

import (
	"fmt"
	"strings"

	"github.com/zsiec/autodirector/analyzer"
	"github.com/zsiec/autodirector/ranker"
)

const defaultMaxWords = 12

// SafetyFilter is a deterministic keyword-list filter over PII/
// profanity terms, reusing the same Unicode word-boundary tokenizer as
// the speech recognizer so punctuation can't be used to dodge a match.
type SafetyFilter struct {
	Blocklist []string
}

// Safe reports whether text contains no whole-word, case-insensitive
// match against the blocklist.
func (f SafetyFilter) Safe(text string) bool {
	if len(f.Blocklist) == 0 {
		return true
	}
	tokens := analyzer.TokenizeWords(text)
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	for _, bad := range f.Blocklist {
		if present[strings.ToLower(bad)] {
			return false
		}
	}
	return true
}

// buildText picks the narration text deterministically: scene tags
// take priority, then top detected objects, then recent speech (if it
// passes the safety filter), else a generic fallback. Determinism here
// is what makes the orchestrator testable without a TTS backend.
func buildText(f ranker.Features, filter SafetyFilter, maxWords int) string {
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}

	switch {
	case len(f.Tags) > 0:
		return truncateWords(fmt.Sprintf("now on %s", strings.Join(f.Tags, " and ")), maxWords)
	case len(f.TopObjects) > 0:
		return truncateWords(fmt.Sprintf("focus shifts to the %s", strings.Join(f.TopObjects, " and ")), maxWords)
	case f.RecentSpeechText != "" && filter.Safe(f.RecentSpeechText):
		return truncateWords(f.RecentSpeechText, maxWords)
	default:
		return "switching camera"
	}
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}
