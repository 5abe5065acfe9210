package analyzer

import (
	"context"
	"strings"

	"github.com/clipperhouse/uax29/v2/words"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// speechFloorDB is the energy-presence gate used by the heuristic
// recognizer to decide "someone is talking." It sits above the ranker's
// -60 dBFS energy floor, so audio between -60 and -55 dBFS emits no
// segment.
const (
	speechFloorDB = -55.0
)

// HeuristicSpeechRecognizer is the deterministic reference
// SpeechRecognizer. It does not transcribe real speech (concrete model
// weights are out of scope here); instead it treats any audio chunk
// whose energy clears speechFloorDB as one utterance and reports a fixed
// placeholder transcript, so the full keyword/energy pipeline is still
// exercisable. Keyword matching is real: it tokenizes on Unicode word
// boundaries and matches case-insensitively, whole-word, against Keywords.
type HeuristicSpeechRecognizer struct {
	// Keywords is the configured bag matched against recognized text,
	// case-insensitive and whole-word.
	Keywords []string
	// Placeholder is the transcript emitted whenever the energy gate
	// passes; defaults to a generic phrase containing no keywords.
	Placeholder string
}

// DefaultKeywords returns the built-in keyword bag used when no
// keyword configuration is supplied.
func DefaultKeywords() []string {
	return []string{"goal", "score", "wow", "amazing", "look"}
}

// NewHeuristicSpeechRecognizer returns a recognizer with the given
// keyword bag.
func NewHeuristicSpeechRecognizer(keywords []string) *HeuristicSpeechRecognizer {
	return &HeuristicSpeechRecognizer{
		Keywords:    keywords,
		Placeholder: "the crowd reacts",
	}
}

// Transcribe implements SpeechRecognizer.
func (r *HeuristicSpeechRecognizer) Transcribe(ctx context.Context, chunk media.AudioChunk) ([]observe.SpeechSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	energy := chunk.EnergyDB()
	if energy < speechFloorDB {
		return nil, nil
	}

	text := r.Placeholder
	tokens := TokenizeWords(text)
	keywords := matchKeywords(tokens, r.Keywords)

	wordTimings := make([]observe.WordTiming, 0, len(tokens))
	dur := chunk.Duration().Seconds()
	if dur <= 0 {
		dur = 1
	}
	step := dur / float64(len(tokens))
	for i, tok := range tokens {
		wordTimings = append(wordTimings, observe.WordTiming{
			Word:     tok,
			StartSec: float64(i) * step,
			EndSec:   float64(i+1) * step,
		})
	}

	return []observe.SpeechSegment{{
		Text:        text,
		StartTs:     chunk.Timestamp,
		EndTs:       chunk.Timestamp.Add(chunk.Duration()),
		WordTimings: wordTimings,
		Keywords:    keywords,
		EnergyDB:    energy,
	}}, nil
}

// TokenizeWords splits s into Unicode word-boundary tokens, discarding
// pure punctuation/whitespace segments, so that "goal!" still yields the
// token "goal" for whole-word keyword matching.
func TokenizeWords(s string) []string {
	seg := words.FromBytes([]byte(s))
	var out []string
	for seg.Next() {
		tok := string(seg.Value())
		if !isWordlike(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isWordlike(tok string) bool {
	for _, r := range tok {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// matchKeywords returns the subset of keywords present as whole-word,
// case-insensitive matches among tokens.
func matchKeywords(tokens []string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	var matched []string
	for _, kw := range keywords {
		if present[strings.ToLower(kw)] {
			matched = append(matched, kw)
		}
	}
	return matched
}
