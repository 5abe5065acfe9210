package narration

import (
	"context"

	"github.com/google/uuid"

	"github.com/zsiec/autodirector/analyzer"
)

// SilentSynthesizer is the deterministic reference Synthesizer: it
// never produces audible audio, only a blob reference and a duration
// proportional to the word count, so the orchestrator's budget and
// cancellation logic are exercisable without a real TTS backend.
type SilentSynthesizer struct {
	// MsPerWord sets the synthetic speaking rate.
	MsPerWord int
}

// NewSilentSynthesizer returns a SilentSynthesizer at a natural
// speaking rate of roughly 170 words/minute.
func NewSilentSynthesizer() *SilentSynthesizer {
	return &SilentSynthesizer{MsPerWord: 350}
}

// Synthesize implements Synthesizer.
func (s *SilentSynthesizer) Synthesize(ctx context.Context, text string) (AudioBlob, error) {
	if err := ctx.Err(); err != nil {
		return AudioBlob{}, err
	}
	n := len(analyzer.TokenizeWords(text))
	if n == 0 {
		n = 1
	}
	msPerWord := s.MsPerWord
	if msPerWord <= 0 {
		msPerWord = 350
	}
	return AudioBlob{
		Ref:        "silent-" + uuid.NewString(),
		DurationMs: n * msPerWord,
	}, nil
}
