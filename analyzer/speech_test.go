package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/media"
)

func TestHeuristicSpeechRecognizerSilenceYieldsNoSegment(t *testing.T) {
	t.Parallel()
	r := NewHeuristicSpeechRecognizer([]string{"goal"})
	chunk := media.AudioChunk{SampleRate: 16000, Samples: make([]int16, 16000)}
	segs, err := r.Transcribe(context.Background(), chunk)
	require.NoError(t, err)
	require.Empty(t, segs)
}

func TestHeuristicSpeechRecognizerLoudAudioYieldsSegment(t *testing.T) {
	t.Parallel()
	r := NewHeuristicSpeechRecognizer([]string{"crowd"})
	samples := make([]int16, 16000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 20000
		} else {
			samples[i] = -20000
		}
	}
	chunk := media.AudioChunk{Timestamp: time.Now(), SampleRate: 16000, Samples: samples}
	segs, err := r.Transcribe(context.Background(), chunk)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Contains(t, segs[0].Keywords, "crowd")
	require.NotEmpty(t, segs[0].WordTimings)
}

func TestTokenizeWordsStripsPunctuation(t *testing.T) {
	t.Parallel()
	tokens := TokenizeWords("What a goal! Incredible.")
	require.Equal(t, []string{"What", "a", "goal", "Incredible"}, tokens)
}

func TestMatchKeywordsCaseInsensitiveWholeWord(t *testing.T) {
	t.Parallel()
	tokens := TokenizeWords("The Goalkeeper made a save")
	matched := matchKeywords(tokens, []string{"goal", "save"})
	require.Equal(t, []string{"save"}, matched, "goal must not match goalkeeper (whole-word only)")
}
