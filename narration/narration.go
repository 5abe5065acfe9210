// Package narration implements the narration orchestrator:
// on each camera switch it assembles a short commentary from the
// ranker's feature snapshot, synthesizes it through a pluggable TTS
// backend, and publishes a Narration event — or silently drops it if
// the backend fails, runs over budget, or is superseded by a newer switch.
package narration

import (
	"context"
	"time"
)

// AudioBlob is a synthesized utterance's audio payload reference.
type AudioBlob struct {
	Ref        string
	DurationMs int
}

// Synthesizer is the pluggable TTS backend. Concrete voices/models are
// an integration concern, not part of the core.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (AudioBlob, error)
}

// Narration is the payload published on the narration topic.
type Narration struct {
	Text            string
	DurationMs      int
	Ts              time.Time
	AudioBlobRef    string
	HasAudioBlobRef bool
}
