// Package ranker implements the Ranker: at a fixed tick
// rate, for each live camera it reads the latest observations, computes
// a feature vector, fuses it into one scalar score with a short
// rationale, and publishes a CameraScore.
package ranker

import (
	"time"

	"github.com/zsiec/autodirector/media"
)

// Features is one camera's feature vector for one tick. Every numeric
// field is normalized to [0,1].
type Features struct {
	FaceSalience       float64
	MainSubjectOverlap float64
	MotionSalience     float64
	SpeechEnergy       float64
	KeywordBoost       float64
	FramingScore       float64
	NoveltyDecay       float64
	ContinuityBonus    float64
	Interest           float64

	Tags             []string
	TopObjects       []string
	RecentSpeechText string

	// HasRecentSpeech/SpeechEndTs let the decision engine align switches to
	// word boundaries without importing the observe
	// package's segment type directly.
	HasRecentSpeech bool
	SpeechEndTs     time.Time
}

// Score is the fused per-camera result published on the scores topic.
type Score struct {
	CamID    media.CameraID
	Ts       time.Time
	Score    float64
	Features Features
	Reason   string
	Degraded bool
}

// term names a single fusion contributor, paired with its configured
// weight and whether it was available this tick — used both for fusion
// and for building the rationale string.
type term struct {
	name      string
	value     float64
	weight    float64
	available bool
}
