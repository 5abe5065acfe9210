package analyzer

import (
	"context"
	"time"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// Per-modality call deadlines.
const (
	DetectorDeadline = 50 * time.Millisecond
	TrackerDeadline  = 50 * time.Millisecond
	SceneDeadline    = 1000 * time.Millisecond
	SpeechDeadline   = 800 * time.Millisecond
)

// SceneCadence is the minimum interval between SceneDescriber calls
// for a single camera; scene description is expensive, so it runs at a
// much lower cadence than per-frame detection.
const SceneCadence = 700 * time.Millisecond

// Detector detects objects/faces in a single video frame.
type Detector interface {
	Detect(ctx context.Context, frame media.Frame) ([]observe.Detection, error)
}

// Tracker maintains one tracking instance per camera, updating tracks
// from the latest detections and exposing the cam's current main
// subject.
type Tracker interface {
	Update(ctx context.Context, cam media.CameraID, detections []observe.Detection, frameTs time.Time) ([]observe.Track, error)
	// MainSubject returns the track id judged the cam's lead subject
	// over the last N=30 ticks, or false if none qualifies.
	MainSubject(cam media.CameraID) (trackID int, ok bool)
}

// SceneDescriber produces a holistic scene description from a frame and
// its detections.
type SceneDescriber interface {
	Describe(ctx context.Context, frame media.Frame, detections []observe.Detection) (observe.SceneDescription, error)
}

// SpeechRecognizer transcribes an audio window into speech segments with
// word-level timing and keyword matches.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, chunk media.AudioChunk) ([]observe.SpeechSegment, error)
}
