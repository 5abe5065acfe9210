// Package pipeline orchestrates the frame-to-observation data flow: a
// sampler ticks at the analysis rate, pulls the newest frame and audio
// window for each live camera, and dispatches analyzer calls through a
// bounded worker pool, writing results into the observation cache.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/autodirector/analyzer"
	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// FrameSource is the subset of the ingress adapter the sampler uses to
// obtain canonical frames and audio. Accepting an interface here
// decouples the sampler from the concrete Adapter type, making it
// testable with stubs.
type FrameSource interface {
	Cams() []media.CameraID
	Sample(cam media.CameraID) (media.Frame, bool)
	AudioWindow(cam media.CameraID, windowSec float64) (media.AudioChunk, bool)
	Degraded(cam media.CameraID) bool
}

// Config tunes the sampler's tick rate and worker pool.
type Config struct {
	// Rate is the analysis tick interval. Defaults to 100ms (10 Hz).
	Rate time.Duration
	// MaxParallel bounds concurrently running analyzer calls. Zero
	// means twice the live camera count, re-evaluated as cameras join
	// and leave.
	MaxParallel int
	// AudioWindowSec is the audio window handed to the speech
	// recognizer. Defaults to 1.0.
	AudioWindowSec float64
	// SceneCadence is the minimum interval between scene-describer
	// calls per camera. Defaults to analyzer.SceneCadence.
	SceneCadence time.Duration
}

// DebugStats captures sampler counters for the debug surface of the
// control API, useful for diagnosing analyzer backpressure.
type DebugStats struct {
	FramesSampled      int64 `json:"framesSampled"`
	AudioWindows       int64 `json:"audioWindows"`
	AnalyzerCalls      int64 `json:"analyzerCalls"`
	UnavailableResults int64 `json:"unavailableResults"`
	MalformedDropped   int64 `json:"malformedDropped"`
	PoolSaturated      int64 `json:"poolSaturated"`
}

// jobKey identifies one in-flight analyzer call class so the sampler
// never stacks a second call of the same kind for the same camera
// behind a slow first one.
type jobKey struct {
	cam  media.CameraID
	kind observe.Kind
}

// Sampler is the tick scheduler for the analyzer tier. Each tick it
// obtains the newest frame/audio per live camera and dispatches
// detector+tracker, scene, and speech calls into the worker pool. It
// never blocks the tick loop on an analyzer: when the pool is
// saturated or a previous call of the same kind is still running, the
// slot is skipped for that tick.
type Sampler struct {
	log   *slog.Logger
	src   FrameSource
	reg   *analyzer.Registry
	cache *observe.Cache
	cfg   Config

	running  atomic.Int32 // analyzer calls currently executing
	inflight sync.WaitGroup

	mu        sync.Mutex
	busy      map[jobKey]bool
	lastScene map[media.CameraID]time.Time

	framesSampled      atomic.Int64
	audioWindows       atomic.Int64
	analyzerCalls      atomic.Int64
	unavailableResults atomic.Int64
	malformedDropped   atomic.Int64
	poolSaturated      atomic.Int64
}

// NewSampler creates a Sampler writing observations into cache.
func NewSampler(src FrameSource, reg *analyzer.Registry, cache *observe.Cache, cfg Config, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 100 * time.Millisecond
	}
	if cfg.AudioWindowSec <= 0 {
		cfg.AudioWindowSec = 1.0
	}
	if cfg.SceneCadence <= 0 {
		cfg.SceneCadence = analyzer.SceneCadence
	}
	return &Sampler{
		log:       log.With("component", "sampler"),
		src:       src,
		reg:       reg,
		cache:     cache,
		cfg:       cfg,
		busy:      make(map[jobKey]bool),
		lastScene: make(map[media.CameraID]time.Time),
	}
}

// Run ticks until ctx is canceled, then waits for in-flight analyzer
// calls to drain. Analyzer deadlines bound the drain time.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.inflight.Wait()
			return nil
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// Debug returns a point-in-time snapshot of the sampler's counters.
func (s *Sampler) Debug() DebugStats {
	return DebugStats{
		FramesSampled:      s.framesSampled.Load(),
		AudioWindows:       s.audioWindows.Load(),
		AnalyzerCalls:      s.analyzerCalls.Load(),
		UnavailableResults: s.unavailableResults.Load(),
		MalformedDropped:   s.malformedDropped.Load(),
		PoolSaturated:      s.poolSaturated.Load(),
	}
}

func (s *Sampler) maxParallel(liveCams int) int {
	if s.cfg.MaxParallel > 0 {
		return s.cfg.MaxParallel
	}
	n := liveCams * 2
	if n < 2 {
		n = 2
	}
	return n
}

func (s *Sampler) tick(ctx context.Context, now time.Time) {
	cams := s.src.Cams()
	limit := s.maxParallel(len(cams))

	for _, cam := range cams {
		if s.src.Degraded(cam) {
			// A degraded camera occupies a slot but produces no
			// samples; its next score is forced to zero downstream.
			continue
		}

		frame, haveFrame := s.src.Sample(cam)
		if haveFrame {
			s.framesSampled.Add(1)
			s.dispatch(ctx, limit, jobKey{cam, observe.KindDetector}, func(cctx context.Context) {
				s.runDetectTrack(cctx, cam, frame)
			})

			if s.sceneDue(cam, now) {
				s.dispatch(ctx, limit, jobKey{cam, observe.KindScene}, func(cctx context.Context) {
					s.runScene(cctx, cam, frame)
				})
			}
		}

		if chunk, ok := s.src.AudioWindow(cam, s.cfg.AudioWindowSec); ok {
			s.audioWindows.Add(1)
			s.dispatch(ctx, limit, jobKey{cam, observe.KindSpeech}, func(cctx context.Context) {
				s.runSpeech(cctx, cam, chunk)
			})
		}
	}
}

func (s *Sampler) sceneDue(cam media.CameraID, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastScene[cam]; ok && now.Sub(last) < s.cfg.SceneCadence {
		return false
	}
	s.lastScene[cam] = now
	return true
}

// dispatch runs job on a pool worker unless the pool is saturated or a
// call of the same kind for the same camera is already running.
func (s *Sampler) dispatch(ctx context.Context, limit int, key jobKey, job func(context.Context)) {
	s.mu.Lock()
	if s.busy[key] {
		s.mu.Unlock()
		return
	}
	if int(s.running.Load()) >= limit {
		s.mu.Unlock()
		s.poolSaturated.Add(1)
		s.cache.MarkUnavailable(key.cam, key.kind)
		return
	}
	s.busy[key] = true
	s.mu.Unlock()

	s.running.Add(1)
	s.inflight.Add(1)
	s.analyzerCalls.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.busy, key)
			s.mu.Unlock()
			s.running.Add(-1)
			s.inflight.Done()
		}()
		job(ctx)
	}()
}

// runDetectTrack executes the detector and then feeds its output to the
// tracker, each under its own deadline. The tracker is skipped when the
// detector fails since it would only age out tracks on empty input.
func (s *Sampler) runDetectTrack(ctx context.Context, cam media.CameraID, frame media.Frame) {
	lc := s.reg.DetectorLifecycle()
	if s.reg.Detector == nil || lc.State() == analyzer.StateDead {
		s.markUnavailable(cam, observe.KindDetector, observe.KindTracker)
		return
	}

	lc.BeginCall()
	dctx, cancel := context.WithTimeout(ctx, analyzer.DetectorDeadline)
	detections, err := s.reg.Detector.Detect(dctx, frame)
	cancel()
	if err != nil {
		lc.CallFailed()
		s.markUnavailable(cam, observe.KindDetector, observe.KindTracker)
		return
	}
	lc.CallSucceeded()

	valid := make([]observe.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < 0 || d.Confidence > 1 || d.BBox.W < 0 || d.BBox.H < 0 {
			s.malformedDropped.Add(1)
			continue
		}
		valid = append(valid, d)
	}
	s.cache.SetDetections(cam, frame.Timestamp, valid)

	tlc := s.reg.TrackerLifecycle()
	if s.reg.Tracker == nil || tlc.State() == analyzer.StateDead {
		s.markUnavailable(cam, observe.KindTracker)
		return
	}
	tlc.BeginCall()
	tctx, cancel := context.WithTimeout(ctx, analyzer.TrackerDeadline)
	tracks, err := s.reg.Tracker.Update(tctx, cam, valid, frame.Timestamp)
	cancel()
	if err != nil {
		tlc.CallFailed()
		s.markUnavailable(cam, observe.KindTracker)
		return
	}
	tlc.CallSucceeded()
	s.cache.SetTracks(cam, frame.Timestamp, tracks)
}

func (s *Sampler) runScene(ctx context.Context, cam media.CameraID, frame media.Frame) {
	lc := s.reg.SceneLifecycle()
	if s.reg.Scene == nil || lc.State() == analyzer.StateDead {
		s.markUnavailable(cam, observe.KindScene)
		return
	}

	detections := s.cache.Snapshot(cam).Detections

	lc.BeginCall()
	sctx, cancel := context.WithTimeout(ctx, analyzer.SceneDeadline)
	scene, err := s.reg.Scene.Describe(sctx, frame, detections)
	cancel()
	if err != nil {
		lc.CallFailed()
		s.markUnavailable(cam, observe.KindScene)
		return
	}
	lc.CallSucceeded()
	s.cache.SetScene(cam, frame.Timestamp, scene)
}

func (s *Sampler) runSpeech(ctx context.Context, cam media.CameraID, chunk media.AudioChunk) {
	lc := s.reg.SpeechLifecycle()
	if s.reg.Speech == nil || lc.State() == analyzer.StateDead {
		s.markUnavailable(cam, observe.KindSpeech)
		return
	}

	lc.BeginCall()
	sctx, cancel := context.WithTimeout(ctx, analyzer.SpeechDeadline)
	segments, err := s.reg.Speech.Transcribe(sctx, chunk)
	cancel()
	if err != nil {
		lc.CallFailed()
		s.markUnavailable(cam, observe.KindSpeech)
		return
	}
	lc.CallSucceeded()
	s.cache.AppendSpeech(cam, chunk.Timestamp, segments, observe.MaxSpeechSegments)
}

func (s *Sampler) markUnavailable(cam media.CameraID, kinds ...observe.Kind) {
	for _, kind := range kinds {
		s.unavailableResults.Add(1)
		s.cache.MarkUnavailable(cam, kind)
	}
}
