package ingress

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zsiec/autodirector/media"
)

// ErrIngestUnavailable is returned by Start when the SFU refuses the
// subscribe-only grant.
var ErrIngestUnavailable = errors.New("ingress: subscribe-only grant refused")

// maxBackoff caps exponential reconnect backoff.
const maxBackoff = 30 * time.Second

// maxSubscribeFailures marks a camera degraded after this many
// consecutive subscribe failures.
const maxSubscribeFailures = 5

// camState holds one camera's most recent frame/audio and retry
// bookkeeping, guarded by its own lock so concurrent join/leave/sample
// calls for different cameras never contend, and a camera that has left
// can never have samples attributed to it afterwards.
type camState struct {
	mu sync.Mutex

	videoTrack Track
	audioTrack Track

	lastFrame    media.Frame
	haveFrame    bool
	lastSampleTs time.Time

	audioBuf []int16
	audioSR  int

	consecutiveFailures int
	degraded            bool
	left                bool
}

// Adapter implements the Media Ingress Adapter.
type Adapter struct {
	log  *slog.Logger
	room MediaRoom

	analysisRate time.Duration
	audioWindow  time.Duration

	mu   sync.RWMutex
	cams map[media.CameraID]*camState

	onJoin  func(media.CameraID)
	onLeave func(media.CameraID)
}

// NewAdapter creates an Adapter sampling at analysisRate (default 10Hz if
// zero). Each camera's audio buffer keeps at most about the last 2s of
// samples.
func NewAdapter(room MediaRoom, analysisRate time.Duration, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if analysisRate <= 0 {
		analysisRate = 100 * time.Millisecond
	}
	return &Adapter{
		log:          log.With("component", "ingress"),
		room:         room,
		analysisRate: analysisRate,
		cams:         make(map[media.CameraID]*camState),
	}
}

// SetCameraEvents registers join/leave observers, delivered in event
// order from the adapter's Run loop. Must be called before Run.
func (a *Adapter) SetCameraEvents(onJoin, onLeave func(media.CameraID)) {
	a.onJoin = onJoin
	a.onLeave = onLeave
}

// Start connects to the room. Idempotent: calling it twice on an already
// connected adapter is a no-op from the caller's point of view; the
// underlying room's Connect is expected to be idempotent too.
func (a *Adapter) Start(ctx context.Context, url, token string) error {
	if err := a.room.Connect(ctx, url, token); err != nil {
		return ErrIngestUnavailable
	}
	return nil
}

// Run watches join/leave events until ctx is canceled, subscribing new
// cameras and tearing down state for departed ones. It is one of the
// five long-lived tasks.
func (a *Adapter) Run(ctx context.Context) error {
	joins := a.room.OnParticipantJoin(ctx)
	leaves := a.room.OnParticipantLeave(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cam, ok := <-joins:
			if !ok {
				return nil
			}
			a.handleJoin(ctx, cam)
		case cam, ok := <-leaves:
			if !ok {
				return nil
			}
			a.handleLeave(cam)
		}
	}
}

func (a *Adapter) handleJoin(ctx context.Context, cam media.CameraID) {
	a.mu.Lock()
	cs, exists := a.cams[cam]
	if !exists {
		cs = &camState{}
		a.cams[cam] = cs
	}
	a.mu.Unlock()

	go a.subscribeWithBackoff(ctx, cam, cs, TrackVideo)
	go a.subscribeWithBackoff(ctx, cam, cs, TrackAudio)

	if a.onJoin != nil && !exists {
		a.onJoin(cam)
	}
}

func (a *Adapter) handleLeave(cam media.CameraID) {
	a.mu.Lock()
	cs, ok := a.cams[cam]
	if ok {
		delete(a.cams, cam)
	}
	a.mu.Unlock()

	if ok {
		cs.mu.Lock()
		cs.left = true
		cs.mu.Unlock()
		if a.onLeave != nil {
			a.onLeave(cam)
		}
	}
}

// subscribeWithBackoff retries Subscribe with capped exponential backoff
// and jitter, marking the camera degraded after maxSubscribeFailures
// consecutive failures.
func (a *Adapter) subscribeWithBackoff(ctx context.Context, cam media.CameraID, cs *camState, kind TrackKind) {
	backoff := 500 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return
		}
		cs.mu.Lock()
		if cs.left {
			cs.mu.Unlock()
			return
		}
		cs.mu.Unlock()

		track, err := a.room.Subscribe(ctx, cam, kind)
		if err == nil {
			cs.mu.Lock()
			if kind == TrackVideo {
				cs.videoTrack = track
			} else {
				cs.audioTrack = track
			}
			cs.consecutiveFailures = 0
			cs.degraded = false
			cs.mu.Unlock()
			a.pumpTrack(ctx, cam, cs, track, kind)
			if ctx.Err() != nil || a.isLeft(cam) {
				return
			}
			continue
		}

		cs.mu.Lock()
		cs.consecutiveFailures++
		if cs.consecutiveFailures >= maxSubscribeFailures {
			cs.degraded = true
		}
		cs.mu.Unlock()
		a.log.Warn("subscribe failed", "cam", cam, "kind", kind, "error", err, "backoff", backoff)

		// Up to 25% jitter keeps a room full of retrying cameras from
		// hammering the SFU in lockstep.
		jittered := backoff + time.Duration(rand.Int64N(int64(backoff)/4+1))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (a *Adapter) isLeft(cam media.CameraID) bool {
	a.mu.RLock()
	_, ok := a.cams[cam]
	a.mu.RUnlock()
	return !ok
}

// pumpTrack reads frames/audio from track until it errors or ctx is
// canceled, always keeping only the newest sample. Backpressure drops
// older frames; nothing downstream ever sees a buffered backlog.
func (a *Adapter) pumpTrack(ctx context.Context, cam media.CameraID, cs *camState, track Track, kind TrackKind) {
	for {
		if ctx.Err() != nil {
			return
		}
		switch kind {
		case TrackVideo:
			frame, err := track.NextFrame(ctx)
			if err != nil {
				return
			}
			cs.mu.Lock()
			cs.lastFrame = frame
			cs.haveFrame = true
			cs.mu.Unlock()
		case TrackAudio:
			chunk, err := track.NextAudio(ctx)
			if err != nil {
				return
			}
			cs.mu.Lock()
			cs.audioSR = chunk.SampleRate
			cs.audioBuf = append(cs.audioBuf, chunk.Samples...)
			maxSamples := chunk.SampleRate * 2 // cap at ~2s to bound memory
			if maxSamples > 0 && len(cs.audioBuf) > maxSamples {
				cs.audioBuf = cs.audioBuf[len(cs.audioBuf)-maxSamples:]
			}
			cs.mu.Unlock()
		}
	}
}

// Sample returns the most recent video frame for cam, sampled at the
// configured analysis rate. It never blocks and returns false if nothing
// newer than the last sample has arrived.
func (a *Adapter) Sample(cam media.CameraID) (media.Frame, bool) {
	a.mu.RLock()
	cs, ok := a.cams[cam]
	a.mu.RUnlock()
	if !ok {
		return media.Frame{}, false
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.haveFrame || !cs.lastFrame.Timestamp.After(cs.lastSampleTs) {
		return media.Frame{}, false
	}
	cs.lastSampleTs = cs.lastFrame.Timestamp
	return cs.lastFrame, true
}

// AudioWindow returns the most recent windowSec of audio for cam
// (default 1.0s if zero), or false if none is buffered yet.
func (a *Adapter) AudioWindow(cam media.CameraID, windowSec float64) (media.AudioChunk, bool) {
	if windowSec <= 0 {
		windowSec = 1.0
	}

	a.mu.RLock()
	cs, ok := a.cams[cam]
	a.mu.RUnlock()
	if !ok {
		return media.AudioChunk{}, false
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.audioSR == 0 || len(cs.audioBuf) == 0 {
		return media.AudioChunk{}, false
	}

	want := int(windowSec * float64(cs.audioSR))
	if want > len(cs.audioBuf) {
		want = len(cs.audioBuf)
	}
	samples := make([]int16, want)
	copy(samples, cs.audioBuf[len(cs.audioBuf)-want:])

	return media.AudioChunk{
		CamID:      cam,
		Timestamp:  time.Now(),
		SampleRate: cs.audioSR,
		Samples:    samples,
	}, true
}

// Degraded reports whether cam has failed subscription enough times to
// be marked degraded. The ranker forces a degraded camera's score to
// zero.
func (a *Adapter) Degraded(cam media.CameraID) bool {
	a.mu.RLock()
	cs, ok := a.cams[cam]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.degraded
}

// Cams returns the set of cameras currently known to the adapter
// (joined and not yet left).
func (a *Adapter) Cams() []media.CameraID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]media.CameraID, 0, len(a.cams))
	for cam := range a.cams {
		out = append(out, cam)
	}
	return out
}
