package ingress

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zsiec/autodirector/media"
)

// SyntheticRoom is a deterministic, in-process MediaRoom used for tests
// and local runs without a real SFU. Cameras are added/removed
// explicitly by the caller (a test, or a local demo driver), and
// frames/audio are pushed explicitly too, so behavior is fully
// reproducible.
type SyntheticRoom struct {
	mu       sync.Mutex
	joins    []chan media.CameraID
	leaves   []chan media.CameraID
	tracks   map[media.CameraID]*syntheticTrack
	failNext map[media.CameraID]int // remaining forced-failure subscribes, for backoff tests
}

// NewSyntheticRoom creates an empty SyntheticRoom.
func NewSyntheticRoom() *SyntheticRoom {
	return &SyntheticRoom{
		tracks:   make(map[media.CameraID]*syntheticTrack),
		failNext: make(map[media.CameraID]int),
	}
}

// NewCameraID generates a synthetic, stable camera id.
func NewCameraID() media.CameraID {
	return media.CameraID("cam-" + uuid.NewString())
}

func (r *SyntheticRoom) Connect(ctx context.Context, url, token string) error {
	return nil
}

func (r *SyntheticRoom) OnParticipantJoin(ctx context.Context) <-chan media.CameraID {
	ch := make(chan media.CameraID, 16)
	r.mu.Lock()
	r.joins = append(r.joins, ch)
	r.mu.Unlock()
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, c := range r.joins {
			if c == ch {
				r.joins = append(r.joins[:i], r.joins[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (r *SyntheticRoom) OnParticipantLeave(ctx context.Context) <-chan media.CameraID {
	ch := make(chan media.CameraID, 16)
	r.mu.Lock()
	r.leaves = append(r.leaves, ch)
	r.mu.Unlock()
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, c := range r.leaves {
			if c == ch {
				r.leaves = append(r.leaves[:i], r.leaves[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (r *SyntheticRoom) Subscribe(ctx context.Context, cam media.CameraID, kind TrackKind) (Track, error) {
	r.mu.Lock()
	if n := r.failNext[cam]; n > 0 {
		r.failNext[cam] = n - 1
		r.mu.Unlock()
		return nil, ErrIngestUnavailable
	}
	t, ok := r.tracks[cam]
	if !ok {
		t = newSyntheticTrack()
		r.tracks[cam] = t
	}
	r.mu.Unlock()
	return t, nil
}

// Join injects a participant-join event for cam on every registered
// join channel.
func (r *SyntheticRoom) Join(cam media.CameraID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.joins {
		ch <- cam
	}
}

// Leave injects a participant-leave event for cam on every registered
// leave channel.
func (r *SyntheticRoom) Leave(cam media.CameraID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.leaves {
		ch <- cam
	}
}

// FailNextSubscribes forces the next n Subscribe calls for cam to fail,
// used to exercise the adapter's backoff/degraded logic deterministically.
func (r *SyntheticRoom) FailNextSubscribes(cam media.CameraID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext[cam] = n
}

// PushFrame delivers a frame to cam's video track.
func (r *SyntheticRoom) PushFrame(cam media.CameraID, frame media.Frame) {
	r.mu.Lock()
	t, ok := r.tracks[cam]
	if !ok {
		t = newSyntheticTrack()
		r.tracks[cam] = t
	}
	r.mu.Unlock()
	t.pushFrame(frame)
}

// PushAudio delivers an audio chunk to cam's audio track.
func (r *SyntheticRoom) PushAudio(cam media.CameraID, chunk media.AudioChunk) {
	r.mu.Lock()
	t, ok := r.tracks[cam]
	if !ok {
		t = newSyntheticTrack()
		r.tracks[cam] = t
	}
	r.mu.Unlock()
	t.pushAudio(chunk)
}

// syntheticTrack is a single-slot mailbox for frames and audio, shared
// by a camera's video and audio Subscribe calls (both read the same
// underlying track object here for simplicity; production adapters
// would subscribe separate tracks per kind).
type syntheticTrack struct {
	mu      sync.Mutex
	frameCh chan media.Frame
	audioCh chan media.AudioChunk
}

func newSyntheticTrack() *syntheticTrack {
	return &syntheticTrack{
		frameCh: make(chan media.Frame, media.FrameRingSize),
		audioCh: make(chan media.AudioChunk, media.AudioRingSize),
	}
}

func (t *syntheticTrack) pushFrame(frame media.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case t.frameCh <- frame:
	default:
		// Drop oldest to keep only the newest sample.
		select {
		case <-t.frameCh:
		default:
		}
		t.frameCh <- frame
	}
}

func (t *syntheticTrack) pushAudio(chunk media.AudioChunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case t.audioCh <- chunk:
	default:
		select {
		case <-t.audioCh:
		default:
		}
		t.audioCh <- chunk
	}
}

func (t *syntheticTrack) NextFrame(ctx context.Context) (media.Frame, error) {
	select {
	case f := <-t.frameCh:
		return f, nil
	case <-ctx.Done():
		return media.Frame{}, ctx.Err()
	}
}

func (t *syntheticTrack) NextAudio(ctx context.Context) (media.AudioChunk, error) {
	select {
	case a := <-t.audioCh:
		return a, nil
	case <-ctx.Done():
		return media.AudioChunk{}, ctx.Err()
	}
}
