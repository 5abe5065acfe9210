package observe

import (
	"sync"
	"time"

	"github.com/zsiec/autodirector/media"
)

// slot is one camera's latest observations behind its own lock, so a
// slow writer for one cam never blocks readers or writers of another.
type slot struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Cache holds the latest observations for every live camera. Analyzer
// workers write; the ranker reads. No single global lock is held across
// cameras.
type Cache struct {
	mu    sync.RWMutex // guards the slots map itself, not its contents
	slots map[media.CameraID]*slot
}

// NewCache creates an empty observation cache.
func NewCache() *Cache {
	return &Cache{slots: make(map[media.CameraID]*slot)}
}

func (c *Cache) slotFor(cam media.CameraID) *slot {
	c.mu.RLock()
	s, ok := c.slots[cam]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.slots[cam]; ok {
		return s
	}
	s = &slot{snap: Snapshot{CamID: cam, Unavailable: make(map[Kind]bool)}}
	c.slots[cam] = s
	return s
}

// Snapshot returns a copy of the current observations for cam. The
// returned value owns its own slices, so callers may read it without
// holding any lock.
func (c *Cache) Snapshot(cam media.CameraID) Snapshot {
	s := c.slotFor(cam)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap)
}

// Remove deletes a camera's slot entirely, called when the camera leaves
// the room.
func (c *Cache) Remove(cam media.CameraID) {
	c.mu.Lock()
	delete(c.slots, cam)
	c.mu.Unlock()
}

// SetDetections records a fresh detector observation for cam.
func (c *Cache) SetDetections(cam media.CameraID, at time.Time, d []Detection) {
	s := c.slotFor(cam)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Detections = d
	s.snap.Unavailable[KindDetector] = false
	s.snap.UpdatedAt = at
}

// SetTracks records a fresh tracker observation for cam.
func (c *Cache) SetTracks(cam media.CameraID, at time.Time, t []Track) {
	s := c.slotFor(cam)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Tracks = t
	s.snap.Unavailable[KindTracker] = false
	s.snap.UpdatedAt = at
}

// SetScene records a fresh scene-describer observation for cam.
func (c *Cache) SetScene(cam media.CameraID, at time.Time, sd SceneDescription) {
	s := c.slotFor(cam)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Scene = &sd
	s.snap.SceneAt = at
	s.snap.Unavailable[KindScene] = false
	s.snap.UpdatedAt = at
}

// AppendSpeech appends a speech-recognizer observation for cam, keeping
// only the most recent maxSegments.
func (c *Cache) AppendSpeech(cam media.CameraID, at time.Time, seg []SpeechSegment, maxSegments int) {
	s := c.slotFor(cam)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Speech = append(s.snap.Speech, seg...)
	if len(s.snap.Speech) > maxSegments {
		s.snap.Speech = s.snap.Speech[len(s.snap.Speech)-maxSegments:]
	}
	s.snap.Unavailable[KindSpeech] = false
	s.snap.UpdatedAt = at
}

// MarkUnavailable records that an analyzer call returned Unavailable for
// cam this tick, without touching the last-known observation of that
// kind. The ranker treats Unavailable as "feature absent," never as
// zero, so the last-known value must survive.
func (c *Cache) MarkUnavailable(cam media.CameraID, kind Kind) {
	s := c.slotFor(cam)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Unavailable[kind] = true
}

// Cams returns the set of camera IDs currently tracked.
func (c *Cache) Cams() []media.CameraID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]media.CameraID, 0, len(c.slots))
	for cam := range c.slots {
		out = append(out, cam)
	}
	return out
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := in
	out.Detections = append([]Detection(nil), in.Detections...)
	out.Tracks = append([]Track(nil), in.Tracks...)
	out.Speech = append([]SpeechSegment(nil), in.Speech...)
	out.Unavailable = make(map[Kind]bool, len(in.Unavailable))
	for k, v := range in.Unavailable {
		out.Unavailable[k] = v
	}
	if in.Scene != nil {
		scene := *in.Scene
		out.Scene = &scene
	}
	return out
}
