package analyzer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// mainSubjectWindow is the number of recent ticks considered when picking
// a camera's main subject.
const mainSubjectWindow = 30

type trackState struct {
	track                        observe.Track
	lastCentroidX, lastCentroidY float64
	lastSeenTick                 int
}

// camTracks is one camera's tracker state: live tracks plus the tick
// counter used to age them out and to bound the main-subject window.
type camTracks struct {
	tracks map[int]*trackState
	nextID int
	tick   int
}

// HeuristicTracker is the deterministic reference Tracker. It matches
// each tick's detections to existing tracks by nearest centroid within a
// fixed gate distance, ages unmatched tracks out after a few misses, and
// exposes MainSubject as the longest-lived track nearest the frame
// center, ties broken by bbox area.
type HeuristicTracker struct {
	// MatchGate is the max centroid distance (normalized frame units)
	// for a detection to match an existing track.
	MatchGate float64
	// MaxMisses is how many consecutive ticks a track may go unmatched
	// before being dropped.
	MaxMisses int

	mu   sync.Mutex
	cams map[media.CameraID]*camTracks
}

// NewHeuristicTracker returns a HeuristicTracker with a 0.15 match gate
// and 5-tick eviction, tuned for 10Hz sampling (~0.5s of occlusion
// tolerance).
func NewHeuristicTracker() *HeuristicTracker {
	return &HeuristicTracker{
		MatchGate: 0.15,
		MaxMisses: 5,
		cams:      make(map[media.CameraID]*camTracks),
	}
}

func (ht *HeuristicTracker) camState(cam media.CameraID) *camTracks {
	if cs, ok := ht.cams[cam]; ok {
		return cs
	}
	cs := &camTracks{tracks: make(map[int]*trackState)}
	ht.cams[cam] = cs
	return cs
}

// Update implements Tracker.
func (ht *HeuristicTracker) Update(ctx context.Context, cam media.CameraID, detections []observe.Detection, frameTs time.Time) ([]observe.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()

	cs := ht.camState(cam)
	cs.tick++

	matched := make(map[int]bool, len(detections))
	for _, det := range detections {
		cx, cy := det.BBox.Centroid()

		bestID, bestDist := -1, math.MaxFloat64
		for id, ts := range cs.tracks {
			if matched[id] {
				continue
			}
			d := math.Hypot(cx-ts.lastCentroidX, cy-ts.lastCentroidY)
			if d < bestDist {
				bestDist, bestID = d, id
			}
		}

		if bestID != -1 && bestDist <= ht.MatchGate {
			ts := cs.tracks[bestID]
			ts.track.BBox = det.BBox
			ts.track.Age++
			ts.track.Score = det.Confidence
			if ts.lastSeenTick != cs.tick {
				dt := 1.0 // one tick
				ts.track.Velocity = &observe.Velocity{
					VX: (cx - ts.lastCentroidX) / dt,
					VY: (cy - ts.lastCentroidY) / dt,
				}
			}
			ts.lastCentroidX, ts.lastCentroidY = cx, cy
			ts.lastSeenTick = cs.tick
			matched[bestID] = true
			continue
		}

		id := cs.nextID
		cs.nextID++
		cs.tracks[id] = &trackState{
			track:         observe.Track{TrackID: id, BBox: det.BBox, Age: 1, Score: det.Confidence},
			lastCentroidX: cx,
			lastCentroidY: cy,
			lastSeenTick:  cs.tick,
		}
	}

	for id, ts := range cs.tracks {
		if cs.tick-ts.lastSeenTick > ht.MaxMisses {
			delete(cs.tracks, id)
		}
	}

	out := make([]observe.Track, 0, len(cs.tracks))
	for _, ts := range cs.tracks {
		out = append(out, ts.track)
	}
	return out, nil
}

// MainSubject implements Tracker: the longest-lived track (capped at the
// last 30 ticks of age) whose bbox centroid is nearest frame center;
// ties broken by larger bbox area.
func (ht *HeuristicTracker) MainSubject(cam media.CameraID) (int, bool) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	cs, ok := ht.cams[cam]
	if !ok {
		return 0, false
	}

	bestID := -1
	var bestAge int
	var bestDist, bestArea float64
	for id, ts := range cs.tracks {
		age := ts.track.Age
		if age > mainSubjectWindow {
			age = mainSubjectWindow
		}
		cx, cy := ts.track.BBox.Centroid()
		dist := math.Hypot(cx-0.5, cy-0.5)
		area := ts.track.BBox.Area()

		switch {
		case bestID == -1:
		case age > bestAge:
		case age == bestAge && dist < bestDist:
		case age == bestAge && dist == bestDist && area > bestArea:
		default:
			continue
		}
		bestID, bestAge, bestDist, bestArea = id, age, dist, area
	}
	if bestID == -1 {
		return 0, false
	}
	return bestID, true
}
