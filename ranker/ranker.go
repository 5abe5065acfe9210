package ranker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/zsiec/autodirector/analyzer"
	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// ProgramReader is the subset of the Decision Engine's state the Ranker
// needs to compute noveltyDecay and the hottest-subject current-program
// tiebreak.
// Implemented by decision.Engine; kept as a small interface here so
// ranker never imports decision (it is consumed the other way: decision
// consumes ranker.Score from the bus).
type ProgramReader interface {
	CurrentCam() (media.CameraID, bool)
	LastProgramAt(cam media.CameraID) (time.Time, bool)
}

// Config tunes the Ranker's feature computation.
type Config struct {
	Rate          time.Duration // rankingRate, default 10Hz
	VMax          float64       // motion salience normalization cap
	KeywordK      int           // keywordBoost denominator, default 3
	NoveltyTau    time.Duration // default 8s
	InterestDecay time.Duration // interest decays to 0 over this, default 2s
	SpeechFloorDB float64       // -60 dBFS -> 0
	SpeechCeilDB  float64       // -10 dBFS -> 1
	HotWindow     time.Duration // lookback for the globally hottest subject, default 1s
}

// DefaultConfig returns the standard rates and decay constants.
func DefaultConfig() Config {
	return Config{
		Rate:          100 * time.Millisecond,
		VMax:          1.0,
		KeywordK:      3,
		NoveltyTau:    8 * time.Second,
		InterestDecay: 2 * time.Second,
		SpeechFloorDB: -60,
		SpeechCeilDB:  -10,
		HotWindow:     time.Second,
	}
}

// Ranker computes and publishes one Score per live camera per tick.
type Ranker struct {
	log     *slog.Logger
	cache   *observe.Cache
	reg     *analyzer.Registry
	weights Weights
	cfg     Config
	program ProgramReader

	mu        sync.Mutex
	lastScore map[media.CameraID]Score

	publish  func(Score)
	degraded func(media.CameraID) bool
}

// NewRanker creates a Ranker. publish is called once per cam per tick
// with the freshly computed Score (normally bus.Publish wired in by the
// caller).
func NewRanker(cache *observe.Cache, reg *analyzer.Registry, weights Weights, cfg Config, program ProgramReader, publish func(Score), log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{
		log:       log.With("component", "ranker"),
		cache:     cache,
		reg:       reg,
		weights:   weights.Normalized(),
		cfg:       cfg,
		program:   program,
		lastScore: make(map[media.CameraID]Score),
		publish:   publish,
	}
}

// SetDegradedCheck registers a predicate (normally the ingress
// adapter's Degraded method) consulted each tick; a degraded camera's
// score is forced to zero. Must be called before Run.
func (r *Ranker) SetDegradedCheck(fn func(media.CameraID) bool) {
	r.degraded = fn
}

// Run ticks at cfg.Rate until ctx is canceled, computing and publishing
// one Score per tracked camera each tick.
func (r *Ranker) Run(ctx context.Context, cams func() []media.CameraID) error {
	rate := r.cfg.Rate
	if rate <= 0 {
		rate = 100 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.tick(now, cams())
		}
	}
}

func (r *Ranker) tick(now time.Time, cams []media.CameraID) {
	hottestClass, hottestQuadrant := r.globalHottest(now, cams)

	for _, cam := range cams {
		score := r.scoreOne(now, cam, hottestClass, hottestQuadrant)
		r.mu.Lock()
		r.lastScore[cam] = score
		r.mu.Unlock()
		if r.publish != nil {
			r.publish(score)
		}
	}
}

// LastScore returns the most recently published score for cam.
func (r *Ranker) LastScore(cam media.CameraID) (Score, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lastScore[cam]
	return s, ok
}

func (r *Ranker) scoreOne(now time.Time, cam media.CameraID, hottestClass string, hottestQuadrant int) Score {
	if r.degraded != nil && r.degraded(cam) {
		return Score{CamID: cam, Ts: now, Score: 0, Reason: "degraded", Degraded: true}
	}

	snap := r.cache.Snapshot(cam)

	if len(snap.Detections) == 0 && len(snap.Tracks) == 0 && snap.Scene == nil && len(snap.Speech) == 0 {
		return Score{CamID: cam, Ts: now, Score: 0, Reason: "no-data"}
	}

	avail := map[string]bool{
		"face":       !snap.Unavailable[observe.KindDetector],
		"motion":     !snap.Unavailable[observe.KindTracker],
		"subject":    !snap.Unavailable[observe.KindTracker],
		"speech":     !snap.Unavailable[observe.KindSpeech],
		"keyword":    !snap.Unavailable[observe.KindSpeech],
		"framing":    !snap.Unavailable[observe.KindDetector],
		"novelty":    true,
		"continuity": !snap.Unavailable[observe.KindTracker],
		"interest":   !snap.Unavailable[observe.KindScene],
	}

	features := Features{
		FaceSalience:       r.faceSalience(snap.Detections),
		MotionSalience:     r.motionSalience(snap.Tracks),
		MainSubjectOverlap: r.mainSubjectOverlap(cam, snap, hottestClass, hottestQuadrant),
		SpeechEnergy:       r.speechEnergy(snap.Speech, now),
		KeywordBoost:       r.keywordBoost(snap.Speech, now),
		FramingScore:       r.framingScore(snap.Detections),
		NoveltyDecay:       r.noveltyDecay(cam, now),
		ContinuityBonus:    r.continuityBonus(cam, snap.Tracks),
		Interest:           r.interest(snap.Scene, snap.SceneAt, now),
		Tags:               sceneTags(snap.Scene),
		TopObjects:         topObjects(snap.Detections),
		RecentSpeechText:   recentSpeechText(snap.Speech),
	}
	if seg := latestSpeech(snap.Speech, now); seg != nil {
		features.HasRecentSpeech = true
		features.SpeechEndTs = seg.EndTs
	}

	fused, terms := r.weights.Fuse(features, avail)
	reason := buildRationale(terms, topKeyword(snap.Speech), firstOrEmpty(features.TopObjects))

	return Score{
		CamID:    cam,
		Ts:       now,
		Score:    fused,
		Features: features,
		Reason:   reason,
	}
}

func (r *Ranker) faceSalience(dets []observe.Detection) float64 {
	var sum float64
	for _, d := range dets {
		if d.Class != "person" && d.Class != "face" {
			continue
		}
		sum += d.BBox.Area() * d.Confidence
	}
	return clamp01(sum)
}

func (r *Ranker) motionSalience(tracks []observe.Track) float64 {
	vMax := r.cfg.VMax
	if vMax <= 0 {
		vMax = 1
	}
	eligible := lo.Filter(tracks, func(tr observe.Track, _ int) bool { return tr.Age >= 3 })
	if len(eligible) == 0 {
		return 0
	}
	var sum float64
	for _, tr := range eligible {
		var mag float64
		if tr.Velocity != nil {
			mag = tr.Velocity.Magnitude()
		}
		sum += math.Min(mag/vMax, 1)
	}
	return clamp01(sum / float64(len(eligible)))
}

// mainSubjectOverlap is 1 if this cam's main subject matches the
// globally hottest subject by class + frame-quadrant (globalHottest gives
// ties to the current program cam). Track ids are never stable across cameras, so
// the match has to be this coarse.
func (r *Ranker) mainSubjectOverlap(cam media.CameraID, snap observe.Snapshot, hottestClass string, hottestQuadrant int) float64 {
	if hottestClass == "" || r.reg == nil || r.reg.Tracker == nil {
		return 0
	}
	mainID, ok := r.reg.Tracker.MainSubject(cam)
	if !ok {
		return 0
	}
	for _, tr := range snap.Tracks {
		if tr.TrackID != mainID {
			continue
		}
		class := classForTrack(snap.Detections, tr)
		trQuadrant := quadrant(tr.BBox)
		if class == hottestClass && trQuadrant == hottestQuadrant {
			return 1
		}
	}
	return 0
}

// globalHottest picks the "hottest" subject across all cams in the last
// HotWindow: the class+quadrant of the highest-scoring track system-wide.
// A tie in track score goes to the current program cam's track.
func (r *Ranker) globalHottest(now time.Time, cams []media.CameraID) (hottestClass string, hottestQuadrant int) {
	type candidate struct {
		class     string
		quadrant  int
		score     float64
		isCurrent bool
	}
	current, _ := r.currentCam()

	var best *candidate
	for _, cam := range cams {
		snap := r.cache.Snapshot(cam)
		if now.Sub(snap.UpdatedAt) > r.cfg.HotWindow && !snap.UpdatedAt.IsZero() {
			continue
		}
		for _, tr := range snap.Tracks {
			c := candidate{
				class:     classForTrack(snap.Detections, tr),
				quadrant:  quadrant(tr.BBox),
				score:     tr.Score,
				isCurrent: cam == current,
			}
			if c.class == "" {
				continue
			}
			if best == nil || c.score > best.score || (c.score == best.score && c.isCurrent) {
				best = &c
			}
		}
	}
	if best == nil {
		return "", -1
	}
	return best.class, best.quadrant
}

func quadrant(b observe.BBox) int {
	cx, cy := b.Centroid()
	switch {
	case cx < 0.5 && cy < 0.5:
		return 0
	case cx >= 0.5 && cy < 0.5:
		return 1
	case cx < 0.5 && cy >= 0.5:
		return 2
	default:
		return 3
	}
}

func classForTrack(dets []observe.Detection, tr observe.Track) string {
	best := ""
	bestDist := math.MaxFloat64
	tcx, tcy := tr.BBox.Centroid()
	for _, d := range dets {
		dcx, dcy := d.BBox.Centroid()
		dist := math.Hypot(tcx-dcx, tcy-dcy)
		if dist < bestDist {
			bestDist, best = dist, d.Class
		}
	}
	return best
}

func (r *Ranker) speechEnergy(segs []observe.SpeechSegment, now time.Time) float64 {
	seg := latestSpeech(segs, now)
	if seg == nil {
		return 0
	}
	floor, ceil := r.cfg.SpeechFloorDB, r.cfg.SpeechCeilDB
	if ceil <= floor {
		return 0
	}
	return clamp01((seg.EnergyDB - floor) / (ceil - floor))
}

func (r *Ranker) keywordBoost(segs []observe.SpeechSegment, now time.Time) float64 {
	k := r.cfg.KeywordK
	if k <= 0 {
		k = 3
	}
	seg := latestSpeech(segs, now)
	if seg == nil {
		return 0
	}
	return clamp01(float64(len(seg.Keywords)) / float64(k))
}

// latestSpeech returns the most recent segment still "in window"
// (ended within the last second), or nil.
func latestSpeech(segs []observe.SpeechSegment, now time.Time) *observe.SpeechSegment {
	var latest *observe.SpeechSegment
	for i := range segs {
		seg := &segs[i]
		if latest == nil || seg.EndTs.After(latest.EndTs) {
			latest = seg
		}
	}
	if latest == nil {
		return nil
	}
	if now.Sub(latest.EndTs) > time.Second {
		return nil
	}
	return latest
}

// framingScore is the center-of-mass proximity of the largest bbox to
// the nearest rule-of-thirds intersection.
func (r *Ranker) framingScore(dets []observe.Detection) float64 {
	if len(dets) == 0 {
		return 0
	}
	largest := dets[0]
	for _, d := range dets[1:] {
		if d.BBox.Area() > largest.BBox.Area() {
			largest = d
		}
	}
	cx, cy := largest.BBox.Centroid()

	thirds := []float64{1.0 / 3, 2.0 / 3}
	best := math.MaxFloat64
	for _, tx := range thirds {
		for _, ty := range thirds {
			d := math.Hypot(cx-tx, cy-ty)
			if d < best {
				best = d
			}
		}
	}
	// Max possible distance to nearest intersection within [0,1]^2 is
	// the distance from a corner to the nearest third-point, ~0.47.
	const maxDist = 0.4714
	return clamp01(1 - best/maxDist)
}

func (r *Ranker) noveltyDecay(cam media.CameraID, now time.Time) float64 {
	if r.program == nil {
		return 1
	}
	last, ok := r.program.LastProgramAt(cam)
	if !ok {
		return 1
	}
	tau := r.cfg.NoveltyTau
	if tau <= 0 {
		tau = 8 * time.Second
	}
	dt := now.Sub(last).Seconds()
	if dt < 0 {
		dt = 0
	}
	return math.Exp(-dt / tau.Seconds())
}

// continuityBonus saturates at 30 frames of main-subject track age.
func (r *Ranker) continuityBonus(cam media.CameraID, tracks []observe.Track) float64 {
	if r.reg == nil || r.reg.Tracker == nil {
		return 0
	}
	mainID, ok := r.reg.Tracker.MainSubject(cam)
	if !ok {
		return 0
	}
	for _, tr := range tracks {
		if tr.TrackID == mainID {
			return clamp01(float64(tr.Age) / 30.0)
		}
	}
	return 0
}

func (r *Ranker) interest(scene *observe.SceneDescription, sceneAt, now time.Time) float64 {
	if scene == nil {
		return 0
	}
	base := scene.NormalizedInterest()
	decay := r.cfg.InterestDecay
	if decay <= 0 {
		decay = 2 * time.Second
	}
	age := now.Sub(sceneAt)
	if age <= 0 {
		return base
	}
	remaining := 1 - age.Seconds()/decay.Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return clamp01(base * remaining)
}

func (r *Ranker) currentCam() (media.CameraID, bool) {
	if r.program == nil {
		return "", false
	}
	return r.program.CurrentCam()
}

func sceneTags(scene *observe.SceneDescription) []string {
	if scene == nil {
		return nil
	}
	return scene.Tags
}

func topObjects(dets []observe.Detection) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range dets {
		if seen[d.Class] {
			continue
		}
		seen[d.Class] = true
		out = append(out, d.Class)
	}
	return out
}

func recentSpeechText(segs []observe.SpeechSegment) string {
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1].Text
}

func topKeyword(segs []observe.SpeechSegment) string {
	if len(segs) == 0 {
		return ""
	}
	last := segs[len(segs)-1]
	if len(last.Keywords) == 0 {
		return ""
	}
	return last.Keywords[0]
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
