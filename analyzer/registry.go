package analyzer

// Registry wires one concrete implementation of each analyzer capability
// together with its Lifecycle. The scheduler resolves implementations
// through it at startup, one per capability.
type Registry struct {
	Detector Detector
	Tracker  Tracker
	Scene    SceneDescriber
	Speech   SpeechRecognizer

	detectorLC *Lifecycle
	trackerLC  *Lifecycle
	sceneLC    *Lifecycle
	speechLC   *Lifecycle
}

// NewRegistry wires the given implementations together with fresh
// lifecycles. Any argument may be nil, in which case calls for that
// capability are skipped and always report Unavailable.
func NewRegistry(d Detector, t Tracker, s SceneDescriber, sr SpeechRecognizer) *Registry {
	return &Registry{
		Detector:   d,
		Tracker:    t,
		Scene:      s,
		Speech:     sr,
		detectorLC: NewLifecycle(),
		trackerLC:  NewLifecycle(),
		sceneLC:    NewLifecycle(),
		speechLC:   NewLifecycle(),
	}
}

// NewDefaultRegistry wires the bundled deterministic reference
// implementations, the pluggable defaults when no real models are
// linked in.
func NewDefaultRegistry(keywords []string) *Registry {
	return NewRegistry(
		NewHeuristicDetector(),
		NewHeuristicTracker(),
		HeuristicSceneDescriber{},
		NewHeuristicSpeechRecognizer(keywords),
	)
}

// DetectorLifecycle returns the detector's lifecycle state tracker.
func (r *Registry) DetectorLifecycle() *Lifecycle { return r.detectorLC }

// TrackerLifecycle returns the tracker's lifecycle state tracker.
func (r *Registry) TrackerLifecycle() *Lifecycle { return r.trackerLC }

// SceneLifecycle returns the scene describer's lifecycle state tracker.
func (r *Registry) SceneLifecycle() *Lifecycle { return r.sceneLC }

// SpeechLifecycle returns the speech recognizer's lifecycle state tracker.
func (r *Registry) SpeechLifecycle() *Lifecycle { return r.speechLC }

// States returns a snapshot of all four lifecycle states, keyed by
// analyzer name, for the control API's health surface.
func (r *Registry) States() map[string]string {
	return map[string]string{
		"detector": r.detectorLC.State().String(),
		"tracker":  r.trackerLC.State().String(),
		"scene":    r.sceneLC.State().String(),
		"speech":   r.speechLC.State().String(),
	}
}
