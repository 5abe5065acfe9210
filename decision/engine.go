package decision

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/ranker"
)

// Engine is the sole writer of ProgramState. It is safe for
// concurrent use: UpdateScore is called from the ranker's publish
// callback, Tick from the decision task's own ticker, and the
// accessors from the control API — all behind one mutex; everyone
// outside goes through accessor methods returning copies.
type Engine struct {
	log    *slog.Logger
	policy Policy

	mu     sync.RWMutex
	state  ProgramState
	scores map[media.CameraID]ranker.Score
}

// NewEngine creates an Engine in the Idle state.
func NewEngine(policy Policy, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:    log.With("component", "decision"),
		policy: policy,
		state:  newProgramState(),
		scores: make(map[media.CameraID]ranker.Score),
	}
}

// UpdateScore records cam's latest score, normally wired as the
// ranker's publish callback.
func (e *Engine) UpdateScore(s ranker.Score) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scores[s.CamID] = s
}

// RemoveCam drops a camera's last-known score, called when ingress
// reports the camera has left.
func (e *Engine) RemoveCam(cam media.CameraID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scores, cam)
}

// Tick advances the engine by one decision step. Any panic inside
// decide is recovered into a HOLD(reason="internal-error") decision
// with ProgramState left untouched; the bus never sees a malformed
// event.
func (e *Engine) Tick(now time.Time) (result Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("recovered panic in decision tick", "panic", r)
			result = Decision{Ts: now, Action: ActionHold, Rationale: "internal-error"}
		}
	}()

	decision, newState := decide(e.state, e.scores, e.policy, now)
	e.state = newState
	return decision
}

// Snapshot returns a deep copy of the current program state. No caller
// ever holds a pointer into the live maps.
func (e *Engine) Snapshot() ProgramState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneProgramState(e.state)
}

// CurrentCam implements ranker.ProgramReader.
func (e *Engine) CurrentCam() (media.CameraID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.CurrentCam, e.state.HasCurrent
}

// LastProgramAt implements ranker.ProgramReader: the timestamp cam most
// recently became the program cam, or false if it never has.
func (e *Engine) LastProgramAt(cam media.CameraID) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := len(e.state.History) - 1; i >= 0; i-- {
		if e.state.History[i].Cam == cam {
			return e.state.History[i].Ts, true
		}
	}
	return time.Time{}, false
}

// Scores returns a copy of the latest score per camera, for the control
// API's /state snapshot.
func (e *Engine) Scores() map[media.CameraID]ranker.Score {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[media.CameraID]ranker.Score, len(e.scores))
	for cam, s := range e.scores {
		out[cam] = s
	}
	return out
}

// SetManual sets the manual override camera. Setting the same cam
// twice in a row is a no-op for the
// engine's Tick logic: the next tick simply finds currentCam already
// equal to manualCam and emits HOLD(reason="manual").
func (e *Engine) SetManual(cam media.CameraID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ManualCam = cam
	e.state.HasManual = true
}

// ClearManual resumes automatic operation.
func (e *Engine) ClearManual() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.HasManual = false
}

// Manual returns the current manual override, if any.
func (e *Engine) Manual() (media.CameraID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ManualCam, e.state.HasManual
}

// Reset clears ProgramState back to its post-startup Idle value, for
// the control API's reset affordance.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newProgramState()
	e.scores = make(map[media.CameraID]ranker.Score)
}

// decide implements the ordered 12-step decision function
// as a pure function of (state, scores, policy, now): it returns the
// decision plus the state Tick should commit, and never mutates its
// arguments in place, so a panic partway through never corrupts the
// engine's committed state.
func decide(state ProgramState, scores map[media.CameraID]ranker.Score, policy Policy, now time.Time) (Decision, ProgramState) {
	state = cloneProgramState(state)

	// Step 1: drop scores older than stalenessWindow.
	staleness := policy.stalenessWindow()
	fresh := make(map[media.CameraID]ranker.Score)
	for cam, s := range scores {
		if now.Sub(s.Ts) <= staleness {
			fresh[cam] = s
		}
	}

	// Step 2: expire cooldowns.
	cooldowns := make(map[media.CameraID]time.Time, len(state.Cooldowns))
	for cam, notBefore := range state.Cooldowns {
		if notBefore.After(now) {
			cooldowns[cam] = notBefore
		}
	}
	state.Cooldowns = cooldowns

	if state.HasManual {
		return decideManual(state, now)
	}

	// Step 3: best = argmax over cams not in cooldown of latest score.
	best, hasBest := argmaxExcludingCooldown(fresh, state.Cooldowns)
	if !hasBest {
		// Every camera stale means back to Idle: the program cam must
		// always have scored recently. All-in-cooldown is different —
		// the current cam stays up while we wait one out.
		if len(fresh) == 0 {
			state.HasCurrent = false
		}
		return Decision{Ts: now, Action: ActionHold, Rationale: "no-candidates"}, state
	}

	// Step 4: no current cam yet.
	if !state.HasCurrent {
		newState := switchTo(state, best.CamID, now)
		return Decision{Ts: now, Action: ActionSwitch, ToCam: best.CamID, HasTo: true, Rationale: "initial", Confidence: best.Score}, newState
	}

	// Step 5: current cam has no fresh score.
	currentScore, currentFresh := fresh[state.CurrentCam]
	if !currentFresh {
		newState := switchTo(state, best.CamID, now)
		return Decision{Ts: now, Action: ActionSwitch, FromCam: state.CurrentCam, HasFrom: true, ToCam: best.CamID, HasTo: true, Rationale: "current-stale", Confidence: best.Score}, newState
	}

	// Step 6: forced cut past max shot duration, to the best cam other
	// than the current one.
	shotDuration := now.Sub(state.ShotStartTs)
	if policy.MaxShotDurationSec > 0 && shotDuration.Seconds() > policy.MaxShotDurationSec {
		others := make(map[media.CameraID]ranker.Score, len(fresh))
		for cam, s := range fresh {
			if cam != state.CurrentCam {
				others[cam] = s
			}
		}
		if target, ok := argmaxExcludingCooldown(others, state.Cooldowns); ok {
			newState := switchTo(state, target.CamID, now)
			delta := target.Score - currentScore.Score
			return Decision{Ts: now, Action: ActionSwitch, FromCam: state.CurrentCam, HasFrom: true, ToCam: target.CamID, HasTo: true, DeltaScore: delta, HasDelta: true, Rationale: "max-duration", Confidence: target.Score}, newState
		}
	}

	// Step 7: best is already current.
	if best.CamID == state.CurrentCam {
		return Decision{Ts: now, Action: ActionHold, Rationale: "same-best"}, state
	}

	// Step 8: hysteresis.
	if policy.EnableHysteresis && shotDuration.Seconds() < policy.MinHoldSec {
		return Decision{Ts: now, Action: ActionHold, Rationale: "min-hold"}, state
	}

	// Step 9: delta threshold.
	delta := best.Score - currentScore.Score
	if delta < policy.DeltaSThreshold {
		return Decision{Ts: now, Action: ActionHold, Rationale: "delta-below-threshold"}, state
	}

	// Step 10: ping-pong guard.
	if pingPongTriggered(state.History, best.CamID, policy) {
		return Decision{Ts: now, Action: ActionHold, Rationale: "ping-pong"}, state
	}

	// Step 11: speech-boundary alignment.
	if policy.EnableSpeechAlign && midWord(currentScore, now) && state.DeferCount < policy.maxDeferTicks() {
		state.DeferCount++
		return Decision{Ts: now, Action: ActionHold, Rationale: "mid-word"}, state
	}

	// Step 12: switch.
	newState := switchTo(state, best.CamID, now)
	if policy.EnableCooldown {
		newState.Cooldowns[state.CurrentCam] = now.Add(policy.cooldownDuration())
	}
	return Decision{Ts: now, Action: ActionSwitch, FromCam: state.CurrentCam, HasFrom: true, ToCam: best.CamID, HasTo: true, DeltaScore: delta, HasDelta: true, Rationale: best.Reason, Confidence: best.Score}, newState
}

// decideManual handles the manual override: while set, the engine
// holds except for the single switch needed to align the output with
// the manual cam.
func decideManual(state ProgramState, now time.Time) (Decision, ProgramState) {
	if state.HasCurrent && state.CurrentCam == state.ManualCam {
		return Decision{Ts: now, Action: ActionHold, Rationale: "manual"}, state
	}
	from := state.CurrentCam
	hasFrom := state.HasCurrent
	newState := switchTo(state, state.ManualCam, now)
	return Decision{Ts: now, Action: ActionSwitch, FromCam: from, HasFrom: hasFrom, ToCam: state.ManualCam, HasTo: true, Rationale: "manual", Confidence: 1}, newState
}

// midWord reports whether now falls inside the current cam's most
// recent speech segment plus an 80ms grace period.
func midWord(score ranker.Score, now time.Time) bool {
	if !score.Features.HasRecentSpeech {
		return false
	}
	return now.Before(score.Features.SpeechEndTs.Add(80 * time.Millisecond))
}

// argmaxExcludingCooldown picks the highest-scoring cam not currently in
// cooldown. Iteration is over sorted camIds so ties resolve
// deterministically (lowest camId wins) rather than depending on Go's
// randomized map order.
func argmaxExcludingCooldown(fresh map[media.CameraID]ranker.Score, cooldowns map[media.CameraID]time.Time) (ranker.Score, bool) {
	keys := make([]string, 0, len(fresh))
	for cam := range fresh {
		keys = append(keys, string(cam))
	}
	sort.Strings(keys)

	var best ranker.Score
	found := false
	for _, k := range keys {
		cam := media.CameraID(k)
		if _, inCooldown := cooldowns[cam]; inCooldown {
			continue
		}
		s := fresh[cam]
		if !found || s.Score > best.Score {
			best = s
			found = true
		}
	}
	return best, found
}

// pingPongTriggered reports whether, over the last pingPongWindow
// switches, candidate already appears pingPongMaxRevisits or more
// times.
func pingPongTriggered(history []HistoryEntry, candidate media.CameraID, policy Policy) bool {
	window := policy.pingPongWindow()
	start := len(history) - window
	if start < 0 {
		start = 0
	}
	count := 0
	for _, h := range history[start:] {
		if h.Cam == candidate {
			count++
		}
	}
	return count >= policy.pingPongMaxRevisits()
}
