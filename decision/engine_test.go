package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/ranker"
)

func score(cam media.CameraID, ts time.Time, s float64) ranker.Score {
	return ranker.Score{CamID: cam, Ts: ts, Score: s, Reason: "test"}
}

func TestInitialSelectionPicksHighestScoringCam(t *testing.T) {
	// S1
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.40))
	e.UpdateScore(score("B", base, 0.55))

	d := e.Tick(base.Add(100 * time.Millisecond))
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, media.CameraID("B"), d.ToCam)
	assert.Equal(t, "initial", d.Rationale)

	d2 := e.Tick(base.Add(200 * time.Millisecond))
	assert.Equal(t, ActionHold, d2.Action)
}

func TestHysteresisHoldsUntilMinHoldElapses(t *testing.T) {
	// S2
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 2.0
	policy.DeltaSThreshold = 0.15
	e := NewEngine(policy, nil)
	e.UpdateScore(score("A", base, 0.40))
	e.UpdateScore(score("B", base, 0.55))
	require.Equal(t, ActionSwitch, e.Tick(base).Action) // initial -> B

	flip := base.Add(time.Second)
	e.UpdateScore(score("A", flip, 0.80))
	e.UpdateScore(score("B", flip, 0.50))

	for dt := time.Second; dt < 2*time.Second; dt += 100 * time.Millisecond {
		d := e.Tick(base.Add(dt))
		assert.Equal(t, ActionHold, d.Action, "at dt=%v", dt)
		assert.Equal(t, "min-hold", d.Rationale)
	}

	d := e.Tick(base.Add(2 * time.Second))
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, media.CameraID("A"), d.ToCam)
}

func TestCooldownBlocksImmediateReturn(t *testing.T) {
	// S3
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 0
	policy.DeltaSThreshold = 0
	policy.CooldownSec = 4.0
	e := NewEngine(policy, nil)

	e.UpdateScore(score("A", base, 0.9))
	e.UpdateScore(score("B", base, 0.1))
	require.Equal(t, media.CameraID("A"), e.Tick(base).ToCam) // initial -> A

	t1 := base.Add(time.Second)
	e.UpdateScore(score("A", t1, 0.1))
	e.UpdateScore(score("B", t1, 0.9))
	d1 := e.Tick(t1)
	require.Equal(t, ActionSwitch, d1.Action)
	require.Equal(t, media.CameraID("B"), d1.ToCam) // switch away from A: A enters cooldown

	t2 := t1.Add(100 * time.Millisecond)
	e.UpdateScore(score("A", t2, 0.9))
	e.UpdateScore(score("B", t2, 0.1))
	d2 := e.Tick(t2)
	assert.Equal(t, ActionHold, d2.Action)
	assert.Equal(t, "same-best", d2.Rationale, "A is in cooldown so the only non-cooldown candidate is B, already current")

	t3 := t1.Add(4*time.Second + time.Millisecond)
	e.UpdateScore(score("A", t3, 0.9))
	e.UpdateScore(score("B", t3, 0.1))
	d3 := e.Tick(t3)
	assert.Equal(t, ActionSwitch, d3.Action)
	assert.Equal(t, media.CameraID("A"), d3.ToCam, "A's cooldown has expired by t1+cooldownSec")
}

func TestMaxShotDurationForcesCutRegardlessOfDelta(t *testing.T) {
	// S4
	base := time.Now()
	policy := DefaultPolicy()
	policy.MaxShotDurationSec = 15
	policy.MinHoldSec = 100 // hysteresis would otherwise hold forever
	e := NewEngine(policy, nil)

	e.UpdateScore(score("A", base, 0.9))
	e.UpdateScore(score("B", base, 0.1))
	require.Equal(t, media.CameraID("A"), e.Tick(base).ToCam)

	later := base.Add(15*time.Second + time.Millisecond)
	e.UpdateScore(score("A", later, 0.9))
	e.UpdateScore(score("B", later, 0.5))
	d := e.Tick(later)
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, media.CameraID("B"), d.ToCam)
	assert.Equal(t, "max-duration", d.Rationale)
}

func TestPingPongGuardBlocksRapidOscillation(t *testing.T) {
	// S5: history of the last 5 switches is already [A,B,A,B,A] (seeded
	// directly — reaching this history organically is exactly what the
	// guard being tested prevents).
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 0
	policy.DeltaSThreshold = 0
	policy.CooldownSec = 0
	policy.PingPongWindow = 5
	policy.PingPongMaxRevisits = 2
	e := NewEngine(policy, nil)

	seq := []media.CameraID{"A", "B", "A", "B", "A"}
	ts := base
	for _, cam := range seq {
		e.state.History = appendHistory(e.state.History, cam, ts)
		ts = ts.Add(time.Second)
	}
	e.state.CurrentCam = "A"
	e.state.HasCurrent = true
	e.state.ShotStartTs = ts

	ts = ts.Add(time.Second)
	e.UpdateScore(score("A", ts, 0.1))
	e.UpdateScore(score("B", ts, 0.9))
	d := e.Tick(ts)
	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "ping-pong", d.Rationale)

	// A forced max-duration cut to a third cam unlocks the guard.
	policy.MaxShotDurationSec = 1
	e.policy = policy
	ts = ts.Add(2 * time.Second)
	e.UpdateScore(score("A", ts, 0.1))
	e.UpdateScore(score("B", ts, 0.2))
	e.UpdateScore(score("C", ts, 0.9))
	forced := e.Tick(ts)
	assert.Equal(t, ActionSwitch, forced.Action)
	assert.Equal(t, "max-duration", forced.Rationale)
	assert.Equal(t, media.CameraID("C"), forced.ToCam)
}

func TestManualOverrideSwitchesOnceThenHolds(t *testing.T) {
	// S6
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.9))
	require.Equal(t, media.CameraID("A"), e.Tick(base).ToCam)

	e.SetManual("C")
	d := e.Tick(base.Add(time.Second))
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, media.CameraID("A"), d.FromCam)
	assert.Equal(t, media.CameraID("C"), d.ToCam)
	assert.Equal(t, "manual", d.Rationale)

	d2 := e.Tick(base.Add(2 * time.Second))
	assert.Equal(t, ActionHold, d2.Action)
	assert.Equal(t, "manual", d2.Rationale)

	e.ClearManual()
	e.UpdateScore(score("A", base.Add(3*time.Second), 0.9))
	d3 := e.Tick(base.Add(3 * time.Second))
	assert.NotEqual(t, "manual", d3.Rationale)
}

func TestNoCandidatesWhenAllCamsStale(t *testing.T) {
	e := NewEngine(DefaultPolicy(), nil)
	d := e.Tick(time.Now())
	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "no-candidates", d.Rationale)
}

func TestSingleCameraIsSelectedThenNeverChurned(t *testing.T) {
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.5))
	require.Equal(t, ActionSwitch, e.Tick(base).Action)

	for i := 1; i <= 20; i++ {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		e.UpdateScore(score("A", ts, 0.5))
		d := e.Tick(ts)
		assert.Equal(t, ActionHold, d.Action)
		assert.Equal(t, "same-best", d.Rationale)
	}
}

func TestZeroHoldAndZeroThresholdSwitchesToArgmaxEveryTick(t *testing.T) {
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 0
	policy.DeltaSThreshold = 0
	policy.EnableCooldown = false
	policy.EnableSpeechAlign = false
	policy.PingPongWindow = 0
	policy.PingPongMaxRevisits = 1000
	e := NewEngine(policy, nil)

	cams := []media.CameraID{"A", "B", "A", "B"}
	for i, want := range cams {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		e.UpdateScore(score("A", ts, 0.4))
		e.UpdateScore(score("B", ts, 0.4))
		e.UpdateScore(score(want, ts, 0.9))
		d := e.Tick(ts)
		require.Equal(t, ActionSwitch, d.Action, "tick %d", i)
		assert.Equal(t, want, d.ToCam)
	}
}

func TestAllCamsStaleDropsBackToIdle(t *testing.T) {
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.6))
	require.Equal(t, ActionSwitch, e.Tick(base).Action)

	// Well past the staleness window with no new scores.
	d := e.Tick(base.Add(10 * time.Second))
	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "no-candidates", d.Rationale)
	_, hasCurrent := e.CurrentCam()
	assert.False(t, hasCurrent)
}

func TestAllCamsInCooldownKeepsCurrentSet(t *testing.T) {
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 0
	policy.EnableSpeechAlign = false
	e := NewEngine(policy, nil)

	e.UpdateScore(score("A", base, 0.6))
	require.Equal(t, ActionSwitch, e.Tick(base).Action) // A is program

	t1 := base.Add(time.Second)
	e.UpdateScore(score("A", t1, 0.4))
	e.UpdateScore(score("B", t1, 0.9))
	require.Equal(t, ActionSwitch, e.Tick(t1).Action) // B, A cools down

	// A is fresh but in cooldown; B has left, so its score is dropped. No
	// candidate, but the program cam stays set while the cooldown runs out.
	t2 := t1.Add(time.Second)
	e.UpdateScore(score("A", t2, 0.9))
	e.RemoveCam("B")
	d := e.Tick(t2)
	assert.Equal(t, "no-candidates", d.Rationale)
	cur, hasCurrent := e.CurrentCam()
	assert.True(t, hasCurrent)
	assert.Equal(t, media.CameraID("B"), cur)
}

func TestSwitchNeverHasEqualFromAndToCam(t *testing.T) {
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.5))
	d := e.Tick(base)
	if d.Action == ActionSwitch {
		assert.NotEqual(t, d.FromCam, d.ToCam)
	}
}

func TestSnapshotIsIndependentOfSubsequentTicks(t *testing.T) {
	base := time.Now()
	e := NewEngine(DefaultPolicy(), nil)
	e.UpdateScore(score("A", base, 0.9))
	e.Tick(base)

	snap := e.Snapshot()
	require.True(t, snap.HasCurrent)
	snap.History[0].Cam = "mutated"

	liveSnap := e.Snapshot()
	assert.NotEqual(t, media.CameraID("mutated"), liveSnap.History[0].Cam)
}

func TestSpeechAlignmentDefersThenCapsAtMaxDeferTicks(t *testing.T) {
	base := time.Now()
	policy := DefaultPolicy()
	policy.MinHoldSec = 0
	policy.DeltaSThreshold = 0
	policy.CooldownSec = 0
	policy.MaxDeferTicks = 2
	e := NewEngine(policy, nil)

	e.UpdateScore(score("A", base, 0.9))
	require.Equal(t, media.CameraID("A"), e.Tick(base).ToCam)

	midWordScore := score("A", base.Add(time.Second), 0.3)
	midWordScore.Features.HasRecentSpeech = true
	midWordScore.Features.SpeechEndTs = base.Add(2 * time.Second)

	ts := base.Add(time.Second)
	for i := 0; i < 2; i++ {
		e.UpdateScore(midWordScore)
		e.UpdateScore(score("B", ts, 0.9))
		d := e.Tick(ts)
		assert.Equal(t, "mid-word", d.Rationale, "defer %d", i)
		ts = ts.Add(time.Millisecond)
	}

	e.UpdateScore(midWordScore)
	e.UpdateScore(score("B", ts, 0.9))
	d := e.Tick(ts)
	assert.Equal(t, ActionSwitch, d.Action)
	assert.Equal(t, media.CameraID("B"), d.ToCam)
}
