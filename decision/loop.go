package decision

import (
	"context"
	"time"
)

// defaultHoldSampleEvery publishes one in every N consecutive HOLD
// decisions; SWITCH decisions always publish. Holds fire every decision
// tick, so unsampled they dominate the switch topic's volume.
const defaultHoldSampleEvery = 10

// Loop drives the Engine on a fixed tick, publishing each decision and
// notifying onSwitch for every SWITCH.
type Loop struct {
	engine *Engine

	// Rate is the decision tick interval. Defaults to 100ms (10 Hz).
	Rate time.Duration
	// HoldSampleEvery publishes every Nth consecutive HOLD (1 = every
	// hold). Defaults to defaultHoldSampleEvery.
	HoldSampleEvery int
	// Publish receives every emitted decision (sampled holds plus all
	// switches). Normally wired to the bus.
	Publish func(Decision)
	// OnSwitch is invoked for each SWITCH decision, after Publish.
	// Normally wired to the narration orchestrator.
	OnSwitch func(Decision)

	holdStreak int
}

// NewLoop creates a Loop around engine with default rate and sampling.
func NewLoop(engine *Engine) *Loop {
	return &Loop{engine: engine, Rate: 100 * time.Millisecond, HoldSampleEvery: defaultHoldSampleEvery}
}

// Run ticks until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	rate := l.Rate
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
			l.Step(now)
		}
	}
}

// Step runs one decision tick: tick the engine, sample holds, publish,
// and fan out switch notifications.
func (l *Loop) Step(now time.Time) Decision {
	d := l.engine.Tick(now)

	switch d.Action {
	case ActionSwitch:
		l.holdStreak = 0
		if l.Publish != nil {
			l.Publish(d)
		}
		if l.OnSwitch != nil {
			l.OnSwitch(d)
		}
	case ActionHold:
		l.holdStreak++
		every := l.HoldSampleEvery
		if every <= 0 {
			every = defaultHoldSampleEvery
		}
		if l.holdStreak%every == 1 || every == 1 {
			if l.Publish != nil {
				l.Publish(d)
			}
		}
	}
	return d
}
