// Package decision implements the switching decision engine:
// the sole writer of program state, turning a stream of camera scores
// into SWITCH/HOLD decisions under hysteresis, cooldown, anti-ping-pong,
// max-shot-duration, and speech-boundary-alignment constraints.
package decision

import (
	"fmt"
	"time"
)

// Policy is the immutable-per-run switching configuration.
type Policy struct {
	MinHoldSec          float64       `json:"minHoldSec" yaml:"minHoldSec"`
	CooldownSec         float64       `json:"cooldownSec" yaml:"cooldownSec"`
	DeltaSThreshold     float64       `json:"deltaSThreshold" yaml:"deltaSThreshold"`
	MaxShotDurationSec  float64       `json:"maxShotDurationSec" yaml:"maxShotDurationSec"`
	EnableHysteresis    bool          `json:"enableHysteresis" yaml:"enableHysteresis"`
	EnableCooldown      bool          `json:"enableCooldown" yaml:"enableCooldown"`
	EnableSpeechAlign   bool          `json:"enableSpeechAlign" yaml:"enableSpeechAlign"`
	PingPongWindow      int           `json:"pingPongWindow" yaml:"pingPongWindow"`
	PingPongMaxRevisits int           `json:"pingPongMaxRevisits" yaml:"pingPongMaxRevisits"`
	MaxDeferTicks       int           `json:"maxDeferTicks" yaml:"maxDeferTicks"`
	StalenessWindow     time.Duration `json:"stalenessWindowNs" yaml:"stalenessWindowNs"`
}

// DefaultPolicy returns broadcast-sane defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinHoldSec:          2.0,
		CooldownSec:         4.0,
		DeltaSThreshold:     0.15,
		MaxShotDurationSec:  15.0,
		EnableHysteresis:    true,
		EnableCooldown:      true,
		EnableSpeechAlign:   true,
		PingPongWindow:      5,
		PingPongMaxRevisits: 2,
		MaxDeferTicks:       3,
		StalenessWindow:     2 * time.Second,
	}
}

// Validate rejects an invalid policy. Callers treat a failure as fatal
// at startup.
func (p Policy) Validate() error {
	if p.MinHoldSec < 0 {
		return fmt.Errorf("decision: minHoldSec must be >= 0, got %v", p.MinHoldSec)
	}
	if p.CooldownSec < 0 {
		return fmt.Errorf("decision: cooldownSec must be >= 0, got %v", p.CooldownSec)
	}
	if p.DeltaSThreshold < 0 {
		return fmt.Errorf("decision: deltaSThreshold must be >= 0, got %v", p.DeltaSThreshold)
	}
	if p.MaxShotDurationSec < 0 {
		return fmt.Errorf("decision: maxShotDurationSec must be >= 0, got %v", p.MaxShotDurationSec)
	}
	if p.PingPongWindow < 0 {
		return fmt.Errorf("decision: pingPongWindow must be >= 0, got %v", p.PingPongWindow)
	}
	if p.PingPongMaxRevisits < 0 {
		return fmt.Errorf("decision: pingPongMaxRevisits must be >= 0, got %v", p.PingPongMaxRevisits)
	}
	if p.MaxDeferTicks < 0 {
		return fmt.Errorf("decision: maxDeferTicks must be >= 0, got %v", p.MaxDeferTicks)
	}
	return nil
}

func (p Policy) cooldownDuration() time.Duration {
	return time.Duration(p.CooldownSec * float64(time.Second))
}

func (p Policy) pingPongWindow() int {
	if p.PingPongWindow <= 0 {
		return 5
	}
	return p.PingPongWindow
}

func (p Policy) pingPongMaxRevisits() int {
	if p.PingPongMaxRevisits <= 0 {
		return 2
	}
	return p.PingPongMaxRevisits
}

func (p Policy) maxDeferTicks() int {
	if p.MaxDeferTicks <= 0 {
		return 3
	}
	return p.MaxDeferTicks
}

func (p Policy) stalenessWindow() time.Duration {
	if p.StalenessWindow <= 0 {
		return 2 * time.Second
	}
	return p.StalenessWindow
}
