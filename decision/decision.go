package decision

import (
	"time"

	"github.com/zsiec/autodirector/media"
)

// Action is the decision kind published on the switch topic.
type Action string

const (
	ActionSwitch Action = "SWITCH"
	ActionHold   Action = "HOLD"
)

// Decision is one tick's output. FromCam/ToCam/
// DeltaScore are optional on the wire; Has* flags stand in for that
// optionality since CameraID has no natural zero-as-absent value.
type Decision struct {
	Ts         time.Time
	Action     Action
	FromCam    media.CameraID
	HasFrom    bool
	ToCam      media.CameraID
	HasTo      bool
	DeltaScore float64
	HasDelta   bool
	Rationale  string
	Confidence float64
}
