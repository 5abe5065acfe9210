// Package bus implements the in-process pub/sub gluing the ranker,
// decision engine, and narrator together:
// three topics (scores, switch, narration), bounded per-subscriber
// queues, oldest-dropped backpressure, JSON payloads with field names
// fixed by the wire contract.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zsiec/autodirector/decision"
	"github.com/zsiec/autodirector/narration"
	"github.com/zsiec/autodirector/ranker"
)

// Topic names a pub/sub channel. One topic per message type keeps
// subscribers that only care about, say, switches, from paying the
// backpressure cost of high-volume score traffic.
type Topic string

const (
	TopicScores    Topic = "scores"
	TopicSwitch    Topic = "switch"
	TopicNarration Topic = "narration"
)

// MessageType is the discriminant carried in every envelope's "type"
// field.
type MessageType string

const (
	TypeScore     MessageType = "SCORE"
	TypeSwitch    MessageType = "SWITCH"
	TypeHold      MessageType = "HOLD"
	TypeNarration MessageType = "NARRATION"
)

// Envelope is the tagged-union wire format: {"type":..., "payload":...}.
// Payload is kept as json.RawMessage on decode so callers can switch on
// Type before unmarshaling the concrete payload.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ScorePayload is the scores topic's wire format.
type ScorePayload struct {
	CamID     string          `json:"camId"`
	Timestamp float64         `json:"timestamp"`
	Score     float64         `json:"score"`
	Reason    string          `json:"reason"`
	Features  FeaturesPayload `json:"features"`
}

// FeaturesPayload is the wire form of a camera's feature vector.
type FeaturesPayload struct {
	FaceSalience       float64  `json:"faceSalience"`
	MainSubjectOverlap float64  `json:"mainSubjectOverlap"`
	MotionSalience     float64  `json:"motionSalience"`
	SpeechEnergy       float64  `json:"speechEnergy"`
	KeywordBoost       float64  `json:"keywordBoost"`
	FramingScore       float64  `json:"framingScore"`
	NoveltyDecay       float64  `json:"noveltyDecay"`
	ContinuityBonus    float64  `json:"continuityBonus"`
	Interest           float64  `json:"interest"`
	Tags               []string `json:"tags,omitempty"`
	TopObjects         []string `json:"topObjects,omitempty"`
	RecentSpeechText   string   `json:"recentSpeechText,omitempty"`
}

// SwitchPayload is the switch topic's wire format, shared by SWITCH
// and HOLD. FromCam/ToCam/DeltaScore are pointers so an absent value
// serializes as a JSON field omission rather than a zero.
type SwitchPayload struct {
	Timestamp  float64  `json:"timestamp"`
	Action     string   `json:"action"`
	FromCam    *string  `json:"fromCam,omitempty"`
	ToCam      *string  `json:"toCam,omitempty"`
	DeltaScore *float64 `json:"deltaScore,omitempty"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
}

// NarrationPayload is the narration topic's wire format.
type NarrationPayload struct {
	Text         string  `json:"text"`
	DurationMs   int     `json:"durationMs"`
	Timestamp    float64 `json:"timestamp"`
	AudioBlobRef *string `json:"audioBlobRef,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FeaturesFromRanker converts a ranker.Features into its wire form.
func FeaturesFromRanker(f ranker.Features) FeaturesPayload {
	return FeaturesPayload{
		FaceSalience:       f.FaceSalience,
		MainSubjectOverlap: f.MainSubjectOverlap,
		MotionSalience:     f.MotionSalience,
		SpeechEnergy:       f.SpeechEnergy,
		KeywordBoost:       f.KeywordBoost,
		FramingScore:       f.FramingScore,
		NoveltyDecay:       f.NoveltyDecay,
		ContinuityBonus:    f.ContinuityBonus,
		Interest:           f.Interest,
		Tags:               f.Tags,
		TopObjects:         f.TopObjects,
		RecentSpeechText:   f.RecentSpeechText,
	}
}

// NewScoreEnvelope builds the SCORE envelope for a ranker.Score.
func NewScoreEnvelope(s ranker.Score) Envelope {
	payload := ScorePayload{
		CamID:     string(s.CamID),
		Timestamp: unixSeconds(s.Ts),
		Score:     s.Score,
		Reason:    s.Reason,
		Features:  FeaturesFromRanker(s.Features),
	}
	raw, _ := json.Marshal(payload)
	return Envelope{Type: TypeScore, Payload: raw}
}

// NewSwitchEnvelope builds a SWITCH or HOLD envelope for a decision.Decision.
func NewSwitchEnvelope(d decision.Decision) Envelope {
	payload := SwitchPayload{
		Timestamp:  unixSeconds(d.Ts),
		Action:     string(d.Action),
		Rationale:  d.Rationale,
		Confidence: d.Confidence,
	}
	if d.HasFrom {
		cam := string(d.FromCam)
		payload.FromCam = &cam
	}
	if d.HasTo {
		cam := string(d.ToCam)
		payload.ToCam = &cam
	}
	if d.HasDelta {
		delta := d.DeltaScore
		payload.DeltaScore = &delta
	}
	raw, _ := json.Marshal(payload)
	typ := TypeHold
	if d.Action == decision.ActionSwitch {
		typ = TypeSwitch
	}
	return Envelope{Type: typ, Payload: raw}
}

// NewNarrationEnvelope builds the NARRATION envelope for a narration.Narration.
func NewNarrationEnvelope(n narration.Narration) Envelope {
	payload := NarrationPayload{
		Text:       n.Text,
		DurationMs: n.DurationMs,
		Timestamp:  unixSeconds(n.Ts),
	}
	if n.HasAudioBlobRef {
		ref := n.AudioBlobRef
		payload.AudioBlobRef = &ref
	}
	raw, _ := json.Marshal(payload)
	return Envelope{Type: TypeNarration, Payload: raw}
}

// Decode parses a wire envelope, rejecting unknown type tags so a
// malformed or foreign message never propagates past the parser.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if TopicForType(env.Type) == "" {
		return Envelope{}, fmt.Errorf("bus: unknown message type %q", env.Type)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope's payload into dst, which
// should be the payload struct matching the envelope's Type.
func (e Envelope) DecodePayload(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// TopicForType maps a message type to the topic it publishes on.
func TopicForType(t MessageType) Topic {
	switch t {
	case TypeScore:
		return TopicScores
	case TypeSwitch, TypeHold:
		return TopicSwitch
	case TypeNarration:
		return TopicNarration
	default:
		return ""
	}
}
