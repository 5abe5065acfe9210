// Package ingress implements the Media Ingress Adapter: it
// maintains a subscribe-only session with the upstream SFU, demuxes each
// remote camera into canonical Frame/AudioChunk sequences, and samples
// them for the scheduler at a fixed analysis rate.
package ingress

import (
	"context"

	"github.com/zsiec/autodirector/media"
)

// TrackKind distinguishes a subscribed track's media type.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// Track is a subscribed remote track's sample source. The concrete
// transport (WebRTC or otherwise) is an external collaborator; the core
// only consumes this capability").
type Track interface {
	// NextFrame blocks until a new video frame is available, the track
	// ends, or ctx is canceled. Only meaningful for video tracks.
	NextFrame(ctx context.Context) (media.Frame, error)
	// NextAudio blocks until a new audio chunk is available, the track
	// ends, or ctx is canceled. Only meaningful for audio tracks.
	NextAudio(ctx context.Context) (media.AudioChunk, error)
}

// MediaRoom is the upstream SFU capability the ingress adapter
// consumes. The transport is unspecified; any implementation that
// fulfills this contract can back the adapter, including the
// deterministic SyntheticRoom used for tests and local runs.
type MediaRoom interface {
	// Connect establishes the subscribe-only session. Idempotent.
	Connect(ctx context.Context, url, token string) error
	// OnParticipantJoin/OnParticipantLeave deliver join/leave events in
	// join order on the returned channels, which the room closes when
	// ctx is canceled.
	OnParticipantJoin(ctx context.Context) <-chan media.CameraID
	OnParticipantLeave(ctx context.Context) <-chan media.CameraID
	// Subscribe returns the named track for a camera, or an error if
	// the grant is refused.
	Subscribe(ctx context.Context, cam media.CameraID, kind TrackKind) (Track, error)
}
