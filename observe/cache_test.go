package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/media"
)

func TestCacheSnapshotIsolation(t *testing.T) {
	t.Parallel()
	c := NewCache()
	now := time.Now()
	c.SetDetections("camA", now, []Detection{{Class: "person", Confidence: 0.9}})

	snap := c.Snapshot("camA")
	require.Len(t, snap.Detections, 1)

	// Mutating the returned snapshot must not affect the cache.
	snap.Detections[0].Confidence = 0
	again := c.Snapshot("camA")
	require.Equal(t, 0.9, again.Detections[0].Confidence)
}

func TestCacheUnavailableDoesNotClearLastObservation(t *testing.T) {
	t.Parallel()
	c := NewCache()
	now := time.Now()
	c.SetScene("camA", now, SceneDescription{Interest: 4})
	c.MarkUnavailable("camA", KindScene)

	snap := c.Snapshot("camA")
	require.NotNil(t, snap.Scene)
	require.Equal(t, 4, snap.Scene.Interest)
	require.True(t, snap.Unavailable[KindScene])
}

func TestCacheRemove(t *testing.T) {
	t.Parallel()
	c := NewCache()
	c.SetDetections("camA", time.Now(), []Detection{{Class: "person"}})
	require.Len(t, c.Cams(), 1)
	c.Remove("camA")
	require.Empty(t, c.Cams())

	snap := c.Snapshot("camA")
	require.Equal(t, media.CameraID("camA"), snap.CamID)
	require.Empty(t, snap.Detections)
}

func TestAppendSpeechTrimsToMax(t *testing.T) {
	t.Parallel()
	c := NewCache()
	now := time.Now()
	for i := 0; i < 5; i++ {
		c.AppendSpeech("camA", now, []SpeechSegment{{Text: "x"}}, 3)
	}
	snap := c.Snapshot("camA")
	require.Len(t, snap.Speech, 3)
}
