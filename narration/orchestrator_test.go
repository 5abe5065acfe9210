package narration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/ranker"
)

// fakeSynth is a hand-written test double: it blocks until either ctx
// is canceled or delay elapses, then returns a fixed blob.
type fakeSynth struct {
	delay time.Duration
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (AudioBlob, error) {
	if f.err != nil {
		return AudioBlob{}, f.err
	}
	select {
	case <-time.After(f.delay):
		return AudioBlob{Ref: "blob-1", DurationMs: 100}, nil
	case <-ctx.Done():
		return AudioBlob{}, ctx.Err()
	}
}

func TestHandleSwitchPublishesNarrationOnSuccess(t *testing.T) {
	published := make(chan Narration, 1)
	o := NewOrchestrator(&fakeSynth{}, DefaultConfig(), func(n Narration) { published <- n }, nil)

	o.HandleSwitch(context.Background(), media.CameraID("camA"), time.Now(), ranker.Features{Tags: []string{"goal"}})

	select {
	case n := <-published:
		assert.Contains(t, n.Text, "goal")
		assert.True(t, n.HasAudioBlobRef)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for narration")
	}
}

func TestHandleSwitchDropsNarrationWhenSynthesizerErrors(t *testing.T) {
	published := make(chan Narration, 1)
	o := NewOrchestrator(&fakeSynth{err: errors.New("tts down")}, DefaultConfig(), func(n Narration) { published <- n }, nil)

	o.HandleSwitch(context.Background(), media.CameraID("camA"), time.Now(), ranker.Features{})

	select {
	case <-published:
		t.Fatal("narration should not have been published")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleSwitchDropsNarrationOverLatencyBudget(t *testing.T) {
	published := make(chan Narration, 1)
	cfg := DefaultConfig()
	cfg.MaxTTSLatencyMs = 1 // synthesis context expires almost immediately
	slow := &fakeSynth{delay: 50 * time.Millisecond}
	o := NewOrchestrator(slow, cfg, func(n Narration) { published <- n }, nil)

	o.HandleSwitch(context.Background(), media.CameraID("camA"), time.Now(), ranker.Features{})

	select {
	case <-published:
		t.Fatal("narration over budget should have been dropped")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHandleSwitchCancelsPriorInFlightSynthesis(t *testing.T) {
	published := make(chan Narration, 2)
	slow := &fakeSynth{delay: time.Second}
	o := NewOrchestrator(slow, DefaultConfig(), func(n Narration) { published <- n }, nil)

	o.HandleSwitch(context.Background(), media.CameraID("camA"), time.Now(), ranker.Features{Tags: []string{"first"}})
	time.Sleep(20 * time.Millisecond)

	fast := &fakeSynth{}
	o.synth = fast
	o.HandleSwitch(context.Background(), media.CameraID("camB"), time.Now(), ranker.Features{Tags: []string{"second"}})

	select {
	case n := <-published:
		assert.Contains(t, n.Text, "second")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second narration")
	}

	select {
	case n := <-published:
		t.Fatalf("first narration should have been canceled, got %+v", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHandleSwitchWithNilPublishDoesNotPanic(t *testing.T) {
	o := NewOrchestrator(&fakeSynth{}, DefaultConfig(), nil, nil)
	require.NotPanics(t, func() {
		o.HandleSwitch(context.Background(), media.CameraID("camA"), time.Now(), ranker.Features{})
		time.Sleep(50 * time.Millisecond)
	})
}
