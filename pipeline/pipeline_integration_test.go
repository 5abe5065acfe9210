package pipeline_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/analyzer"
	"github.com/zsiec/autodirector/bus"
	"github.com/zsiec/autodirector/decision"
	"github.com/zsiec/autodirector/ingress"
	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/narration"
	"github.com/zsiec/autodirector/observe"
	"github.com/zsiec/autodirector/pipeline"
	"github.com/zsiec/autodirector/ranker"
)

func brightFrame(cam media.CameraID, ts time.Time, luma byte) media.Frame {
	const w, h = 64, 48
	pixels := make([]byte, w*h*3/2)
	for i := 0; i < w*h; i++ {
		pixels[i] = luma
	}
	return media.Frame{CamID: cam, Timestamp: ts, Width: w, Height: h, Format: media.PixelFormatYUV420BT709, Pixels: pixels}
}

func loudAudio(cam media.CameraID, ts time.Time) media.AudioChunk {
	const rate = 16000
	samples := make([]int16, rate/10)
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return media.AudioChunk{CamID: cam, Timestamp: ts, SampleRate: rate, Samples: samples}
}

// TestIntegration_RoomToSwitchStream pushes synthetic media for two
// cameras through the full chain (room → adapter → sampler → ranker →
// decision → bus) and verifies an initial SWITCH lands on the switch
// topic with the brighter camera selected.
func TestIntegration_RoomToSwitchStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room := ingress.NewSyntheticRoom()
	adapter := ingress.NewAdapter(room, 20*time.Millisecond, nil)
	require.NoError(t, adapter.Start(ctx, "synthetic://test", ""))

	cache := observe.NewCache()
	registry := analyzer.NewDefaultRegistry(analyzer.DefaultKeywords())
	b := bus.New(64, nil)

	engine := decision.NewEngine(decision.DefaultPolicy(), nil)
	adapter.SetCameraEvents(nil, func(cam media.CameraID) {
		cache.Remove(cam)
		engine.RemoveCam(cam)
	})

	rnk := ranker.NewRanker(cache, registry, ranker.DefaultWeights(), rankerTestConfig(), engine, func(s ranker.Score) {
		engine.UpdateScore(s)
		b.Publish(bus.NewScoreEnvelope(s))
	}, nil)
	rnk.SetDegradedCheck(adapter.Degraded)

	sampler := pipeline.NewSampler(adapter, registry, cache, pipeline.Config{Rate: 20 * time.Millisecond}, nil)

	orch := narration.NewOrchestrator(narration.NewSilentSynthesizer(), narration.DefaultConfig(), func(n narration.Narration) {
		b.Publish(bus.NewNarrationEnvelope(n))
	}, nil)

	loop := decision.NewLoop(engine)
	loop.Rate = 20 * time.Millisecond
	loop.Publish = func(d decision.Decision) { b.Publish(bus.NewSwitchEnvelope(d)) }
	loop.OnSwitch = func(d decision.Decision) {
		if s, ok := rnk.LastScore(d.ToCam); ok {
			orch.HandleSwitch(ctx, d.ToCam, d.Ts, s.Features)
		}
	}

	switchSub := b.Subscribe(bus.TopicSwitch)
	scoreSub := b.Subscribe(bus.TopicScores)

	go func() { _ = adapter.Run(ctx) }()
	go func() { _ = sampler.Run(ctx) }()
	go func() { _ = rnk.Run(ctx, adapter.Cams) }()
	go func() { _ = loop.Run(ctx) }()

	dim, bright := media.CameraID("cam-dim"), media.CameraID("cam-bright")
	room.Join(dim)
	room.Join(bright)

	// Feed frames until the decision engine picks a program camera.
	feed := time.NewTicker(20 * time.Millisecond)
	defer feed.Stop()

	var initial *bus.SwitchPayload
	deadline := time.After(8 * time.Second)
feeding:
	for {
		select {
		case now := <-feed.C:
			room.PushFrame(dim, brightFrame(dim, now, 60))
			room.PushFrame(bright, brightFrame(bright, now, 220))
			room.PushAudio(bright, loudAudio(bright, now))
		case env := <-switchSub.C():
			if env.Type != bus.TypeSwitch {
				continue
			}
			var payload bus.SwitchPayload
			require.NoError(t, env.DecodePayload(&payload))
			initial = &payload
			break feeding
		case <-deadline:
			t.Fatal("no SWITCH observed on the bus")
		}
	}

	require.NotNil(t, initial)
	assert.Equal(t, "SWITCH", initial.Action)
	require.NotNil(t, initial.ToCam)
	assert.Equal(t, string(bright), *initial.ToCam)
	assert.Nil(t, initial.FromCam)
	assert.Equal(t, "initial", initial.Rationale)

	// Scores for both cameras were published, all within [0,1].
	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case env := <-scoreSub.C():
			var payload bus.ScorePayload
			require.NoError(t, env.DecodePayload(&payload))
			assert.GreaterOrEqual(t, payload.Score, 0.0)
			assert.LessOrEqual(t, payload.Score, 1.0)
			seen[payload.CamID] = true
		case <-timeout:
			t.Fatalf("scores seen for %d cameras, want 2", len(seen))
		}
	}
}

// TestIntegration_CameraLeaveEvictsState verifies a departed camera
// stops being scored and its observation cache entry is dropped.
func TestIntegration_CameraLeaveEvictsState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room := ingress.NewSyntheticRoom()
	adapter := ingress.NewAdapter(room, 20*time.Millisecond, nil)
	require.NoError(t, adapter.Start(ctx, "synthetic://test", ""))

	cache := observe.NewCache()
	engine := decision.NewEngine(decision.DefaultPolicy(), nil)
	adapter.SetCameraEvents(nil, func(cam media.CameraID) {
		cache.Remove(cam)
		engine.RemoveCam(cam)
	})

	go func() { _ = adapter.Run(ctx) }()

	cam := media.CameraID("cam-transient")
	room.Join(cam)
	require.Eventually(t, func() bool {
		return len(adapter.Cams()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cache.SetDetections(cam, time.Now(), []observe.Detection{{Class: "person", Confidence: 0.9}})
	engine.UpdateScore(ranker.Score{CamID: cam, Ts: time.Now(), Score: 0.5})

	room.Leave(cam)
	require.Eventually(t, func() bool {
		return len(adapter.Cams()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, cache.Cams())
	assert.Empty(t, engine.Scores())
}

func rankerTestConfig() ranker.Config {
	cfg := ranker.DefaultConfig()
	cfg.Rate = 20 * time.Millisecond
	return cfg
}
