package narration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/ranker"
)

// Config tunes the orchestrator's budget and safety filter, fed from
// the MAX_TTS_LATENCY_MS / MAX_NARRATION_WORDS configuration keys.
type Config struct {
	MaxWords        int
	MaxTTSLatencyMs int
	Blocklist       []string
}

// DefaultConfig returns the standard budget.
func DefaultConfig() Config {
	return Config{MaxWords: defaultMaxWords, MaxTTSLatencyMs: 600}
}

func (c Config) maxLatency() time.Duration {
	if c.MaxTTSLatencyMs <= 0 {
		return 600 * time.Millisecond
	}
	return time.Duration(c.MaxTTSLatencyMs) * time.Millisecond
}

// Orchestrator runs at most one synthesis at a time; a newer switch
// cancels whatever narration is in flight, so the freshest context
// always wins.
type Orchestrator struct {
	log     *slog.Logger
	synth   Synthesizer
	cfg     Config
	filter  SafetyFilter
	publish func(Narration)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOrchestrator creates an Orchestrator. publish is called with each
// narration synthesized within the latency budget (the safety filter
// only decides whether recent speech may be used as the text); normally
// wired to bus.Publish.
func NewOrchestrator(synth Synthesizer, cfg Config, publish func(Narration), log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		log:     log.With("component", "narration"),
		synth:   synth,
		cfg:     cfg,
		filter:  SafetyFilter{Blocklist: cfg.Blocklist},
		publish: publish,
	}
}

// HandleSwitch assembles and synthesizes narration for a SWITCH to
// toCam, using the ranker's last feature snapshot for that cam. Any
// narration already in flight is canceled first.
func (o *Orchestrator) HandleSwitch(ctx context.Context, toCam media.CameraID, ts time.Time, features ranker.Features) {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	synthCtx, cancel := context.WithTimeout(ctx, o.cfg.maxLatency())
	o.cancel = cancel
	o.mu.Unlock()

	go o.run(synthCtx, cancel, toCam, ts, features)
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, toCam media.CameraID, ts time.Time, features ranker.Features) {
	defer cancel()

	text := buildText(features, o.filter, o.cfg.MaxWords)
	start := time.Now()
	blob, err := o.synth.Synthesize(ctx, text)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == nil {
			o.log.Warn("tts synthesis failed, narration dropped", "cam", toCam, "err", err)
		}
		return
	}
	if elapsed > o.cfg.maxLatency() {
		o.log.Warn("narration exceeded latency budget, dropped", "cam", toCam, "elapsed_ms", elapsed.Milliseconds())
		return
	}
	if o.publish == nil {
		return
	}
	o.publish(Narration{
		Text:            text,
		DurationMs:      blob.DurationMs,
		Ts:              ts,
		AudioBlobRef:    blob.Ref,
		HasAudioBlobRef: blob.Ref != "",
	})
}
