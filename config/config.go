// Package config loads runtime configuration for the director from
// environment variables, with an optional YAML overlay and .env
// preload.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/zsiec/autodirector/decision"
	"github.com/zsiec/autodirector/ranker"
)

// Config is every knob the director exposes. Rates are in Hz,
// durations in seconds, matching the env key names.
type Config struct {
	AnalysisRateHz float64 `yaml:"analysisRateHz"`
	RankingRateHz  float64 `yaml:"rankingRateHz"`
	DecisionRateHz float64 `yaml:"decisionRateHz"`

	Policy decision.Policy `yaml:"policy"`

	Weights ranker.Weights `yaml:"weights"`

	MaxTTSLatencyMs  int `yaml:"maxTTSLatencyMs"`
	MaxNarrationWord int `yaml:"maxNarrationWords"`

	APIAddr string `yaml:"apiAddr"`

	BusQueueSize int `yaml:"busQueueSize"`
}

// Default returns the built-in defaults for every field.
func Default() Config {
	return Config{
		AnalysisRateHz:   10,
		RankingRateHz:    10,
		DecisionRateHz:   10,
		Policy:           decision.DefaultPolicy(),
		Weights:          ranker.DefaultWeights(),
		MaxTTSLatencyMs:  600,
		MaxNarrationWord: 12,
		APIAddr:          ":4490",
		BusQueueSize:     256,
	}
}

// Load builds a Config by layering, in increasing precedence: built-in
// defaults, an optional YAML file at yamlPath (skipped if empty or
// missing), a .env file in the working directory (godotenv, ignored if
// absent), then process environment variables. It
// returns an error if the resulting config fails Validate.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	_ = godotenv.Load() // no .env file is not an error

	applyEnv(&cfg)

	if err := cfg.Policy.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid policy: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envFloat("ANALYSIS_RATE_HZ", &cfg.AnalysisRateHz)
	envFloat("RANKING_RATE_HZ", &cfg.RankingRateHz)
	envFloat("DECISION_RATE_HZ", &cfg.DecisionRateHz)

	envFloat("MIN_HOLD_SEC", &cfg.Policy.MinHoldSec)
	envFloat("COOLDOWN_SEC", &cfg.Policy.CooldownSec)
	envFloat("DELTA_S_THRESHOLD", &cfg.Policy.DeltaSThreshold)
	envFloat("MAX_SHOT_DURATION_SEC", &cfg.Policy.MaxShotDurationSec)
	envInt("PING_PONG_WINDOW", &cfg.Policy.PingPongWindow)
	envInt("PING_PONG_MAX_REVISITS", &cfg.Policy.PingPongMaxRevisits)
	envInt("MAX_DEFER_TICKS", &cfg.Policy.MaxDeferTicks)

	envInt("MAX_TTS_LATENCY_MS", &cfg.MaxTTSLatencyMs)
	envInt("MAX_NARRATION_WORDS", &cfg.MaxNarrationWord)

	envFloat("W_FACE_SALIENCE", &cfg.Weights.FaceSalience)
	envFloat("W_MOTION_SALIENCE", &cfg.Weights.MotionSalience)
	envFloat("W_MAIN_SUBJECT_OVERLAP", &cfg.Weights.MainSubjectOverlap)
	envFloat("W_SPEECH_ENERGY", &cfg.Weights.SpeechEnergy)
	envFloat("W_KEYWORD_BOOST", &cfg.Weights.KeywordBoost)
	envFloat("W_FRAMING_SCORE", &cfg.Weights.FramingScore)
	envFloat("W_NOVELTY_DECAY", &cfg.Weights.NoveltyDecay)
	envFloat("W_CONTINUITY_BONUS", &cfg.Weights.ContinuityBonus)
	envFloat("W_INTEREST", &cfg.Weights.Interest)

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = parsed
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = parsed
}
