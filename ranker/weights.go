package ranker

// Weights holds the fusion weights for each feature term.
// The zero value is invalid; use DefaultWeights and override individual
// fields from configuration.
type Weights struct {
	FaceSalience       float64 `json:"faceSalience" yaml:"faceSalience"`
	MotionSalience     float64 `json:"motionSalience" yaml:"motionSalience"`
	MainSubjectOverlap float64 `json:"mainSubjectOverlap" yaml:"mainSubjectOverlap"`
	SpeechEnergy       float64 `json:"speechEnergy" yaml:"speechEnergy"`
	KeywordBoost       float64 `json:"keywordBoost" yaml:"keywordBoost"`
	FramingScore       float64 `json:"framingScore" yaml:"framingScore"`
	NoveltyDecay       float64 `json:"noveltyDecay" yaml:"noveltyDecay"`
	ContinuityBonus    float64 `json:"continuityBonus" yaml:"continuityBonus"`
	Interest           float64 `json:"interest" yaml:"interest"`
}

// DefaultWeights returns the standard fusion weights, already summing
// to 1.
func DefaultWeights() Weights {
	return Weights{
		FaceSalience:       0.25,
		MotionSalience:     0.15,
		MainSubjectOverlap: 0.15,
		SpeechEnergy:       0.15,
		KeywordBoost:       0.10,
		FramingScore:       0.10,
		NoveltyDecay:       0.05,
		ContinuityBonus:    0.05,
		Interest:           0.10,
	}
}

// Sum returns the sum of all weight fields.
func (w Weights) Sum() float64 {
	return w.FaceSalience + w.MotionSalience + w.MainSubjectOverlap +
		w.SpeechEnergy + w.KeywordBoost + w.FramingScore +
		w.NoveltyDecay + w.ContinuityBonus + w.Interest
}

// Normalized returns w scaled so its weights sum to 1. If the sum is
// zero or negative, DefaultWeights is returned instead.
func (w Weights) Normalized() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		FaceSalience:       w.FaceSalience / sum,
		MotionSalience:     w.MotionSalience / sum,
		MainSubjectOverlap: w.MainSubjectOverlap / sum,
		SpeechEnergy:       w.SpeechEnergy / sum,
		KeywordBoost:       w.KeywordBoost / sum,
		FramingScore:       w.FramingScore / sum,
		NoveltyDecay:       w.NoveltyDecay / sum,
		ContinuityBonus:    w.ContinuityBonus / sum,
		Interest:           w.Interest / sum,
	}
}

func (w Weights) terms(f Features, avail map[string]bool) []term {
	has := func(name string) bool {
		if avail == nil {
			return true
		}
		return avail[name]
	}
	return []term{
		{"face", f.FaceSalience, w.FaceSalience, has("face")},
		{"motion", f.MotionSalience, w.MotionSalience, has("motion")},
		{"subject", f.MainSubjectOverlap, w.MainSubjectOverlap, has("subject")},
		{"speech", f.SpeechEnergy, w.SpeechEnergy, has("speech")},
		{"keyword", f.KeywordBoost, w.KeywordBoost, has("keyword")},
		{"framing", f.FramingScore, w.FramingScore, has("framing")},
		{"novelty", f.NoveltyDecay, w.NoveltyDecay, has("novelty")},
		{"continuity", f.ContinuityBonus, w.ContinuityBonus, has("continuity")},
		{"interest", f.Interest, w.Interest, has("interest")},
	}
}

// Fuse computes the weighted sum of f's terms, redistributing the
// weight of any unavailable term proportionally over the available
// ones, so a missing expensive signal never depresses a camera. avail
// may be nil, meaning every term is available.
func (w Weights) Fuse(f Features, avail map[string]bool) (score float64, terms []term) {
	terms = w.terms(f, avail)

	var availableWeight float64
	for _, t := range terms {
		if t.available {
			availableWeight += t.weight
		}
	}
	if availableWeight <= 0 {
		return 0, terms
	}

	for _, t := range terms {
		if !t.available {
			continue
		}
		redistributed := t.weight / availableWeight
		score += redistributed * t.value
	}
	return clamp01(score), terms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
