package analyzer

import (
	"context"
	"fmt"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// HeuristicSceneDescriber is the deterministic reference SceneDescriber.
// It derives tags and a caption from the detections already produced for
// the frame, and an interest level from detection count and confidence —
// no model weights involved.
type HeuristicSceneDescriber struct{}

// Describe implements SceneDescriber.
func (HeuristicSceneDescriber) Describe(ctx context.Context, frame media.Frame, detections []observe.Detection) (observe.SceneDescription, error) {
	if err := ctx.Err(); err != nil {
		return observe.SceneDescription{}, err
	}

	if len(detections) == 0 {
		return observe.SceneDescription{
			Tags:       []string{"empty"},
			Caption:    "an empty shot",
			Interest:   1,
			Confidence: 0.4,
		}, nil
	}

	classCounts := make(map[string]int)
	var confSum float64
	for _, d := range detections {
		classCounts[d.Class]++
		confSum += d.Confidence
	}

	tags := make([]string, 0, len(classCounts))
	for class := range classCounts {
		tags = append(tags, class)
	}

	interest := 1 + len(detections)
	if interest > 5 {
		interest = 5
	}

	caption := fmt.Sprintf("%d %s in frame", len(detections), pluralize(detections[0].Class, len(detections)))

	return observe.SceneDescription{
		Tags:       tags,
		Caption:    caption,
		Interest:   interest,
		Confidence: clamp01(confSum / float64(len(detections))),
	}, nil
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
