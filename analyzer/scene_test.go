package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/observe"
)

func TestHeuristicSceneDescriberEmptyFrame(t *testing.T) {
	t.Parallel()
	sd := HeuristicSceneDescriber{}
	desc, err := sd.Describe(context.Background(), frameFixture(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, desc.Interest)
	require.Contains(t, desc.Tags, "empty")
}

func TestHeuristicSceneDescriberWithDetections(t *testing.T) {
	t.Parallel()
	sd := HeuristicSceneDescriber{}
	dets := []observe.Detection{
		{Class: "person", Confidence: 0.9},
		{Class: "person", Confidence: 0.7},
	}
	desc, err := sd.Describe(context.Background(), frameFixture(), dets)
	require.NoError(t, err)
	require.Equal(t, 3, desc.Interest)
	require.Contains(t, desc.Caption, "persons")
	require.InDelta(t, 0.8, desc.Confidence, 0.001)
}

func TestSceneDescriptionNormalizedInterest(t *testing.T) {
	t.Parallel()
	require.Equal(t, 0.0, observe.SceneDescription{Interest: 1}.NormalizedInterest())
	require.Equal(t, 1.0, observe.SceneDescription{Interest: 5}.NormalizedInterest())
	require.InDelta(t, 0.5, observe.SceneDescription{Interest: 3}.NormalizedInterest(), 0.001)
}
