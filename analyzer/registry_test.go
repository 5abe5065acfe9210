package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistryWiresAllFour(t *testing.T) {
	t.Parallel()
	reg := NewDefaultRegistry([]string{"goal"})
	require.NotNil(t, reg.Detector)
	require.NotNil(t, reg.Tracker)
	require.NotNil(t, reg.Scene)
	require.NotNil(t, reg.Speech)

	states := reg.States()
	require.Equal(t, "cold", states["detector"])
	require.Equal(t, "cold", states["speech"])

	reg.DetectorLifecycle().BeginCall()
	reg.DetectorLifecycle().CallSucceeded()
	require.Equal(t, "ready", reg.States()["detector"])
}
