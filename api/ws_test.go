package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/autodirector/bus"
	"github.com/zsiec/autodirector/config"
	"github.com/zsiec/autodirector/ranker"
)

func TestWSMirrorsBusTopics(t *testing.T) {
	b := bus.New(16, nil)
	srv, err := NewServer(ServerConfig{
		Addr:    ":0",
		Program: &stubProgram{},
		Bus:     b,
		Config:  config.Default(),
	}, nil)
	require.NoError(t, err)
	srv.SetReady(true)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Give the handler time to register its subscribers before
	// publishing, since Subscribe happens after the upgrade.
	time.Sleep(50 * time.Millisecond)

	b.Publish(bus.NewScoreEnvelope(ranker.Score{
		CamID: "camA",
		Ts:    time.Now(),
		Score: 0.42,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env bus.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, bus.TypeScore, env.Type)

	var payload bus.ScorePayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "camA", payload.CamID)
	assert.InDelta(t, 0.42, payload.Score, 1e-9)
}
