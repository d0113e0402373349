package cmd

import (
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/predict"
)

func dialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStream_SendsStatusOnConnect(t *testing.T) {
	conn := dialStream(t)

	var status streamResponse
	require.NoError(t, conn.ReadJSON(&status))

	assert.Equal(t, msgStatus, status.Type)
	assert.Equal(t, []string{predict.FamilyMarkov, predict.FamilyNGram, predict.FamilySequence}, status.Models)
	assert.Equal(t, sim.DefaultFrameCount, status.FrameCount)
}

func TestStream_AccessesEveryModel(t *testing.T) {
	// GIVEN a connected client
	conn := dialStream(t)
	var status streamResponse
	require.NoError(t, conn.ReadJSON(&status))

	// WHEN it sends the same page twice
	var replies [2]streamResponse
	for i := range replies {
		require.NoError(t, conn.WriteJSON(map[string]any{"processId": "P3", "pageNumber": 9}))
		require.NoError(t, conn.ReadJSON(&replies[i]))
	}

	// THEN every model faults first and hits second
	for i, wantHit := range []bool{false, true} {
		assert.Equal(t, msgAccess, replies[i].Type)
		assert.Equal(t, sim.NewPage("P3", 9), *replies[i].Page)
		require.Len(t, replies[i].Results, 3)
		for family, rep := range replies[i].Results {
			assert.Equal(t, wantHit, rep.Result.Hit, family)
		}
	}
}

func TestStream_StatsAndUnknownMessages(t *testing.T) {
	conn := dialStream(t)
	var status streamResponse
	require.NoError(t, conn.ReadJSON(&status))

	var stats streamResponse
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "stats"}))
	require.NoError(t, conn.ReadJSON(&stats))
	assert.Equal(t, msgStats, stats.Type)
	require.NotNil(t, stats.Stats)
	assert.Len(t, stats.Stats.Families, 3)

	var bad streamResponse
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "evict"}))
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, msgError, bad.Type)
	assert.Contains(t, bad.Error, "evict")
}
