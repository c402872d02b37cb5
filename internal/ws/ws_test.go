package ws

import (
	"context"
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cracecontext "github.com/crace/crace/pkg/context"
	"github.com/crace/crace/pkg/llm"
	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/orchestrator"
	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/symbol"
)

func TestWrapPCM_BuildsValidRIFFHeader(t *testing.T) {
	pcm := make([]byte, 320) // 10ms of mono 16kHz 16-bit silence
	wav := wrapPCM(pcm, 16000, 1, 16)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

type stubSTT struct{ text string }

func (s stubSTT) Transcribe(ctx context.Context, audio []byte, mimetype string) (string, error) {
	return s.text, nil
}

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	idx := symbol.NewIndex()
	rnk := ranker.New()
	gatherer := cracecontext.NewGatherer(idx, rnk)
	store, err := memory.New(t.TempDir())
	require.NoError(t, err)
	return orchestrator.New(gatherer, store, &llm.StubClient{Response: "hello from crace"}, nil)
}

func TestServeHTTP_TextCommandRoundTrip(t *testing.T) {
	srv := NewServer(newTestOrchestrator(t), nil, nil, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer wsConn.Close()

	require.NoError(t, wsConn.WriteJSON(map[string]any{"type": "text_command", "text": "explain this"}))

	var gotComplete bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var f map[string]any
		wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := wsConn.ReadJSON(&f); err != nil {
			break
		}
		if f["type"] == frameResponseComplete {
			gotComplete = true
			assert.Equal(t, "hello from crace", f["text"])
			break
		}
	}
	assert.True(t, gotComplete, "expected a response_complete frame")
}

func TestServeHTTP_EndAudioTranscribesThenResponds(t *testing.T) {
	srv := NewServer(newTestOrchestrator(t), stubSTT{text: "what does this do"}, nil, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer wsConn.Close()

	require.NoError(t, wsConn.WriteMessage(websocket.BinaryMessage, make([]byte, 640)))
	require.NoError(t, wsConn.WriteJSON(map[string]any{"type": "end_audio", "mimetype": "audio/pcm"}))

	var gotComplete bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var f map[string]any
		wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := wsConn.ReadJSON(&f); err != nil {
			break
		}
		if f["type"] == frameResponseComplete {
			gotComplete = true
			break
		}
	}
	assert.True(t, gotComplete)
}
