// Package ws implements the voice channel: a single WebSocket endpoint
// that accepts binary audio chunks and JSON control frames, drives them
// through STT and the Orchestrator, and streams back typed response
// frames.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/pkg/llm"
	"github.com/crace/crace/pkg/orchestrator"
)

// DefaultSpeechTimeout caps one STT or TTS provider call when the caller
// does not configure its own bound.
const DefaultSpeechTimeout = 20 * time.Second

// Server upgrades HTTP connections to the voice WebSocket protocol.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	STT          llm.STTClient
	TTS          llm.TTSClient
	Logger       log.Logger

	// STTTimeout and TTSTimeout bound one provider call each; both default
	// to DefaultSpeechTimeout.
	STTTimeout time.Duration
	TTSTimeout time.Duration

	upgrader websocket.Upgrader
}

// NewServer builds a Server. logger defaults to log.Default().
func NewServer(orch *orchestrator.Orchestrator, stt llm.STTClient, tts llm.TTSClient, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		Orchestrator: orch,
		STT:          stt,
		TTS:          tts,
		Logger:       logger,
		STTTimeout:   DefaultSpeechTimeout,
		TTSTimeout:   DefaultSpeechTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The control plane and voice channel are same-origin behind
			// the CRACE daemon's own HTTP server; there is no
			// cross-origin browser client to validate against.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// conn tracks the per-connection audio buffer and serializes writes, since
// gorilla/websocket connections are not safe for concurrent writers.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	audio   []byte
	convID  string
}

func (c *conn) send(f outboundFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *conn) sendBinary(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// the client disconnects or a fatal read error occurs.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("ws: upgrade failed: %v", err)
		return
	}
	defer wsConn.Close()

	c := &conn{ws: wsConn}
	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			c.audio = append(c.audio, data...)
		case websocket.TextMessage:
			if !s.handleFrame(r.Context(), c, data) {
				return
			}
		}
	}
}
