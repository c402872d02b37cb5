package ws

import (
	"context"
	"encoding/json"

	"github.com/crace/crace/pkg/orchestrator"
)

// handleFrame decodes one inbound text frame and drives it through the
// voice pipeline. It returns false if the connection should be closed.
func (s *Server) handleFrame(ctx context.Context, c *conn, data []byte) bool {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = c.send(outboundFrame{Type: frameResponseComplete, Error: "malformed frame: " + err.Error()})
		return true
	}

	switch f.Type {
	case "ping":
		return true

	case "end_audio":
		transcript := s.transcribeBuffered(ctx, c, f.Mimetype)
		c.audio = nil
		if transcript == "" {
			return true
		}
		s.runRequest(ctx, c, orchestrator.Request{Transcript: transcript, ConvID: c.convID}, false, false)
		return true

	case "text_command":
		s.runRequest(ctx, c, orchestrator.Request{Transcript: f.Text, ConvID: c.convID}, f.SkipTTS, false)
		return true

	case "agentic_command":
		s.runRequest(ctx, c, orchestrator.Request{
			Transcript:   f.Text,
			FilePath:     f.FilePath,
			FileContent:  f.FileContent,
			CursorLine:   f.CursorLine,
			Selection:    f.Selection,
			ProjectRoot:  f.ProjectRoot,
			ErrorMessage: f.ErrorMessage,
			Mode:         f.Mode,
			ConvID:       c.convID,
		}, f.SkipTTS, true)
		return true

	default:
		_ = c.send(outboundFrame{Type: frameResponseComplete, Error: "unknown frame type: " + f.Type})
		return true
	}
}

// transcribeBuffered flushes the connection's accumulated audio through
// STT, wrapping raw PCM in a WAV container first so sample rate and
// channel count travel in-band.
func (s *Server) transcribeBuffered(ctx context.Context, c *conn, mimetype string) string {
	if s.STT == nil || len(c.audio) == 0 {
		return ""
	}
	payload := c.audio
	if mimetype == "audio/pcm" || mimetype == "" {
		payload = wrapPCM(c.audio, defaultSampleRate, defaultChannels, defaultBitsPerSample)
		mimetype = "audio/wav"
	}
	sttCtx, cancel := context.WithTimeout(ctx, s.STTTimeout)
	defer cancel()
	text, err := s.STT.Transcribe(sttCtx, payload, mimetype)
	if err != nil {
		s.Logger.Error("ws: transcription failed: %v", err)
		_ = c.send(outboundFrame{Type: frameResponseComplete, Error: "transcription failed: " + err.Error()})
		return ""
	}
	return text
}

// runRequest drives req through the Orchestrator and streams the
// response frames in order: action, (intent for agentic), zero or
// more llm_chunk, optional tts_start/audio/tts_done, (agent_result for
// agentic), then response_complete. Activity events stream alongside.
func (s *Server) runRequest(ctx context.Context, c *conn, req orchestrator.Request, skipTTS, agentic bool) {
	_ = c.send(outboundFrame{Type: frameAction, Action: "processing"})

	if s.Orchestrator == nil {
		_ = c.send(outboundFrame{Type: frameResponseComplete, Error: "orchestrator not configured"})
		return
	}

	resp := s.Orchestrator.Handle(ctx, req)

	if agentic {
		_ = c.send(outboundFrame{Type: frameIntent, Intent: string(resp.Intent)})
	}

	for _, ev := range resp.Activity {
		_ = c.send(outboundFrame{Type: frameActivity, Status: ev.Status, Message: ev.Message, Files: ev.Files})
	}

	_ = c.send(outboundFrame{Type: frameLLMChunk, Text: resp.Text})

	if !skipTTS && s.TTS != nil && resp.Text != "" {
		_ = c.send(outboundFrame{Type: frameTTSStart})
		ttsCtx, cancel := context.WithTimeout(ctx, s.TTSTimeout)
		audio, err := s.TTS.Synthesize(ttsCtx, resp.Text)
		cancel()
		if err != nil {
			s.Logger.Error("ws: speech synthesis failed: %v", err)
		} else {
			_ = c.sendBinary(audio)
		}
		_ = c.send(outboundFrame{Type: frameTTSDone})
	}

	if agentic {
		_ = c.send(outboundFrame{Type: frameAgentResult, Result: map[string]any{
			"intent": resp.Intent,
			"files":  filesTouched(resp),
		}})
	}

	_ = c.send(outboundFrame{
		Type:   frameResponseComplete,
		Intent: string(resp.Intent),
		Text:   resp.Text,
		Error:  resp.Error,
		Result: map[string]any{"intent": resp.Intent},
	})
}

func filesTouched(resp orchestrator.Response) []string {
	var files []string
	for _, ev := range resp.Activity {
		files = append(files, ev.Files...)
	}
	return files
}
