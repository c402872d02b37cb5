package llm

import (
	"context"
	"fmt"
)

// StubClient is a deterministic Client used by tests and as a last-resort
// fallback: it never calls out to a real provider, it only echoes a
// templated acknowledgement of the context it was handed.
type StubClient struct {
	// Response, if set, is returned verbatim instead of the generated echo.
	Response string
	// Err, if set, is returned by Complete/Stream instead of a response.
	Err error
}

// CannedFallbackResponse is the apologetic text returned when the real
// LLM backend is unavailable or times out.
const CannedFallbackResponse = "I wasn't able to reach the language model just now, but here's what I found in the codebase."

func (c *StubClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	if c.Response != "" {
		return c.Response, nil
	}
	return fmt.Sprintf("[stub] considered %d chars of system context and %d chars of user context", len(req.SystemContext), len(req.UserContext)), nil
}

func (c *StubClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	text, _ := c.Complete(ctx, req)
	ch := make(chan Chunk, 2)
	ch <- Chunk{Text: text}
	ch <- Chunk{Done: true}
	close(ch)
	return ch, nil
}
