package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/crace/crace/internal/errs"
)

// limited decorates a Client with a request rate limiter and a per-call
// deadline, so the orchestrator's external-call stage stays bounded no
// matter what the underlying provider binding does.
type limited struct {
	inner   Client
	limiter *rate.Limiter
	timeout time.Duration
}

// Limited wraps inner so every call first reserves a slot on limiter, then
// runs under timeout. A nil limiter skips rate limiting; a non-positive
// timeout skips the deadline. Exceeding either surfaces as an errs.Timeout.
func Limited(inner Client, limiter *rate.Limiter, timeout time.Duration) Client {
	return &limited{inner: inner, limiter: limiter, timeout: timeout}
}

func (l *limited) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.Timeout, "llm.Limited", "waiting for rate limiter", err)
	}
	return nil
}

func (l *limited) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	text, err := l.inner.Complete(ctx, req)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return "", errs.Wrap(errs.Timeout, "llm.Limited", "completion timed out", err)
	}
	return text, err
}

func (l *limited) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}

	streamCtx := ctx
	cancel := context.CancelFunc(func() {})
	if l.timeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}

	inner, err := l.inner.Stream(streamCtx, req)
	if err != nil {
		cancel()
		if streamCtx.Err() == context.DeadlineExceeded {
			return nil, errs.Wrap(errs.Timeout, "llm.Limited", "stream timed out", err)
		}
		return nil, err
	}

	// The deadline covers the whole stream: forward chunks until the inner
	// channel closes or the deadline fires, then release the timer.
	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-streamCtx.Done():
				return
			case c, ok := <-inner:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-streamCtx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
