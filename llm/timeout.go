package llm

import (
	"context"
	"time"
)

type timeoutClient struct {
	inner Client
	d     time.Duration
}

// WithTimeout wraps a client so every Generate call carries a wall-clock
// deadline. Iteration caps alone do not bound latency when the upstream is
// slow.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{inner: c, d: d}
}

func (t *timeoutClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Generate(ctx, req)
}
