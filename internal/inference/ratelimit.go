package inference

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/agenthands/uidn/internal/core/model"
)

// RateLimitedClient throttles calls to the wrapped client with a token bucket
// shared by every case and modality.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

func RateLimited(next Client, rps float64, burst int) *RateLimitedClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *RateLimitedClient) Invoke(ctx context.Context, modality model.Modality, payload Payload, opts Options) (RawOutput, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return RawOutput{}, err
	}
	return c.next.Invoke(ctx, modality, payload, opts)
}
