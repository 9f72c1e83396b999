package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates embedding token consumption across one
// request. The transport seeds the context with a collector, the
// embedder adds to it, and the transport reports the total back to the
// caller in response headers.
type EmbeddingUsage struct {
	TotalTokens int
	// Used distinguishes "embedded for free via cache" from "never
	// embedded at all"; both leave TotalTokens at zero.
	Used bool
}

// NewContextWithUsage seeds ctx with a fresh usage collector and returns
// both so the caller can read the totals after the request completes.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector seeded by the transport, or
// nil when the request did not ask for usage accounting.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil collector.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.TotalTokens += n
	u.Used = true
}
