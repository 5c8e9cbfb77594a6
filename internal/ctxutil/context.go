// Package ctxutil builds the contexts node operations run under and
// carries per-request trace ids across call chains.
package ctxutil

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"PastryDHT/internal/domain"

	"github.com/oklog/ulid/v2"
)

// unexported key to avoid collisions
type traceKey struct{}

// ContextOption configures the behavior of NewContext. Multiple options
// can be combined.
type ContextOption func(*ctxConfig)

type ctxConfig struct {
	withTrace bool
	nodeID    string
	timeout   time.Duration
}

// WithTrace enables attaching a fresh trace id to the created context,
// derived from the given node id.
func WithTrace(nodeID domain.ID) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withTrace = true
		cfg.nodeID = fmt.Sprintf("%d", uint32(nodeID))
	}
}

// WithTimeout sets a timeout on the created context. The caller must
// defer the cancel function returned by NewContext.
func WithTimeout(d time.Duration) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.timeout = d
	}
}

// NewContext creates a new context configured according to the provided
// options.
//
// Returns:
//   - context.Context: the configured context
//   - context.CancelFunc: a cancel function (nil if no timeout was set)
func NewContext(opts ...ContextOption) (context.Context, context.CancelFunc) {
	cfg := &ctxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), cfg.timeout)
	} else {
		ctx = context.Background()
	}
	if cfg.withTrace {
		ctx = context.WithValue(ctx, traceKey{}, generateTraceID(cfg.nodeID))
	}
	return ctx, cancel
}

// generateTraceID builds a globally unique trace id in the format
// <nodeID>-<ULID>.
func generateTraceID(nodeID string) string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return fmt.Sprintf("%s-%s", nodeID, id.String())
}

// EnsureTraceID checks whether the context already carries a trace id
// and attaches a fresh one derived from nodeID when it does not.
func EnsureTraceID(ctx context.Context, nodeID domain.ID) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = context.WithValue(ctx, traceKey{},
			generateTraceID(fmt.Sprintf("%d", uint32(nodeID))))
	}
	return ctx
}

// GetTraceID retrieves the trace id from the context, or "" if absent.
func GetTraceID(ctx context.Context) string {
	if v := ctx.Value(traceKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// CheckContext verifies whether the provided context has been canceled
// or its deadline has expired. Typically invoked at the beginning of an
// operation to ensure the request is still worth serving.
func CheckContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request canceled: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request deadline exceeded: %w", err)
	default:
		return nil
	}
}
