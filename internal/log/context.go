// SPDX-License-Identifier: MIT

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	runIDKey
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func valueOf(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID tags ctx with an HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithRunID tags ctx with an aggregation run id.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return valueOf(ctx, requestIDKey) }

func RunIDFromContext(ctx context.Context) string { return valueOf(ctx, runIDKey) }

// WithContext adds the request and run ids found in ctx to logger. The
// logger is returned unchanged when ctx carries neither.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rid, run := RequestIDFromContext(ctx), RunIDFromContext(ctx)
	if rid == "" && run == "" {
		return logger
	}
	lc := logger.With()
	if rid != "" {
		lc = lc.Str(FieldRequestID, rid)
	}
	if run != "" {
		lc = lc.Str(FieldRunID, run)
	}
	return lc.Logger()
}

// WithComponentFromContext is WithComponent plus the ids from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
