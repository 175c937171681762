package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	stageKey   contextKey = "stage"
	wellKey    contextKey = "well"
	requestKey contextKey = "request_id"
)

// withLabel stores a non-empty label; empty values leave ctx untouched so a
// caller can pass through whatever it has.
func withLabel(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func label(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRunID tags ctx with the identifier of one compress or stitch batch.
func WithRunID(ctx context.Context, id string) context.Context {
	return withLabel(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) { return label(ctx, runIDKey) }

// WithStage tags ctx with the processing stage (scan, stitch, compress, decompress).
func WithStage(ctx context.Context, stage string) context.Context {
	return withLabel(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return label(ctx, stageKey) }

// WithWell tags ctx with a well label such as "S00 U01 V02".
func WithWell(ctx context.Context, well string) context.Context {
	return withLabel(ctx, wellKey, well)
}

func WellFromContext(ctx context.Context) (string, bool) { return label(ctx, wellKey) }

// WithRequestID tags ctx with the identifier of one CLI invocation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withLabel(ctx, requestKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return label(ctx, requestKey) }
