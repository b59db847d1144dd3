package logging

import (
	"context"
	"maps"
)

type contextKey string

const contextFieldsKey contextKey = "publisher.logging.fields"

// ContextWithFields returns a context carrying fields that the console
// provider merges into every entry logged with that context.
func ContextWithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil || len(fields) == 0 {
		return ctx
	}
	merged := ContextFields(ctx)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return context.WithValue(ctx, contextFieldsKey, merged)
}

// ContextWithTask is a shorthand for tagging ctx with a task identifier.
func ContextWithTask(ctx context.Context, taskID string) context.Context {
	if taskID == "" {
		return ctx
	}
	return ContextWithFields(ctx, map[string]any{fieldTaskID: taskID})
}

// ContextFields returns a copy of the fields stored on ctx.
func ContextFields(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	fields, ok := ctx.Value(contextFieldsKey).(map[string]any)
	if !ok || len(fields) == 0 {
		return nil
	}
	return maps.Clone(fields)
}
