package logging

import (
	"context"
)

const (
	RequestIDKey     = "request_id"
	TraceIDKey       = "trace_id"
	BatchIDKey       = "batch_id"
	WorkstationIDKey = "workstation_id"
	ActorKey         = "actor"
	ServiceNameKey   = "service_name"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

func WithWorkstationID(ctx context.Context, workstationID string) context.Context {
	return context.WithValue(ctx, WorkstationIDKey, workstationID)
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func stringValue(ctx context.Context, key string) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetRequestID(ctx context.Context) string     { return stringValue(ctx, RequestIDKey) }
func GetTraceID(ctx context.Context) string       { return stringValue(ctx, TraceIDKey) }
func GetBatchID(ctx context.Context) string       { return stringValue(ctx, BatchIDKey) }
func GetWorkstationID(ctx context.Context) string { return stringValue(ctx, WorkstationIDKey) }
func GetActor(ctx context.Context) string         { return stringValue(ctx, ActorKey) }
func GetServiceName(ctx context.Context) string   { return stringValue(ctx, ServiceNameKey) }

// GetLogFields collects the request-scoped fields present on the context as
// alternating key/value pairs for the sugared logger.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 12)

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, RequestIDKey, requestID)
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}
	if batchID := GetBatchID(ctx); batchID != "" {
		fields = append(fields, BatchIDKey, batchID)
	}
	if workstationID := GetWorkstationID(ctx); workstationID != "" {
		fields = append(fields, WorkstationIDKey, workstationID)
	}
	if actor := GetActor(ctx); actor != "" {
		fields = append(fields, ActorKey, actor)
	}
	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	return fields
}
