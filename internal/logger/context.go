package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the carrying context
type LogFields struct {
	RunID      string // snowflake id of the current run
	Source     string // source URL
	SourceKind string // ics, rss or page
	Component  string // e.g. "eventsweep.pipeline"
}

// WithLogFields merges fields into ctx. Non-empty values override.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)

	if fields.RunID != "" {
		merged.RunID = fields.RunID
	}
	if fields.Source != "" {
		merged.Source = fields.Source
	}
	if fields.SourceKind != "" {
		merged.SourceKind = fields.SourceKind
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}

	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields carried by ctx, or the zero value
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Truncate shortens s to maxLen bytes for log output
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
