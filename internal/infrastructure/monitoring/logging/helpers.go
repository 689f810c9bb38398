package logging

import "time"

// Common field keys.
const (
	FieldRunID       = "run_id"
	FieldStage       = "stage"
	FieldRegion      = "region"
	FieldDestination = "destination"
	FieldPath        = "path"
)

// slowOperation is the threshold above which LogOperationDuration logs at WARN.
const slowOperation = 30 * time.Second

// LogOperationDuration logs the elapsed time since start for a named operation.
func LogOperationDuration(l Logger, op string, start time.Time, fields ...Field) {
	elapsed := time.Since(start)
	fields = append(fields,
		String("operation", op),
		Int64("duration_ms", elapsed.Milliseconds()),
	)
	if elapsed > slowOperation {
		l.Warn("slow operation completed", fields...)
		return
	}
	l.Info("operation completed", fields...)
}

//Personal.AI order the ending
