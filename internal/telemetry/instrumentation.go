package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes must stay low cardinality. File names, paths, URLs and
// run IDs belong in logs, which carry trace_id for correlation.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation instruments a generic operation with telemetry.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentClientOperation instruments remote session operations.
func (t *Telemetry) InstrumentClientOperation(ctx context.Context, client, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "client_"+operation, "session", func(ctx context.Context) error {
		if t.tracer == nil {
			return fn(ctx)
		}

		ctx, span := t.tracer.Start(ctx, "client_"+operation)
		defer span.End()

		span.SetAttributes(
			attribute.String("client.type", client),
			attribute.String("client.operation", operation),
		)

		return fn(ctx)
	})

	t.RecordClientOperation(client, operation, statusOf(err))

	return err
}

// InstrumentFile instruments the handling of one file, retries included.
// outcome maps the returned error to a file outcome label.
func (t *Telemetry) InstrumentFile(ctx context.Context, kind string, outcome func(error) string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveDownloads()
	defer t.DecrementActiveDownloads()

	err := t.InstrumentOperation(ctx, "file", "downloader", func(ctx context.Context) error {
		if t.tracer == nil {
			return fn(ctx)
		}

		ctx, span := t.tracer.Start(ctx, "save_file")
		defer span.End()

		span.SetAttributes(attribute.String("file.kind", kind))

		return fn(ctx)
	})

	t.RecordFile(outcome(err), time.Since(start))

	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
