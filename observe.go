package runecaller

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dirtywork-solutions/runecaller/signal"
)

// scopeName is the instrumentation scope for dispatch tracing and metrics.
const scopeName = "github.com/dirtywork-solutions/runecaller"

// observer wraps each dispatch in an OpenTelemetry span and records
// per-dispatch metrics. With no global providers configured both APIs
// return noop implementations and the observer is a pass-through.
type observer struct {
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	deliveries metric.Int64Counter
}

func newObserver() *observer {
	return newObserverWith(otel.Tracer(scopeName), otel.Meter(scopeName))
}

// newObserverWith allows injecting specific providers for testing.
func newObserverWith(tracer trace.Tracer, meter metric.Meter) *observer {
	// On error the OTel API returns noop instruments, so the observer
	// degrades gracefully.
	duration, _ := meter.Float64Histogram(
		"runecaller.dispatch.duration",
		metric.WithDescription("Duration of one dispatch call in seconds"),
		metric.WithUnit("s"),
	)
	deliveries, _ := meter.Int64Counter(
		"runecaller.dispatch.deliveries",
		metric.WithDescription("Total receiver deliveries"),
		metric.WithUnit("{delivery}"),
	)

	return &observer{tracer: tracer, duration: duration, deliveries: deliveries}
}

// start opens a span for one dispatch and returns the instrumented
// context plus a completion callback that records the batch outcome.
func (o *observer) start(ctx context.Context, mode string, msg signal.Message) (context.Context, func(*Batch)) {
	begin := time.Now()
	ctx, span := o.tracer.Start(ctx, "runecaller.dispatch",
		trace.WithAttributes(
			attribute.String("runecaller.signal", msg.Signal.String()),
			attribute.String("runecaller.sender", msg.Sender.String()),
			attribute.String("runecaller.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, func(b *Batch) {
		defer span.End()

		elapsed := time.Since(begin).Seconds()
		modeAttr := attribute.String("mode", mode)
		o.duration.Record(ctx, elapsed, metric.WithAttributes(modeAttr))

		if b == nil {
			span.SetStatus(codes.Error, "dispatch failed")
			return
		}

		span.SetAttributes(
			attribute.String("runecaller.dispatch_id", b.ID.String()),
			attribute.Int("runecaller.receivers", b.Len()),
			attribute.Bool("runecaller.aborted", b.Aborted),
		)

		var ok, failed int64
		for _, r := range b.Results {
			if r.Failed() {
				failed++
			} else {
				ok++
			}
		}
		if ok > 0 {
			o.deliveries.Add(ctx, ok, metric.WithAttributes(modeAttr, attribute.String("status", "ok")))
		}
		if failed > 0 {
			o.deliveries.Add(ctx, failed, metric.WithAttributes(modeAttr, attribute.String("status", "error")))
		}
		span.SetStatus(codes.Ok, "")
	}
}
