// Package codecmetrics provides the optional metrics/tracing surface
// shared by the tar and multipart pipelines: a Recorder bundling a
// tracer and counters, which a caller may supply per pipeline instance.
package codecmetrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const pkgname = "github.com/kitten/multitars"

// Recorder bundles the counters a pipeline reports to. Both NewReader
// and NewWriter constructors accept a *Recorder override via
// WithRecorder, defaulting to Nop(). Build one with New or Nop: a nil
// *Recorder records nothing, but a zero-value Recorder has no counters
// and must not be used.
type Recorder struct {
	Tracer trace.Tracer

	entries metric.Int64Counter
	bytes   metric.Int64Counter
}

// New builds a Recorder bound to the given tracer/meter providers. Pass
// nil for either to use the globally registered provider.
func New(tp trace.TracerProvider, mp metric.MeterProvider) *Recorder {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(pkgname)
	entries, err := meter.Int64Counter("multitars.entries",
		metric.WithDescription("tar entries or multipart parts yielded"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		panic(err)
	}
	bytesCounter, err := meter.Int64Counter("multitars.bytes",
		metric.WithDescription("payload bytes read or written across all entries"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(err)
	}
	return &Recorder{
		Tracer:  tp.Tracer(pkgname),
		entries: entries,
		bytes:   bytesCounter,
	}
}

// Nop returns a Recorder backed by the no-op otel providers.
func Nop() *Recorder {
	return New(trace.NewNoopTracerProvider(), noop.NewMeterProvider())
}

// EntryYielded records one entry/part having been produced.
func (r *Recorder) EntryYielded(ctx context.Context) {
	if r == nil {
		return
	}
	r.entries.Add(ctx, 1)
}

// BytesMoved records n payload bytes having been read or written.
func (r *Recorder) BytesMoved(ctx context.Context, n int64) {
	if r == nil || n == 0 {
		return
	}
	r.bytes.Add(ctx, n)
}
