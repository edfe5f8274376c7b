package multipart

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitten/multitars/codeclog"
	"github.com/kitten/multitars/codecmetrics"
)

// Option configures a Reader or Writer.
type Option func(*options)

type options struct {
	log           codeclog.Logger
	rec           *codecmetrics.Recorder
	blockSize     int
	maxPreamble   int
	maxHeaderLine int
	maxHeaderSize int
	boundary      string
}

const (
	defaultBlockSize     = 4096
	defaultMaxPreamble   = 16 * 1024
	defaultMaxHeaderLine = 8 * 1024
	defaultMaxHeaderSize = 32 * 1024
)

func newOptions(opts []Option) *options {
	o := &options{
		log:           codeclog.Nop(),
		rec:           codecmetrics.Nop(),
		blockSize:     defaultBlockSize,
		maxPreamble:   defaultMaxPreamble,
		maxHeaderLine: defaultMaxHeaderLine,
		maxHeaderSize: defaultMaxHeaderSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(zap.String("stream_id", uuid.NewString()))
	return o
}

// WithLogger attaches a structured logger.
func WithLogger(log codeclog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRecorder attaches a metrics/tracing recorder.
func WithRecorder(rec *codecmetrics.Recorder) Option {
	return func(o *options) { o.rec = rec }
}

// WithBlockSize overrides the BlockReader's block size. It must be at
// least the length of the boundary pattern ("\r\n--" plus the boundary id);
// the default comfortably covers any realistic boundary length.
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithPreambleLimit overrides the preamble byte cap (spec.md §4.7.a).
func WithPreambleLimit(n int) Option {
	return func(o *options) { o.maxPreamble = n }
}

// WithHeaderLimits overrides the per-line and total header byte caps
// (spec.md §4.7.b).
func WithHeaderLimits(maxLine, maxTotal int) Option {
	return func(o *options) { o.maxHeaderLine = maxLine; o.maxHeaderSize = maxTotal }
}

// WithBoundary pins a Writer's boundary id instead of letting it reuse
// the process-lifetime default (spec.md §6 design note).
func WithBoundary(id string) Option {
	return func(o *options) { o.boundary = id }
}
