package tar

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitten/multitars/codeclog"
	"github.com/kitten/multitars/codecmetrics"
)

// Option configures a Reader or Writer.
type Option func(*options)

type options struct {
	log codeclog.Logger
	rec *codecmetrics.Recorder
}

// newOptions applies opts over the defaults and tags the resulting
// logger with a per-stream correlation id, so log lines from
// concurrent Readers/Writers in the same process can be told apart.
func newOptions(opts []Option) *options {
	o := &options{log: codeclog.Nop(), rec: codecmetrics.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(zap.String("stream_id", uuid.NewString()))
	return o
}

// WithLogger attaches a structured logger; tolerated checksum
// mismatches are logged at Debug. Ignored or malformed PAX records are
// not logged.
func WithLogger(log codeclog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRecorder attaches a metrics/tracing recorder.
func WithRecorder(rec *codecmetrics.Recorder) Option {
	return func(o *options) { o.rec = rec }
}
