package watchman

import (
	"io"
	"time"

	"github.com/jmurray2011/watchman/internal/ansi"
	"github.com/jmurray2011/watchman/internal/cloudwatch"
	"github.com/jmurray2011/watchman/internal/logging"
)

// Re-exported so callers can configure the sink without importing internals.
type (
	// LogsAPI is the subset of the CloudWatch Logs client the sink calls.
	LogsAPI = cloudwatch.LogsAPI

	// ErrorHandler observes provisioning and delivery errors the sink absorbs.
	ErrorHandler = cloudwatch.ErrorHandler

	// StreamIdentity names the log group and stream a Watchman writes to.
	StreamIdentity = cloudwatch.StreamIdentity

	// StripMode selects which escape sequences are removed from lines.
	StripMode = ansi.Mode

	// Logger receives watchman's own diagnostics.
	Logger = logging.Logger
)

// Strip modes.
const (
	StripCSI  = ansi.ModeCSI
	StripAll  = ansi.ModeAll
	StripNone = ansi.ModeNone
)

// Operation names passed to an ErrorHandler.
const (
	OpCreateLogGroup  = cloudwatch.OpCreateLogGroup
	OpCreateLogStream = cloudwatch.OpCreateLogStream
	OpPutLogEvents    = cloudwatch.OpPutLogEvents
	OpEnqueue         = cloudwatch.OpEnqueue
)

// Option configures optional behavior of a Watchman.
type Option func(*options)

type options struct {
	client   cloudwatch.Options
	endpoint string
}

func defaultOptions() options {
	return options{client: cloudwatch.DefaultOptions()}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithWorkers sets how many goroutines send batches. Values below one make
// construction fail.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.client.Workers = n
	}
}

// WithQueueSize sets how many batches may wait for a worker. When the queue
// is full new lines are dropped rather than blocking the writer.
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.client.QueueSize = n
	}
}

// WithTaskTimeout bounds each PutLogEvents call. Zero disables the bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) {
		o.client.TaskTimeout = d
	}
}

// WithEcho sets where raw lines are echoed. Defaults to os.Stdout; nil
// disables the echo.
func WithEcho(w io.Writer) Option {
	return func(o *options) {
		o.client.Echo = w
	}
}

// WithStripPrefix controls whether the first space-delimited token of each
// line is dropped. Enabled by default. Disable it when the frontend does not
// start lines with a timestamp or level, or the first word will be lost.
func WithStripPrefix(enabled bool) Option {
	return func(o *options) {
		o.client.StripPrefix = enabled
	}
}

// WithStripMode selects which escape sequences are removed.
func WithStripMode(mode StripMode) Option {
	return func(o *options) {
		o.client.StripMode = mode
	}
}

// WithErrorHandler sets the observer for absorbed errors. By default they
// are logged at debug level to stderr.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.client.ErrorHandler = h
	}
}

// WithLogger sets the logger for watchman's own diagnostics.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.client.Logger = l
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.client.Clock = now
	}
}

// WithEndpoint overrides the CloudWatch Logs endpoint used by New.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
	}
}
