package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/jmurray2011/watchman/internal/ansi"
	"github.com/jmurray2011/watchman/internal/dispatch"
	"github.com/jmurray2011/watchman/internal/logging"
)

// CloudWatch Logs limits
const (
	// EventOverheadBytes is what CloudWatch adds to each message when sizing a batch
	EventOverheadBytes = 26

	// MaxEventBytes is the largest message a single event may carry
	MaxEventBytes = 256*1024 - EventOverheadBytes

	// MaxBatchEvents and MaxBatchBytes bound one PutLogEvents call
	MaxBatchEvents = 10000
	MaxBatchBytes  = 1024 * 1024
)

// Operation names passed to an ErrorHandler.
const (
	OpCreateLogGroup  = "CreateLogGroup"
	OpCreateLogStream = "CreateLogStream"
	OpPutLogEvents    = "PutLogEvents"
	OpEnqueue         = "Enqueue"
)

// LogsAPI is the subset of the CloudWatch Logs API the stream client needs.
// *cloudwatchlogs.Client satisfies it.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

var _ LogsAPI = (*cloudwatchlogs.Client)(nil)

// ErrorHandler observes errors the stream client absorbs. It is called from
// the dispatch workers for delivery errors, so it must be safe for
// concurrent use and must not write to the sink it observes.
type ErrorHandler func(op string, err error)

// StreamIdentity names the remote destination. It is fixed for the lifetime
// of a StreamClient.
type StreamIdentity struct {
	Group  string
	Stream string
}

// String returns "group/stream".
func (id StreamIdentity) String() string {
	return id.Group + "/" + id.Stream
}

// Validate reports whether both names are set.
func (id StreamIdentity) Validate() error {
	if id.Group == "" {
		return errors.New("log group name is required")
	}
	if id.Stream == "" {
		return errors.New("log stream name is required")
	}
	return nil
}

// Options configures a StreamClient.
type Options struct {
	// Workers and QueueSize size the shared dispatch pool
	Workers   int
	QueueSize int

	// TaskTimeout bounds each PutLogEvents call. Zero disables it.
	TaskTimeout time.Duration

	// Echo receives every raw line before it is transformed. Nil disables it.
	Echo io.Writer

	// StripPrefix drops the first space-delimited token of every line.
	// Console formatters put a timestamp there, which CloudWatch records anyway.
	StripPrefix bool

	StripMode ansi.Mode

	// ErrorHandler replaces the default handler, which logs at debug level.
	ErrorHandler ErrorHandler

	Logger logging.Logger

	// Clock stamps events. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Workers:     dispatch.DefaultWorkers,
		QueueSize:   dispatch.DefaultQueueSize,
		TaskTimeout: dispatch.DefaultTaskTimeout,
		Echo:        os.Stdout,
		StripPrefix: true,
		StripMode:   ansi.ModeCSI,
	}
}

// StreamClient owns one log group/stream pair and delivers batches to it
// without blocking the caller. It is safe for concurrent use and meant to
// be shared by every writer targeting the same stream.
//
// Provisioning and delivery errors are never returned to the caller. They
// go to the ErrorHandler and are otherwise dropped; nothing is retried.
type StreamClient struct {
	api    LogsAPI
	id     StreamIdentity
	pool   *dispatch.Pool
	opts   Options
	logger logging.Logger

	echoMu sync.Mutex
}

// NewStreamClient creates a client for id and starts its dispatch pool.
// It fails only for local problems: a nil api, an incomplete identity or a
// pool that cannot be built.
func NewStreamClient(api LogsAPI, id StreamIdentity, opts Options) (*StreamClient, error) {
	if api == nil {
		return nil, errors.New("cloudwatch logs API client is required")
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithFields(map[string]interface{}{
		"group":  id.Group,
		"stream": id.Stream,
	})

	pool, err := dispatch.New(opts.Workers, opts.QueueSize,
		dispatch.WithTaskTimeout(opts.TaskTimeout),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start dispatch pool: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &StreamClient{
		api:    api,
		id:     id,
		pool:   pool,
		opts:   opts,
		logger: logger,
	}
	if c.opts.ErrorHandler == nil {
		c.opts.ErrorHandler = c.logAbsorbed
	}

	return c, nil
}

// MustNewStreamClient is like NewStreamClient but panics on error.
func MustNewStreamClient(api LogsAPI, id StreamIdentity, opts Options) *StreamClient {
	c, err := NewStreamClient(api, id, opts)
	if err != nil {
		panic(fmt.Sprintf("cloudwatch: %v", err))
	}
	return c
}

// Identity returns the group/stream this client writes to.
func (c *StreamClient) Identity() StreamIdentity {
	return c.id
}

// EnsureGroup creates the log group. It always returns nil: an existing
// group is expected, and any other failure goes to the ErrorHandler.
func (c *StreamClient) EnsureGroup(ctx context.Context) error {
	_, err := c.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(c.id.Group),
	})
	c.absorb(OpCreateLogGroup, err)
	return nil
}

// EnsureStream creates the log stream inside the group. Same contract as
// EnsureGroup.
func (c *StreamClient) EnsureStream(ctx context.Context) error {
	_, err := c.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.id.Group),
		LogStreamName: aws.String(c.id.Stream),
	})
	c.absorb(OpCreateLogStream, err)
	return nil
}

// Init provisions the group and then the stream. The stream is attempted
// whatever happened to the group. Init failures are not observable through
// its return value, which is always nil.
func (c *StreamClient) Init(ctx context.Context) error {
	_ = c.EnsureGroup(ctx)
	_ = c.EnsureStream(ctx)
	return nil
}

// Submit turns lines into one batch and queues a single PutLogEvents call
// for it. Each raw line is echoed first; then its leading token is dropped
// (when StripPrefix is set), escape sequences are removed and the event is
// stamped with the current time.
//
// A nil return means the batch was accepted for dispatch, not that it was
// delivered. dispatch.ErrQueueFull and dispatch.ErrClosed are returned when
// it was not accepted. Lines that end up empty are left out of the batch,
// and a batch with no events is not sent. Batches over the PutLogEvents
// limits are split and each part is dispatched on its own.
func (c *StreamClient) Submit(lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	events := make([]types.InputLogEvent, 0, len(lines))
	for _, line := range lines {
		c.echo(line)

		msg := c.prepare(line)
		if msg == "" {
			continue
		}
		events = append(events, types.InputLogEvent{
			Message:   aws.String(msg),
			Timestamp: aws.Int64(c.opts.Clock().UnixMilli()),
		})
	}
	if len(events) == 0 {
		return nil
	}

	var firstErr error
	for _, batch := range splitBatch(events) {
		input := &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(c.id.Group),
			LogStreamName: aws.String(c.id.Stream),
			LogEvents:     batch,
		}

		if err := c.pool.TrySubmit(func(ctx context.Context) {
			c.put(ctx, input)
		}); err != nil {
			c.opts.ErrorHandler(OpEnqueue, fmt.Errorf("batch of %d events not accepted: %w", len(batch), err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// splitBatch cuts events into consecutive runs that each fit one
// PutLogEvents call. Event order is kept.
func splitBatch(events []types.InputLogEvent) [][]types.InputLogEvent {
	var batches [][]types.InputLogEvent
	start, size := 0, 0
	for i, e := range events {
		n := len(aws.ToString(e.Message)) + EventOverheadBytes
		if i > start && (i-start == MaxBatchEvents || size+n > MaxBatchBytes) {
			batches = append(batches, events[start:i])
			start, size = i, 0
		}
		size += n
	}
	if start < len(events) {
		batches = append(batches, events[start:])
	}
	return batches
}

// Pending returns the number of batches queued or in flight.
func (c *StreamClient) Pending() int64 {
	return c.pool.Pending()
}

// Dropped returns the number of batches that were never queued.
func (c *StreamClient) Dropped() int64 {
	return c.pool.Dropped()
}

// Close stops accepting batches and waits until queued ones have been sent
// or ctx ends.
func (c *StreamClient) Close(ctx context.Context) error {
	return c.pool.Close(ctx)
}

func (c *StreamClient) put(ctx context.Context, input *cloudwatchlogs.PutLogEventsInput) {
	out, err := c.api.PutLogEvents(ctx, input)
	if err != nil {
		c.opts.ErrorHandler(OpPutLogEvents, err)
		return
	}
	if out != nil && out.RejectedLogEventsInfo != nil {
		c.opts.ErrorHandler(OpPutLogEvents, rejectedError(out.RejectedLogEventsInfo))
	}
}

func (c *StreamClient) prepare(line string) string {
	msg := line
	if c.opts.StripPrefix {
		msg = DropLeadingToken(msg)
	}
	msg = c.opts.StripMode.Apply(msg)
	return truncate(msg, MaxEventBytes)
}

func (c *StreamClient) echo(line string) {
	if c.opts.Echo == nil {
		return
	}
	c.echoMu.Lock()
	defer c.echoMu.Unlock()
	fmt.Fprintln(c.opts.Echo, line)
}

// absorb hides "already exists" and hands anything else to the ErrorHandler.
func (c *StreamClient) absorb(op string, err error) {
	if err == nil {
		c.logger.Debug("%s succeeded", op)
		return
	}
	if IsAlreadyExists(err) {
		return
	}
	c.opts.ErrorHandler(op, err)
}

func (c *StreamClient) logAbsorbed(op string, err error) {
	fields := map[string]interface{}{"op": op}
	if code := ErrorCode(err); code != "" {
		fields["code"] = code
	}
	c.logger.WithFields(fields).Debug("absorbed error: %v", err)
}

// DropLeadingToken removes everything up to and including the first space.
// A line without a space has no message left and yields "".
func DropLeadingToken(line string) string {
	_, rest, found := strings.Cut(line, " ")
	if !found {
		return ""
	}
	return rest
}

// IsAlreadyExists reports whether err means the group or stream is already there.
func IsAlreadyExists(err error) bool {
	var exists *types.ResourceAlreadyExistsException
	if errors.As(err, &exists) {
		return true
	}
	return ErrorCode(err) == "ResourceAlreadyExistsException"
}

// ErrorCode returns the AWS API error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	i := limit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

func rejectedError(info *types.RejectedLogEventsInfo) error {
	var parts []string
	if info.TooNewLogEventStartIndex != nil {
		parts = append(parts, fmt.Sprintf("too new from index %d", *info.TooNewLogEventStartIndex))
	}
	if info.TooOldLogEventEndIndex != nil {
		parts = append(parts, fmt.Sprintf("too old up to index %d", *info.TooOldLogEventEndIndex))
	}
	if info.ExpiredLogEventEndIndex != nil {
		parts = append(parts, fmt.Sprintf("expired up to index %d", *info.ExpiredLogEventEndIndex))
	}
	if len(parts) == 0 {
		return errors.New("log events rejected")
	}
	return fmt.Errorf("log events rejected: %s", strings.Join(parts, ", "))
}
