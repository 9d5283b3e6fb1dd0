package watchman

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/jmurray2011/watchman/internal/cloudwatch"
)

// Watchman owns the connection to one CloudWatch log stream and hands out
// writers for it.
type Watchman struct {
	client *cloudwatch.StreamClient
	writer *Writer
}

// New creates the CloudWatch Logs client from cfg, provisions group and
// stream, and returns once provisioning has been attempted. Remote errors
// during provisioning do not fail New; they go to the ErrorHandler. New
// fails only when the sink cannot be built locally.
func New(ctx context.Context, cfg aws.Config, group, stream string, opts ...Option) (*Watchman, error) {
	o := buildOptions(opts)
	api := cloudwatch.NewLogsClientFromConfig(cfg, o.endpoint)
	return newWatchman(ctx, api, group, stream, o)
}

// NewWithAPI is like New but uses the given API client, for tests or
// custom transports.
func NewWithAPI(ctx context.Context, api LogsAPI, group, stream string, opts ...Option) (*Watchman, error) {
	return newWatchman(ctx, api, group, stream, buildOptions(opts))
}

// Must panics if err is non-nil. It is meant for process startup, where a
// sink that cannot be built should stop the program.
func Must(w *Watchman, err error) *Watchman {
	if err != nil {
		panic(fmt.Sprintf("watchman: %v", err))
	}
	return w
}

func newWatchman(ctx context.Context, api LogsAPI, group, stream string, o options) (*Watchman, error) {
	client, err := cloudwatch.NewStreamClient(api, StreamIdentity{Group: group, Stream: stream}, o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create log sink: %w", err)
	}

	_ = client.Init(ctx)

	return &Watchman{
		client: client,
		writer: newWriter(client),
	}, nil
}

// Writer returns a writer for the stream. Every call returns a new Writer
// sharing the same connection.
func (w *Watchman) Writer() *Writer {
	return w.writer.Clone()
}

// Identity returns the log group and stream being written.
func (w *Watchman) Identity() StreamIdentity {
	return w.client.Identity()
}

// Pending returns the number of batches queued or in flight.
func (w *Watchman) Pending() int64 {
	return w.client.Pending()
}

// Dropped returns the number of batches discarded because the queue was
// full or the Watchman was closed.
func (w *Watchman) Dropped() int64 {
	return w.client.Dropped()
}

// Close stops accepting lines and waits for queued batches to be sent or
// for ctx to end. Writes after Close are dropped.
func (w *Watchman) Close(ctx context.Context) error {
	return w.client.Close(ctx)
}
