// Package cloudwatchtest provides an in-memory CloudWatch Logs API for tests.
package cloudwatchtest

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// Event is a delivered log event.
type Event struct {
	Message   string
	Timestamp int64
}

// Put is one recorded PutLogEvents call.
type Put struct {
	Group  string
	Stream string
	Events []Event
}

// LogsAPI is a fake CloudWatch Logs backend. Groups and streams are created
// on first request and report ResourceAlreadyExistsException afterwards.
// The error fields, when set, are returned instead of the normal result.
type LogsAPI struct {
	GroupErr  error
	StreamErr error
	PutErr    error

	// PutDelay simulates network latency on PutLogEvents
	PutDelay time.Duration

	mu          sync.Mutex
	groups      map[string]bool
	streams     map[string]bool
	groupCalls  int
	streamCalls int
	puts        []Put
}

// New returns an empty fake.
func New() *LogsAPI {
	return &LogsAPI{
		groups:  make(map[string]bool),
		streams: make(map[string]bool),
	}
}

// Failing returns a fake whose every call fails with err.
func Failing(err error) *LogsAPI {
	f := New()
	f.GroupErr = err
	f.StreamErr = err
	f.PutErr = err
	return f
}

func (f *LogsAPI) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.groupCalls++
	if f.GroupErr != nil {
		return nil, f.GroupErr
	}

	name := aws.ToString(params.LogGroupName)
	if f.groups[name] {
		return nil, &types.ResourceAlreadyExistsException{Message: aws.String("The specified log group already exists")}
	}
	f.groups[name] = true
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *LogsAPI) CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.streamCalls++
	if f.StreamErr != nil {
		return nil, f.StreamErr
	}

	group := aws.ToString(params.LogGroupName)
	if !f.groups[group] {
		return nil, &types.ResourceNotFoundException{Message: aws.String("The specified log group does not exist")}
	}

	key := group + "/" + aws.ToString(params.LogStreamName)
	if f.streams[key] {
		return nil, &types.ResourceAlreadyExistsException{Message: aws.String("The specified log stream already exists")}
	}
	f.streams[key] = true
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *LogsAPI) PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	if f.PutDelay > 0 {
		select {
		case <-time.After(f.PutDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	put := Put{
		Group:  aws.ToString(params.LogGroupName),
		Stream: aws.ToString(params.LogStreamName),
	}
	for _, e := range params.LogEvents {
		put.Events = append(put.Events, Event{
			Message:   aws.ToString(e.Message),
			Timestamp: aws.ToInt64(e.Timestamp),
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts = append(f.puts, put)
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

// HasStream reports whether group/stream has been created.
func (f *LogsAPI) HasStream(group, stream string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[group] && f.streams[group+"/"+stream]
}

// CreateCalls returns how many CreateLogGroup and CreateLogStream calls were made.
func (f *LogsAPI) CreateCalls() (groups, streams int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupCalls, f.streamCalls
}

// Puts returns a copy of the recorded PutLogEvents calls, failed ones included.
func (f *LogsAPI) Puts() []Put {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Put, len(f.puts))
	copy(out, f.puts)
	return out
}

// WaitForPuts polls until at least n PutLogEvents calls were recorded or
// the timeout passes, and returns the calls seen.
func (f *LogsAPI) WaitForPuts(n int, timeout time.Duration) []Put {
	deadline := time.Now().Add(timeout)
	for {
		puts := f.Puts()
		if len(puts) >= n || time.Now().After(deadline) {
			return puts
		}
		time.Sleep(5 * time.Millisecond)
	}
}
