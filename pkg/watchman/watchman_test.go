package watchman

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmurray2011/watchman/internal/cloudwatch/cloudwatchtest"
	"github.com/jmurray2011/watchman/internal/logging"
)

func newTestWatchman(t *testing.T, api LogsAPI, opts ...Option) *Watchman {
	t.Helper()
	base := []Option{
		WithEcho(&bytes.Buffer{}),
		WithLogger(logging.NopLogger{}),
	}
	wm, err := NewWithAPI(context.Background(), api, "/app/web", "web-1", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = wm.Close(context.Background())
	})
	return wm
}

func TestEndToEnd(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	assert.True(t, api.HasStream("/app/web", "web-1"), "New provisions group and stream")

	w := wm.Writer()
	n, err := w.Write([]byte("prefix ERROR boom\n"))
	require.NoError(t, err)
	assert.Equal(t, len("prefix ERROR boom\n"), n)

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	require.Len(t, puts[0].Events, 1)
	assert.Equal(t, "ERROR boom", puts[0].Events[0].Message)

	// Nothing else arrives
	require.NoError(t, wm.Close(context.Background()))
	assert.Len(t, api.Puts(), 1)
}

func TestEndToEndColoredConsoleLine(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	_, _ = wm.Writer().Write([]byte("2024-01-01T00:00:00Z \x1b[31mERROR\x1b[0m boom\n"))

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	assert.Equal(t, "ERROR boom", puts[0].Events[0].Message)
}

func TestWriteReportsFullLengthWhenRemoteFails(t *testing.T) {
	api := cloudwatchtest.Failing(&smithy.GenericAPIError{Code: "ServiceUnavailableException", Message: "down"})

	var mu sync.Mutex
	var absorbed []string
	wm := newTestWatchman(t, api, WithErrorHandler(func(op string, err error) {
		mu.Lock()
		defer mu.Unlock()
		absorbed = append(absorbed, op)
	}))

	inputs := [][]byte{
		[]byte("ts hello\n"),
		[]byte(""),
		[]byte("   \n\t"),
		{0xff, 0xfe, ' ', 'x'},
		[]byte(strings.Repeat("ts long line ", 1000)),
	}

	w := wm.Writer()
	for _, in := range inputs {
		n, err := w.Write(in)
		assert.NoError(t, err)
		assert.Equal(t, len(in), n)
	}
	require.NoError(t, wm.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, absorbed, OpCreateLogGroup)
	assert.Contains(t, absorbed, OpCreateLogStream)
	assert.Contains(t, absorbed, OpPutLogEvents)
}

func TestWriteReplacesInvalidUTF8(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	_, _ = wm.Writer().Write([]byte{'t', 's', ' ', 'a', 0xff, 'b'})

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	assert.Equal(t, "a\uFFFDb", puts[0].Events[0].Message)
}

func TestWriteTrimsWhitespace(t *testing.T) {
	api := cloudwatchtest.New()
	var echo bytes.Buffer
	wm := newTestWatchman(t, api, WithEcho(&echo))

	_, _ = wm.Writer().Write([]byte("  \tts padded line \r\n"))

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	assert.Equal(t, "padded line", puts[0].Events[0].Message)
	assert.Equal(t, "ts padded line\n", echo.String())
}

func TestWriteSkipsBlankLines(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	w := wm.Writer()
	_, _ = w.Write([]byte("\n"))
	_, _ = w.Write([]byte("   "))
	require.NoError(t, wm.Close(context.Background()))

	assert.Empty(t, api.Puts())
}

func TestWriteKeepsMultilineMessageTogether(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	_, _ = wm.Writer().Write([]byte("ts panic: boom\n\tat main.go:12\n"))

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	require.Len(t, puts[0].Events, 1)
	assert.Equal(t, "panic: boom\n\tat main.go:12", puts[0].Events[0].Message)
}

func TestFlushAndSyncAreNoops(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	w := wm.Writer()
	assert.NoError(t, w.Flush())
	assert.NoError(t, w.Sync())
	assert.Empty(t, api.Puts())
}

func TestClonesShareOneClient(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	a := wm.Writer()
	b := wm.Writer()
	c := a.Clone()
	d, ok := b.MakeWriter().(*Writer)
	require.True(t, ok)

	assert.NotSame(t, a, b)
	for _, w := range []*Writer{b, c, d} {
		assert.Same(t, a.client, w.client)
		assert.Equal(t, a.Identity(), w.Identity())
	}
	assert.Equal(t, StreamIdentity{Group: "/app/web", Stream: "web-1"}, wm.Identity())

	groups, streams := api.CreateCalls()
	assert.Equal(t, 1, groups, "cloning must not provision again")
	assert.Equal(t, 1, streams)
}

func TestWritersAreBuiltFromTheSessionClient(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)

	w := newWriter(wm.client)
	assert.Same(t, wm.client, w.client)
	assert.Same(t, wm.client, wm.Writer().client)

	_, _ = w.Write([]byte("ts via session client"))
	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	assert.Equal(t, "via session client", puts[0].Events[0].Message)
}

func TestConcurrentWritesOnClones(t *testing.T) {
	const writers = 50

	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api, WithWorkers(4), WithQueueSize(writers))

	base := wm.Writer()
	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			line := fmt.Sprintf("ts message-%02d", i)
			n, err := base.Clone().Write([]byte(line))
			if err == nil && n == len(line) {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, wm.Close(context.Background()))

	assert.Equal(t, int64(writers), ok.Load())

	puts := api.Puts()
	require.Len(t, puts, writers, "one batch per write")

	var got []string
	for _, p := range puts {
		require.Len(t, p.Events, 1, "batches are never merged")
		got = append(got, p.Events[0].Message)
	}
	sort.Strings(got)

	var want []string
	for i := 0; i < writers; i++ {
		want = append(want, fmt.Sprintf("message-%02d", i))
	}
	assert.Equal(t, want, got)
}

func TestWriteNeverBlocksOnSlowRemote(t *testing.T) {
	api := cloudwatchtest.New()
	api.PutDelay = 500 * time.Millisecond
	wm := newTestWatchman(t, api, WithWorkers(1), WithQueueSize(2))

	w := wm.Writer()
	start := time.Now()
	for i := 0; i < 20; i++ {
		_, _ = w.Write([]byte("ts burst"))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Positive(t, wm.Dropped(), "overflow is dropped, not queued")
	assert.Positive(t, wm.Pending())
}

func TestOptionsAreApplied(t *testing.T) {
	api := cloudwatchtest.New()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wm := newTestWatchman(t, api,
		WithStripPrefix(false),
		WithStripMode(StripAll),
		WithClock(func() time.Time { return fixed }),
		WithTaskTimeout(time.Second),
	)

	_, _ = wm.Writer().Write([]byte("\x1b]8;;https://example.com\x07docs\x1b]8;;\x07 here"))

	puts := api.WaitForPuts(1, time.Second)
	require.Len(t, puts, 1)
	assert.Equal(t, "docs here", puts[0].Events[0].Message)
	assert.Equal(t, fixed.UnixMilli(), puts[0].Events[0].Timestamp)
}

func TestNewWithAPIFailsOnLocalErrors(t *testing.T) {
	_, err := NewWithAPI(context.Background(), cloudwatchtest.New(), "/app/web", "web-1", WithWorkers(0))
	assert.ErrorContains(t, err, "failed to create log sink")

	_, err = NewWithAPI(context.Background(), cloudwatchtest.New(), "", "web-1")
	assert.Error(t, err)

	assert.Panics(t, func() {
		Must(NewWithAPI(context.Background(), nil, "/app/web", "web-1"))
	})
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	api := cloudwatchtest.New()
	wm := newTestWatchman(t, api)
	require.NoError(t, wm.Close(context.Background()))

	n, err := wm.Writer().Write([]byte("ts late"))
	assert.NoError(t, err)
	assert.Equal(t, len("ts late"), n)
	assert.Equal(t, int64(1), wm.Dropped())
	assert.Empty(t, api.Puts())
}

// TestNewAgainstUnavailableEndpoint drives the real SDK client against a
// server that rejects everything.
func TestNewAgainstUnavailableEndpoint(t *testing.T) {
	var mu sync.Mutex
	var targets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		targets = append(targets, r.Header.Get("X-Amz-Target"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"__type":"AccessDeniedException","message":"denied"}`))
	}))
	defer srv.Close()

	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
	}

	var absorbed atomic.Int64
	wm, err := New(context.Background(), cfg, "/app/web", "web-1",
		WithEndpoint(srv.URL),
		WithEcho(nil),
		WithLogger(logging.NopLogger{}),
		WithErrorHandler(func(op string, err error) { absorbed.Add(1) }),
	)
	require.NoError(t, err, "remote errors must not fail construction")

	n, err := wm.Writer().Write([]byte("ts hello"))
	require.NoError(t, err)
	assert.Equal(t, len("ts hello"), n)
	require.NoError(t, wm.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, targets, 3)
	assert.Equal(t, "Logs_20140328.CreateLogGroup", targets[0])
	assert.Equal(t, "Logs_20140328.CreateLogStream", targets[1])
	assert.Equal(t, "Logs_20140328.PutLogEvents", targets[2])
	assert.Equal(t, int64(3), absorbed.Load())
}
