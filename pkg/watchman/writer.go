package watchman

import (
	"io"
	"strings"

	"github.com/jmurray2011/watchman/internal/cloudwatch"
)

// Writer is the io.Writer handed to logging frontends. Each Write is
// treated as one log line. All Writers cloned from the same Watchman send
// to the same stream and may be used concurrently.
type Writer struct {
	client *cloudwatch.StreamClient
}

// newWriter returns a Writer backed by client.
func newWriter(client *cloudwatch.StreamClient) *Writer {
	return &Writer{client: client}
}

// Write submits p as a single log line and always reports len(p) bytes
// written with a nil error, whatever happens to the delivery. Invalid UTF-8
// is replaced with U+FFFD and surrounding whitespace is trimmed.
// Whitespace-only writes send nothing.
func (w *Writer) Write(p []byte) (int, error) {
	line := strings.TrimSpace(strings.ToValidUTF8(string(p), "\uFFFD"))
	if line != "" {
		_ = w.client.Submit([]string{line})
	}
	return len(p), nil
}

// Flush does nothing: lines are handed to the dispatch pool as they are
// written and there is no local buffer.
func (w *Writer) Flush() error {
	return nil
}

// Sync is Flush under the name zap's WriteSyncer expects.
func (w *Writer) Sync() error {
	return w.Flush()
}

// Clone returns a new Writer for the same stream.
func (w *Writer) Clone() *Writer {
	return &Writer{client: w.client}
}

// MakeWriter returns a clone as an io.Writer, for frontends that ask for a
// fresh writer per event.
func (w *Writer) MakeWriter() io.Writer {
	return w.Clone()
}

// Identity returns the log group and stream this writer targets.
func (w *Writer) Identity() StreamIdentity {
	return w.client.Identity()
}
