package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer handles all terminal output with consistent styling. Regular
// output goes to out; status, warnings and errors go to err so that piped
// log lines on stdout are never interleaved with CLI chatter.
type Renderer struct {
	out     io.Writer
	err     io.Writer
	noColor bool
	quiet   bool
}

// NewRenderer creates a new Renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{
		out: os.Stdout,
		err: os.Stderr,
	}
}

// Option is a functional option for configuring the Renderer.
type Option func(*Renderer)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		r.out = w
	}
}

// WithError sets the error writer.
func WithError(w io.Writer) Option {
	return func(r *Renderer) {
		r.err = w
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(r *Renderer) {
		r.noColor = noColor
	}
}

// WithQuiet suppresses status messages and summaries.
func WithQuiet(quiet bool) Option {
	return func(r *Renderer) {
		r.quiet = quiet
	}
}

// NewRendererWithOptions creates a new Renderer with the given options.
func NewRendererWithOptions(opts ...Option) *Renderer {
	r := NewRenderer()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Out returns the writer regular output goes to.
func (r *Renderer) Out() io.Writer {
	return r.out
}

func (r *Renderer) render(style lipgloss.Style, text string) string {
	if r.noColor {
		return text
	}
	return style.Render(text)
}

// Status prints a status message (suppressed in quiet mode).
func (r *Renderer) Status(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.err, r.render(StatusStyle, fmt.Sprintf(format, args...)))
}

// Info prints an informational message.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (r *Renderer) Success(format string, args ...any) {
	fmt.Fprintln(r.out, r.render(SuccessStyle, fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func (r *Renderer) Warning(format string, args ...any) {
	fmt.Fprintln(r.err, r.render(WarningStyle, "Warning: "+fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.err, r.render(ErrorStyle, "Error: "+fmt.Sprintf(format, args...)))
}

// KeyValue prints a key-value pair.
func (r *Renderer) KeyValue(key, value string) {
	fmt.Fprintf(r.out, "%s %s\n", r.render(LabelStyle, key+":"), value)
}

// Section prints a section title.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.out, r.render(SectionTitleStyle, title))
}

// Stream renders a group/stream identity.
func (r *Renderer) Stream(identity string) string {
	return r.render(StreamStyle, identity)
}

// Summary describes what a pipe session did with its input.
type Summary struct {
	Stream    string
	Lines     int
	Skipped   int
	Truncated int
	Dropped   int64
	Pending   int64
}

// RenderSummary prints a pipe session summary to the error writer
// (suppressed in quiet mode).
func (r *Renderer) RenderSummary(s Summary) {
	if r.quiet {
		return
	}

	parts := []string{
		fmt.Sprintf("%d lines", s.Lines),
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d blank", s.Skipped))
	}
	if s.Truncated > 0 {
		parts = append(parts, r.render(WarningStyle, fmt.Sprintf("%d truncated", s.Truncated)))
	}
	if s.Dropped > 0 {
		parts = append(parts, r.render(WarningStyle, fmt.Sprintf("%d dropped", s.Dropped)))
	}
	if s.Pending > 0 {
		parts = append(parts, r.render(WarningStyle, fmt.Sprintf("%d undelivered", s.Pending)))
	}

	fmt.Fprintf(r.err, "%s %s %s\n",
		r.render(MutedStyle, "Sent to"),
		r.Stream(s.Stream),
		r.render(MutedStyle, "("+strings.Join(parts, ", ")+")"))
}
