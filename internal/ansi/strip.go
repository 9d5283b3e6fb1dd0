// Package ansi removes terminal control sequences from log lines before they
// leave the process.
package ansi

import (
	"fmt"
	"regexp"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	wmerrors "github.com/jmurray2011/watchman/internal/errors"
)

// Mode selects how much of a line's escape sequences are removed.
type Mode string

const (
	// ModeCSI removes color (m), cursor column (G) and erase-line (K) CSI
	// sequences only. This matches what console log formatters emit.
	ModeCSI Mode = "csi"

	// ModeAll removes every ANSI escape sequence, including OSC hyperlinks.
	ModeAll Mode = "all"

	// ModeNone leaves lines untouched.
	ModeNone Mode = "none"
)

// Modes lists the accepted mode names.
var Modes = []string{string(ModeCSI), string(ModeAll), string(ModeNone)}

// Pre-compiled so Strip stays cheap on the write path
var csiRegex = regexp.MustCompile(`\x1b\[([0-9]{1,2}(;[0-9]{1,2})?)?[mGK]`)

// Strip removes CSI sequences of the form ESC [ n[;n] {m,G,K}.
// Bytes outside the matched spans are returned unchanged. Removal repeats
// until nothing matches, so a sequence split by another one is removed too.
func Strip(s string) string {
	for strings.Contains(s, "\x1b") {
		out := csiRegex.ReplaceAllString(s, "")
		if len(out) == len(s) {
			break
		}
		s = out
	}
	return s
}

// StripAll removes every ANSI escape sequence from s.
func StripAll(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return xansi.Strip(s)
}

// Apply strips s according to the mode. Unknown modes behave like ModeCSI.
func (m Mode) Apply(s string) string {
	switch m {
	case ModeNone:
		return s
	case ModeAll:
		return StripAll(s)
	default:
		return Strip(s)
	}
}

// ParseMode converts a configuration value to a Mode. The empty string
// selects ModeCSI.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeCSI):
		return ModeCSI, nil
	case string(ModeAll):
		return ModeAll, nil
	case string(ModeNone):
		return ModeNone, nil
	}
	return "", wmerrors.InvalidChoiceError("strip mode", s, Modes,
		fmt.Sprintf("Valid modes: %s", strings.Join(Modes, ", ")))
}
