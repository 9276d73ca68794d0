// Package output renders command results for the terminal.
//
// Writer prints one-line status messages prefixed by an icon; the Format*
// functions turn tool results into the text blocks printed by the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Icons used by the level helpers.
const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
	iconError   = "❌"
)

// Writer prints CLI messages. Write errors on a console are ignored.
type Writer struct {
	out io.Writer
}

// New returns a Writer printing to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon. Without an icon the line is indented to
// sit under the previous message.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		icon = "  "
	}
	_, _ = fmt.Fprintln(w.out, icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string)                  { w.Status(iconSuccess, msg) }
func (w *Writer) Successf(format string, args ...any) { w.Statusf(iconSuccess, format, args...) }
func (w *Writer) Warning(msg string)                  { w.Status(iconWarning, msg) }
func (w *Writer) Warningf(format string, args ...any) { w.Statusf(iconWarning, format, args...) }
func (w *Writer) Error(msg string)                    { w.Status(iconError, msg) }
func (w *Writer) Errorf(format string, args ...any)   { w.Statusf(iconError, format, args...) }

// Text prints s unchanged.
func (w *Writer) Text(s string) {
	_, _ = io.WriteString(w.out, s)
}

// JSON prints v as indented JSON followed by a newline.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
