// Package output renders CLI results with a single accent color, falling
// back to plain text when stdout is not a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette, one accent plus neutrals.
const (
	colorAccent = "75"  // steel blue
	colorGray   = "245" // secondary text
	colorRed    = "196" // errors
	colorYellow = "220" // warnings
)

// Styles holds the render styles for one Writer.
type Styles struct {
	Header  lipgloss.Style
	Accent  lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func colorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

func plainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// Writer provides formatted CLI output. Write errors are ignored; console
// output failure is not actionable.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer for out, enabling color only when out is a terminal.
func New(out io.Writer) *Writer {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return NewWithColor(out, useColor)
}

// NewWithColor creates a Writer with color explicitly on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	styles := plainStyles()
	if useColor {
		styles = colorStyles()
	}
	return &Writer{out: out, styles: styles}
}

// Styles exposes the active styles for custom rendering.
func (w *Writer) Styles() Styles {
	return w.styles
}

// Printf writes formatted text as-is.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Header writes a bold section header line.
func (w *Writer) Header(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(text))
}

// Line writes one plain line.
func (w *Writer) Line(text string) {
	_, _ = fmt.Fprintln(w.out, text)
}

// Dim writes a de-emphasized line.
func (w *Writer) Dim(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(text))
}

// Warning writes a warning line.
func (w *Writer) Warning(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render("warning: "+text))
}

// Error writes an error line.
func (w *Writer) Error(text string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render("error: "+text))
}

// Field writes an aligned "label: value" detail line.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n",
		w.styles.Dim.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// JSON writes v as indented JSON, for --format json surfaces.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Time formats a timestamp the way all CLI surfaces show it.
func Time(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// Snippet returns the first line of content, truncated to width runes.
func Snippet(content string, width int) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	runes := []rune(strings.TrimSpace(line))
	if len(runes) <= width {
		return string(runes)
	}
	if width <= 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
