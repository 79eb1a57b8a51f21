package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown output format")

// Format selects how a Table is written.
type Format string

const (
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat reads a format name; the empty string means pretty.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
	}
}

// MaxColumnWidth bounds a pretty column; longer cells are truncated.
const MaxColumnWidth = 72

// Render writes t to w in format f.
func Render(w io.Writer, t *Table, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(t); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	case FormatPretty, "":
		return writePretty(w, t)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

var titleStyle = lipgloss.NewStyle().Bold(true)

func writePretty(w io.Writer, t *Table) error {
	var b strings.Builder
	title := t.Title
	if t.Total > len(t.Rows) {
		title = fmt.Sprintf("%s (%d of %d)", title, len(t.Rows), t.Total)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteByte('\n')

	if len(t.Rows) == 0 {
		b.WriteString("  (none)\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = runewidth.StringWidth(c)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(cell), MaxColumnWidth))
			}
		}
	}

	header := color.New(color.Bold, color.Underline)
	for i, c := range t.Columns {
		b.WriteString("  ")
		b.WriteString(header.Sprint(runewidth.FillRight(c, widths[i])))
	}
	b.WriteByte('\n')
	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			cell = runewidth.FillRight(Truncate(cell, widths[i]), widths[i])
			b.WriteString("  ")
			b.WriteString(paint(t.Columns[i], cell))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// paint colors the cells whose meaning a color carries: failure flags and
// counts of refused inlines.
func paint(column, cell string) string {
	switch column {
	case "flags":
		switch {
		case strings.Contains(cell, "failed"):
			return color.RedString(cell)
		case strings.Contains(cell, "stale"):
			return color.YellowString(cell)
		}
	case "not inlined", "failed":
		if strings.TrimSpace(cell) != "0" {
			return color.YellowString(cell)
		}
	case "inlined":
		if strings.TrimSpace(cell) != "0" {
			return color.GreenString(cell)
		}
	}
	return cell
}

// Truncate shortens value to width terminal cells, ending in "..." when
// anything was cut.
func Truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
