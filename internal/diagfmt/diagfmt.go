// Package diagfmt writes the diagnostics of a run for people and for tools.
package diagfmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"jitscope/internal/diag"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown diagnostics format")

// Format selects the output layout.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatShort  Format = "short"
	FormatJSON   Format = "json"
)

// ParseFormat reads a format name; the empty string means pretty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPretty, nil
	case FormatPretty, FormatShort, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// ParseSeverity reads "info", "warning" or "error".
func ParseSeverity(s string) (diag.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return diag.SevInfo, nil
	case "warn", "warning":
		return diag.SevWarning, nil
	case "error":
		return diag.SevError, nil
	}
	return 0, fmt.Errorf("unknown severity %q (expected info|warning|error)", s)
}

// Options filters what is written.
type Options struct {
	// MinSeverity drops less severe diagnostics.
	MinSeverity diag.Severity
	// Max bounds the number written; zero writes all.
	Max int
}

func (o Options) pick(bag *diag.Bag) []diag.Diagnostic {
	if bag == nil {
		return nil
	}
	var out []diag.Diagnostic
	for _, d := range bag.Items() {
		if d.Severity < o.MinSeverity {
			continue
		}
		if o.Max > 0 && len(out) == o.Max {
			break
		}
		out = append(out, d)
	}
	return out
}

// Write renders the diagnostics of the log named name in format f. The bag
// is expected to be sorted.
func Write(w io.Writer, name string, bag *diag.Bag, f Format, opts Options) error {
	switch f {
	case FormatPretty, "":
		return Pretty(w, name, bag, opts)
	case FormatShort:
		return Short(w, name, bag, opts)
	case FormatJSON:
		return JSON(w, name, bag, opts)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// Pretty prints one diagnostic per line:
//
//	<log>:<line>: <SEV> <CODE>: <message> [compile <id>]
//
// followed by a summary line.
func Pretty(w io.Writer, name string, bag *diag.Bag, opts Options) error {
	items := opts.pick(bag)
	var b strings.Builder
	counts := make(map[diag.Severity]int)
	for _, d := range items {
		counts[d.Severity]++
		b.WriteString(position(name, d.Primary))
		b.WriteString(": ")
		b.WriteString(severityColor(d.Severity).Sprint(d.Severity.String()))
		b.WriteByte(' ')
		b.WriteString(color.New(color.Bold).Sprint(d.Code.ID()))
		b.WriteString(": ")
		b.WriteString(d.Message)
		if d.Primary.CompileID != "" {
			b.WriteString(color.New(color.Faint).Sprintf(" [compile %s]", d.Primary.CompileID))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d errors, %d warnings, %d infos", counts[diag.SevError], counts[diag.SevWarning], counts[diag.SevInfo])
	if bag != nil {
		if n := bag.Dropped(); n > 0 {
			fmt.Fprintf(&b, " (%d dropped)", n)
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Short prints "<log>:<line>: <CODE> <message>" lines without color or
// summary, for grep and editors.
func Short(w io.Writer, name string, bag *diag.Bag, opts Options) error {
	var b strings.Builder
	for _, d := range opts.pick(bag) {
		fmt.Fprintf(&b, "%s: %s %s\n", position(name, d.Primary), d.Code.ID(), d.Message)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func position(name string, loc diag.Location) string {
	if loc.Line > 0 {
		return fmt.Sprintf("%s:%d", name, loc.Line)
	}
	return name
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgCyan)
}

// DiagnosticJSON is one diagnostic in JSON output.
type DiagnosticJSON struct {
	Severity  string `json:"severity"`
	Code      string `json:"code"`
	Class     string `json:"class"`
	Message   string `json:"message"`
	Line      int    `json:"line,omitempty"`
	CompileID string `json:"compile_id,omitempty"`
}

// Output is the root of JSON output.
type Output struct {
	Log         string           `json:"log"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Dropped     int              `json:"dropped,omitempty"`
}

// JSON writes the diagnostics as one indented Output document.
func JSON(w io.Writer, name string, bag *diag.Bag, opts Options) error {
	out := Output{Log: name, Diagnostics: []DiagnosticJSON{}}
	for _, d := range opts.pick(bag) {
		out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
			Severity:  d.Severity.String(),
			Code:      d.Code.ID(),
			Class:     d.Code.Class().String(),
			Message:   d.Message,
			Line:      d.Primary.Line,
			CompileID: d.Primary.CompileID,
		})
	}
	out.Count = len(out.Diagnostics)
	if bag != nil {
		out.Dropped = bag.Dropped()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}
	return nil
}
