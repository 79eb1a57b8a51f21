package diag

import "fmt"

// Location points at the log line, and where known the compilation, a
// diagnostic refers to. Zero values mean unknown.
type Location struct {
	Line      int
	CompileID string
}

func (l Location) String() string {
	switch {
	case l.Line > 0 && l.CompileID != "":
		return fmt.Sprintf("line %d (compile %s)", l.Line, l.CompileID)
	case l.Line > 0:
		return fmt.Sprintf("line %d", l.Line)
	case l.CompileID != "":
		return fmt.Sprintf("compile %s", l.CompileID)
	}
	return "-"
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s %s: %s", d.Primary, d.Severity, d.Code.ID(), d.Message)
}
