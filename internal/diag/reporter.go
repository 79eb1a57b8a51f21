package diag

// Reporter is the minimal contract pipeline stages use to emit findings.
// Implementations: BagReporter, LogReporter, MultiReporter and DedupReporter.
type Reporter interface {
	Report(code Code, sev Severity, at Location, msg string)
}

// Warn is a shortcut for SevWarning diagnostics. r may be nil.
func Warn(r Reporter, code Code, at Location, msg string) {
	if r != nil {
		r.Report(code, SevWarning, at, msg)
	}
}

// Info is a shortcut for SevInfo diagnostics. r may be nil.
func Info(r Reporter, code Code, at Location, msg string) {
	if r != nil {
		r.Report(code, SevInfo, at, msg)
	}
}

// Error is a shortcut for SevError diagnostics. r may be nil.
func Error(r Reporter, code Code, at Location, msg string) {
	if r != nil {
		r.Report(code, SevError, at, msg)
	}
}

// BagReporter writes into a *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, at Location, msg string) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{Severity: sev, Code: code, Message: msg, Primary: at})
}

// MultiReporter fans a diagnostic out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(code Code, sev Severity, at Location, msg string) {
	for _, r := range m {
		if r != nil {
			r.Report(code, sev, at, msg)
		}
	}
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, Location, string) {}
