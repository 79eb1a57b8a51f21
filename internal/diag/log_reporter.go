package diag

import (
	log "github.com/sirupsen/logrus"
)

// LogReporter forwards diagnostics to a logrus logger. Info diagnostics are
// logged at debug level so they stay quiet by default.
type LogReporter struct {
	Logger log.FieldLogger
}

func (r LogReporter) Report(code Code, sev Severity, at Location, msg string) {
	if r.Logger == nil {
		return
	}
	entry := r.Logger.WithField("code", code.ID())
	if at.Line > 0 {
		entry = entry.WithField("line", at.Line)
	}
	if at.CompileID != "" {
		entry = entry.WithField("compile_id", at.CompileID)
	}
	switch sev {
	case SevError:
		entry.Error(msg)
	case SevWarning:
		entry.Warn(msg)
	default:
		entry.Debug(msg)
	}
}
