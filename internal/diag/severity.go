package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Class is the error taxonomy a code belongs to.
type Class uint8

const (
	// ClassStructural covers lines and tags that cannot be classified or parsed.
	ClassStructural Class = iota
	// ClassSemantic covers parsed data that does not agree with the program model.
	ClassSemantic
	// ClassFatal covers failures that leave no meaningful model.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassSemantic:
		return "semantic"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}
