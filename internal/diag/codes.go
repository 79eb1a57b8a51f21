package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Log splitting
	SplitInfo        Code = 1000
	SplitLineSkipped Code = 1001
	SplitMidLineTag  Code = 1002

	// Tag tree parsing
	TagInfo            Code = 2000
	TagMalformed       Code = 2001
	TagBadEntity       Code = 2002
	TagUnbalancedClose Code = 2003
	TagUnclosedAtEOF   Code = 2004
	TagOrphanText      Code = 2005

	// Phase extraction and compile chain walking
	WalkInfo            Code = 3000
	WalkPhaseMissing    Code = 3001
	WalkPhaseSkipped    Code = 3002
	WalkUnhandledTag    Code = 3003
	WalkNoPendingMethod Code = 3004
	WalkNoBody          Code = 3005

	// Symbol resolution
	SymInfo             Code = 4000
	SymUnknownMethodID  Code = 4001
	SymUnknownKlassID   Code = 4002
	SymNoClass          Code = 4003
	SymNoMatchingMember Code = 4004
	SymBadSignature     Code = 4005
	SymUnboundCompile   Code = 4006

	// Assembly correlation
	AsmInfo          Code = 5000
	AsmLineUnparsed  Code = 5001
	AsmNoCompilation Code = 5002
	AsmBCIMismatch   Code = 5003
	AsmBadScope      Code = 5004

	// I/O
	IOInfo     Code = 6000
	IOOpenLog  Code = 6001
	IOReadLog  Code = 6002
	IOManifest Code = 6003
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		SplitInfo:           "Log splitting information",
		SplitLineSkipped:    "Log line could not be classified",
		SplitMidLineTag:     "Tag concatenated onto assembly fragment",
		TagInfo:             "Tag parsing information",
		TagMalformed:        "Malformed tag",
		TagBadEntity:        "Unknown entity in attribute",
		TagUnbalancedClose:  "Closing tag without matching open tag",
		TagUnclosedAtEOF:    "Tag left open at end of log",
		TagOrphanText:       "Text outside any element",
		WalkInfo:            "Compile chain information",
		WalkPhaseMissing:    "No parse phase found in task",
		WalkPhaseSkipped:    "Phase not followed",
		WalkUnhandledTag:    "Unhandled tag",
		WalkNoPendingMethod: "Inlining decision without a pending method",
		WalkNoBody:          "Compilation has no task body",
		SymInfo:             "Symbol resolution information",
		SymUnknownMethodID:  "Method id not declared in task",
		SymUnknownKlassID:   "Klass id not declared in task",
		SymNoClass:          "Class not present in program model",
		SymNoMatchingMember: "No member matches signature",
		SymBadSignature:     "Unparseable method signature",
		SymUnboundCompile:   "Compilation member not bound",
		AsmInfo:             "Assembly information",
		AsmLineUnparsed:     "Assembly line not recognised",
		AsmNoCompilation:    "Disassembly without matching compilation",
		AsmBCIMismatch:      "Annotated bytecode index outside member",
		AsmBadScope:         "Malformed scope comment",
		IOInfo:              "I/O information",
		IOOpenLog:           "Cannot open log file",
		IOReadLog:           "Error reading log file",
		IOManifest:          "Cannot load symbol manifest",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SPL%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TAG%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("WLK%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("SYM%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ASM%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

// Class groups codes by recovery strategy.
func (c Code) Class() Class {
	switch ic := int(c); {
	case ic >= 1000 && ic < 3000:
		return ClassStructural
	case ic == int(WalkUnhandledTag), ic == int(WalkPhaseMissing):
		return ClassStructural
	case ic >= 3000 && ic < 6000:
		return ClassSemantic
	case ic >= 6000 && ic < 7000:
		return ClassFatal
	}
	return ClassStructural
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
