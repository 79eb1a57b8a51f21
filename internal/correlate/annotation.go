// Package correlate links disassembled instructions back to bytecode and
// source using the comments HotSpot prints beside them.
package correlate

import (
	"regexp"
	"strconv"
	"strings"

	"jitscope/internal/asm"
)

// VirtualCallSite is a location inside a member, read from a scope comment
// such as "- java.lang.String::hashCode@10 (line 1467)".
type VirtualCallSite struct {
	ClassName      string
	MemberName     string
	BytecodeOffset int
	SourceLine     int
}

func (s VirtualCallSite) String() string {
	var sb strings.Builder
	sb.WriteString(s.ClassName)
	sb.WriteString("::")
	sb.WriteString(s.MemberName)
	if s.BytecodeOffset >= 0 {
		sb.WriteByte('@')
		sb.WriteString(strconv.Itoa(s.BytecodeOffset))
	}
	if s.SourceLine > 0 {
		sb.WriteString(" (line ")
		sb.WriteString(strconv.Itoa(s.SourceLine))
		sb.WriteByte(')')
	}
	return sb.String()
}

var (
	scopeLine     = regexp.MustCompile(`^-\s+(\S+)::([^@\s]+)@(-?\d+)(?:\s+\(line (-?\d+)\))?`)
	scopeAnywhere = regexp.MustCompile(`-\s+(\S+)::([^@\s]+)@(-?\d+)(?:\s+\(line (-?\d+)\))?`)
	bytecodeOp    = regexp.MustCompile(`^\*(\w+)`)
	relocation    = regexp.MustCompile(`\{([a-z_]+(?: [a-z_]+)*)(?::?\s+([^}]*))?\}`)
)

// ParseScope reads one scope comment line.
func ParseScope(comment string) (VirtualCallSite, bool) {
	m := scopeLine.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return VirtualCallSite{}, false
	}
	return siteFrom(m), true
}

func siteFrom(m []string) VirtualCallSite {
	s := VirtualCallSite{ClassName: m[1], MemberName: m[2], BytecodeOffset: -1}
	s.BytecodeOffset, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		s.SourceLine, _ = strconv.Atoi(m[4])
	}
	return s
}

// Annotation is what the comments of one instruction say about it.
type Annotation struct {
	// BCI and Line come from the innermost scope; BCI is -1 when the
	// instruction carries no scope.
	BCI  int
	Line int
	// Bytecode is the bytecode mnemonic from a ";*invokevirtual" comment.
	Bytecode string
	// Scopes lists the inlining scopes, innermost first.
	Scopes []VirtualCallSite
	// Relocation is the relocation kind, such as "static_call" or
	// "optimized virtual_call".
	Relocation string
	// Callee is the statically resolved target the relocation names.
	Callee string
	// Mismatch is set when BCI lies outside the member's bytecode.
	Mismatch bool
}

// HasScope reports whether the instruction maps to bytecode.
func (a Annotation) HasScope() bool {
	return len(a.Scopes) > 0
}

// Annotate reads the comment lines of in.
func Annotate(in *asm.Instruction) Annotation {
	a := Annotation{BCI: -1}
	for _, c := range in.Comments {
		c = strings.TrimSpace(c)
		if s, ok := ParseScope(c); ok {
			a.Scopes = append(a.Scopes, s)
			continue
		}
		if m := bytecodeOp.FindStringSubmatch(c); m != nil && a.Bytecode == "" {
			a.Bytecode = m[1]
			continue
		}
		if m := relocation.FindStringSubmatch(c); m != nil && a.Relocation == "" {
			a.Relocation = m[1]
			a.Callee = strings.TrimSpace(m[2])
		}
	}
	if len(a.Scopes) > 0 {
		a.BCI = a.Scopes[0].BytecodeOffset
		a.Line = a.Scopes[0].SourceLine
	}
	return a
}
