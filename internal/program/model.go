// Package program is the read-only symbol table the reconstruction pipeline
// resolves log ids against: classes, their members and, when known, member
// bytecode with exception tables.
//
// The pipeline only ever reads a Model. Implementations in this package are an
// in-memory Table, a TOML symbol manifest loader and a model derived from the
// declarations found in the log itself.
package program

import (
	"strings"
)

// Model looks classes up by fully-qualified dotted name.
type Model interface {
	MetaClass(fqName string) *MetaClass
}

// MetaClass is one class of the program model.
type MetaClass struct {
	Name     string
	Members  []*Member
	Bytecode *ClassBytecode
}

// SimpleName returns the class name without its package.
func (c *MetaClass) SimpleName() string {
	return SimpleName(c.Name)
}

// MemberBytecode returns the bytecode of m, or nil when the class carries no
// bytecode for it.
func (c *MetaClass) MemberBytecode(m *Member) *MemberBytecode {
	if c == nil || c.Bytecode == nil || m == nil {
		return nil
	}
	return c.Bytecode.Members[m.Key()]
}

// Member is a method or constructor. Constructors are named after the
// unqualified holder class.
type Member struct {
	Holder      string
	Name        string
	Return      string
	Params      []string
	Constructor bool
	Static      bool
}

// Key identifies the member within its class: name and parameter list.
func (m *Member) Key() string {
	return m.Name + "(" + strings.Join(m.Params, ",") + ")"
}

// String renders the member as "ret holder.name(params)".
func (m *Member) String() string {
	if m == nil {
		return "<unresolved>"
	}
	var sb strings.Builder
	if !m.Constructor {
		sb.WriteString(m.Return)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Holder)
	sb.WriteByte('.')
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(m.Params, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// ShortName renders "Class.name".
func (m *Member) ShortName() string {
	if m == nil {
		return "<unresolved>"
	}
	return SimpleName(m.Holder) + "." + m.Name
}

// Package returns the holder's package, or "" for the default package.
func (m *Member) Package() string {
	if m == nil {
		return ""
	}
	if i := strings.LastIndexByte(m.Holder, '.'); i >= 0 {
		return m.Holder[:i]
	}
	return ""
}

// ClassBytecode holds per-member bytecode keyed by Member.Key.
type ClassBytecode struct {
	Members map[string]*MemberBytecode
}

// MemberBytecode is the bytecode of one member.
type MemberBytecode struct {
	Size           int
	Instructions   []Instruction
	ExceptionTable []ExceptionEntry
	LineTable      []LineEntry
}

// Instruction is one bytecode instruction.
type Instruction struct {
	Offset   int
	Opcode   string
	Operands string
}

// ExceptionEntry is one row of a member's exception table. The range covers
// [Start, End).
type ExceptionEntry struct {
	Start   int
	End     int
	Handler int
	Type    string
}

// Covers reports whether bci lies inside the protected range.
func (e ExceptionEntry) Covers(bci int) bool {
	return bci >= e.Start && bci < e.End
}

// LineEntry maps a bytecode index to a source line.
type LineEntry struct {
	BCI  int
	Line int
}

// ExceptionAt returns the first exception table entry covering bci.
func (b *MemberBytecode) ExceptionAt(bci int) (ExceptionEntry, bool) {
	if b == nil {
		return ExceptionEntry{}, false
	}
	for _, e := range b.ExceptionTable {
		if e.Covers(bci) {
			return e, true
		}
	}
	return ExceptionEntry{}, false
}

// SourceLine returns the source line for bci using the line table, or 0.
func (b *MemberBytecode) SourceLine(bci int) int {
	if b == nil {
		return 0
	}
	line, best := 0, -1
	for _, e := range b.LineTable {
		if e.BCI <= bci && e.BCI > best {
			best, line = e.BCI, e.Line
		}
	}
	return line
}

// Length returns the bytecode length: Size when recorded, otherwise one past
// the last instruction offset.
func (b *MemberBytecode) Length() int {
	if b == nil {
		return 0
	}
	if b.Size > 0 {
		return b.Size
	}
	if n := len(b.Instructions); n > 0 {
		return b.Instructions[n-1].Offset + 1
	}
	return 0
}

// SimpleName strips the package from a dotted class name.
func SimpleName(fq string) string {
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[i+1:]
	}
	return fq
}
