// Package compile assembles Compilations from the task_queued, nmethod and
// task elements of a compilation log.
package compile

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"fortio.org/safecast"

	"jitscope/internal/asm"
	"jitscope/internal/journal"
	"jitscope/internal/phase"
	"jitscope/internal/program"
)

var (
	ErrUnknownCompilation = errors.New("unknown compilation")
	ErrNoBody             = errors.New("compilation has no task journal")
)

// Compiler names used when the log does not name one.
const (
	CompilerC1      = "c1"
	CompilerC2      = "c2"
	CompilerJ9      = "j9"
	CompilerUnknown = "unknown"
)

// Compilation is one realised compile event for a method.
type Compilation struct {
	ID       string
	Compiler string
	// Kind is compile_kind: "osr", "c2n" and so on; empty for a normal
	// compilation.
	Kind   string
	Method program.MethodRef
	// MethodText is the method attribute as the log wrote it.
	MethodText string
	Level      int

	QueuedAt  time.Duration
	StartedAt time.Duration
	EmittedAt time.Duration

	BytecodeSize  int
	Address       uint64
	NativeSize    int
	Failed        bool
	Stale         bool
	FailureReason string

	Queued  *journal.Tag
	NMethod *journal.Tag
	Task    *journal.Task

	Assembly *asm.Method

	mu     sync.Mutex
	member *program.Member
}

// Member returns the bound member, or nil before Bind or when binding failed.
func (c *Compilation) Member() *program.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.member
}

// Bind resolves the compiled method against model. A later Bind with a
// richer model replaces an earlier result.
func (c *Compilation) Bind(model program.Model) *program.Member {
	m := c.Method.Find(model)
	c.mu.Lock()
	defer c.mu.Unlock()
	if m != nil || c.member == nil {
		c.member = m
	}
	return c.member
}

// IsOSR reports an on-stack-replacement compilation.
func (c *Compilation) IsOSR() bool {
	return c.Kind == "osr"
}

// HasBody reports whether a task journal backs the compilation.
func (c *Compilation) HasBody() bool {
	return c.Task != nil
}

// Duration is the time between the task starting and the nmethod being
// emitted, or zero when either is unknown.
func (c *Compilation) Duration() time.Duration {
	if c.StartedAt == 0 || c.EmittedAt < c.StartedAt {
		return 0
	}
	return c.EmittedAt - c.StartedAt
}

// SortKey orders compilations by numeric compile id; ids that are not
// numbers sort after every numeric one.
func (c *Compilation) SortKey() (int64, string) {
	if n, err := strconv.ParseInt(c.ID, 10, 64); err == nil {
		return n, ""
	}
	return 1<<62, c.ID
}

// Less orders two compilations by compile id.
func Less(a, b *Compilation) bool {
	an, as := a.SortKey()
	bn, bs := b.SortKey()
	if an != bn {
		return an < bn
	}
	return as < bs
}

// Package returns the package of the compiled method's holder.
func (c *Compilation) Package() string {
	if i := strings.LastIndexByte(c.Method.Class, '.'); i >= 0 {
		return c.Method.Class[:i]
	}
	return ""
}

// absorb merges the attributes of one element into c. Values already set by
// an earlier element are kept unless the new element is more specific.
func (c *Compilation) absorb(tag *journal.Tag) {
	if v := tag.Attr(journal.AttrCompiler); v != "" {
		c.Compiler = v
	}
	if v := tag.Attr(journal.AttrCompileKind); v != "" {
		c.Kind = v
	}
	if v := tag.Attr(journal.AttrMethod); v != "" && c.MethodText == "" {
		c.MethodText = v
		if ref, err := program.ParseMethodRef(v); err == nil {
			c.Method = ref
		}
	}
	if n, ok := intAttr(tag, journal.AttrLevel); ok {
		c.Level = n
	}
	if n, ok := intAttr(tag, journal.AttrBytes); ok && c.BytecodeSize == 0 {
		c.BytecodeSize = n
	}
}

func (c *Compilation) setCompilerFallback() {
	if c.Compiler != "" {
		return
	}
	switch {
	case c.Level >= 1 && c.Level <= 3:
		c.Compiler = CompilerC1
	case c.Level == 4:
		c.Compiler = CompilerC2
	case c.Task != nil:
		switch phase.Detect(c.Task) {
		case phase.FormatC1:
			c.Compiler = CompilerC1
		case phase.FormatC2:
			c.Compiler = CompilerC2
		default:
			c.Compiler = CompilerUnknown
		}
	default:
		c.Compiler = CompilerUnknown
	}
}

func intAttr(tag *journal.Tag, key string) (int, bool) {
	v, ok := tag.LookupAttr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	i, err := safecast.Conv[int](n)
	if err != nil {
		return 0, false
	}
	return i, true
}

// stampAttr reads a stamp attribute: seconds since VM start.
func stampAttr(tag *journal.Tag) (time.Duration, bool) {
	v, ok := tag.LookupAttr(journal.AttrStamp)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

// ParseAddress reads a hex address with or without a 0x prefix.
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
