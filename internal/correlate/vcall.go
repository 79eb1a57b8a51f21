package correlate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"jitscope/internal/asm"
	"jitscope/internal/program"
)

// Dialect names the comment grammar an optimized virtual call was read from.
type Dialect string

const (
	// DialectLookback marks the call with "{optimized virtual_call}"; the
	// comment line before the marker is the caller scope and the one before
	// that is the callee scope.
	DialectLookback Dialect = "lookback"
	// DialectTagged names the target in the marker itself:
	// "{optimized virtual_call: pkg.Class::member}".
	DialectTagged Dialect = "tagged"
)

const lookbackMarker = "{optimized virtual_call}"

var taggedMarker = regexp.MustCompile(`\{optimized virtual_call:\s*([^\s}]+)::([^\s}]+)\}`)

// ErrBadScope is returned when a marker is present but its scope lines are
// not.
var ErrBadScope = errors.New("optimized virtual call without scope")

// OptimizedVirtualCall is a virtual call the compiler devirtualised.
type OptimizedVirtualCall struct {
	Caller      VirtualCallSite
	Callee      VirtualCallSite
	Dialect     Dialect
	Member      *program.Member
	CompileID   string
	Instruction *asm.Instruction
}

// VirtualCallAt reads the optimized virtual call marked on in. It reports
// false when in carries no marker, and ErrBadScope when the marker's scope
// lines cannot be read.
func VirtualCallAt(in *asm.Instruction) (OptimizedVirtualCall, bool, error) {
	for i, c := range in.Comments {
		if m := taggedMarker.FindStringSubmatch(c); m != nil {
			return tagged(in, m[1], m[2])
		}
		if strings.Contains(c, lookbackMarker) {
			return lookback(in, i)
		}
	}
	return OptimizedVirtualCall{}, false, nil
}

func lookback(in *asm.Instruction, marker int) (OptimizedVirtualCall, bool, error) {
	if marker < 2 {
		return OptimizedVirtualCall{}, true, fmt.Errorf("%w at 0x%x: %d comment lines before marker",
			ErrBadScope, in.Address, marker)
	}
	caller, ok := ParseScope(in.Comments[marker-1])
	if !ok {
		return OptimizedVirtualCall{}, true, fmt.Errorf("%w at 0x%x: caller %q",
			ErrBadScope, in.Address, in.Comments[marker-1])
	}
	callee, ok := ParseScope(in.Comments[marker-2])
	if !ok {
		return OptimizedVirtualCall{}, true, fmt.Errorf("%w at 0x%x: callee %q",
			ErrBadScope, in.Address, in.Comments[marker-2])
	}
	return OptimizedVirtualCall{
		Caller:      caller,
		Callee:      callee,
		Dialect:     DialectLookback,
		Instruction: in,
	}, true, nil
}

func tagged(in *asm.Instruction, class, member string) (OptimizedVirtualCall, bool, error) {
	var caller *VirtualCallSite
	for _, c := range in.Comments {
		if m := scopeAnywhere.FindStringSubmatch(c); m != nil {
			s := siteFrom(m)
			caller = &s
			break
		}
	}
	if caller == nil {
		return OptimizedVirtualCall{}, true, fmt.Errorf("%w at 0x%x: no scope line", ErrBadScope, in.Address)
	}
	return OptimizedVirtualCall{
		Caller:      *caller,
		Callee:      VirtualCallSite{ClassName: class, MemberName: member, BytecodeOffset: -1},
		Dialect:     DialectTagged,
		Instruction: in,
	}, true, nil
}
