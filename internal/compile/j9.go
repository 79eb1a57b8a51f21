package compile

import (
	"regexp"
	"strconv"
	"strings"

	"jitscope/internal/program"
)

// J9 -Xjit:verbose writes one line per compilation instead of a task
// journal:
//
//	+ (warm) java/lang/String.hashCode()I @ 00007F0D1C0A0020-00007F0D1C0A0088 OrdinaryMethod - Q_SZ=0 bcsz=55 sync
//	! java/lang/Foo.bar()V time=120us <TRANSLATION FAILURE: compilationInterrupted>
var (
	j9Compiled = regexp.MustCompile(`^\+ \(([^)]*)\) (\S+)\.([^.\s(]+)(\([^)\s]*\)\S*) @ (?:0x)?([0-9A-Fa-f]+)-(?:0x)?([0-9A-Fa-f]+)(.*)$`)
	j9Failed   = regexp.MustCompile(`^! (\S+)\.([^.\s(]+)(\([^)\s]*\)\S*)(.*)$`)
	j9Bcsz     = regexp.MustCompile(`\bbcsz=(\d+)`)
	j9Failure  = regexp.MustCompile(`<(?:TRANSLATION FAILURE|COMPILATION FAILURE): ([^>]*)>`)
)

// j9Levels ranks the optimisation levels J9 names, coldest first.
var j9Levels = []string{"no-opt", "cold", "warm", "hot", "very-hot", "scorching"}

// Verbose is one J9 verbose compilation line.
type Verbose struct {
	Level         string
	Method        program.MethodRef
	MethodText    string
	Start         uint64
	End           uint64
	BytecodeSize  int
	Kind          string
	Failed        bool
	FailureReason string
}

// LevelRank maps the J9 level name onto a small integer, 0 when unknown.
func (v *Verbose) LevelRank() int {
	name := strings.TrimPrefix(v.Level, "profiled ")
	name = strings.TrimPrefix(name, "AOT ")
	for i, l := range j9Levels {
		if l == name {
			return i + 1
		}
	}
	return 0
}

// IsJ9Line reports whether text looks like a J9 verbose compilation line.
func IsJ9Line(text string) bool {
	return strings.HasPrefix(text, "+ (") || strings.HasPrefix(text, "! ")
}

// ParseJ9Line parses a J9 verbose compilation line.
func ParseJ9Line(text string) (*Verbose, bool) {
	if m := j9Compiled.FindStringSubmatch(text); m != nil {
		v := &Verbose{Level: m[1]}
		if !v.setMethod(m[2], m[3], m[4]) {
			return nil, false
		}
		start, ok1 := ParseAddress(m[5])
		end, ok2 := ParseAddress(m[6])
		if !ok1 || !ok2 {
			return nil, false
		}
		v.Start, v.End = start, end
		rest := m[7]
		if b := j9Bcsz.FindStringSubmatch(rest); b != nil {
			v.BytecodeSize, _ = strconv.Atoi(b[1])
		}
		if strings.Contains(rest, " DLT") || strings.Contains(rest, " OSR") {
			v.Kind = "osr"
		}
		return v, true
	}
	if m := j9Failed.FindStringSubmatch(text); m != nil {
		v := &Verbose{Failed: true}
		if !v.setMethod(m[1], m[2], m[3]) {
			return nil, false
		}
		if f := j9Failure.FindStringSubmatch(m[4]); f != nil {
			v.FailureReason = strings.TrimSpace(f[1])
		}
		return v, true
	}
	return nil, false
}

func (v *Verbose) setMethod(class, name, desc string) bool {
	v.MethodText = class + " " + name + " " + desc
	ref, err := program.ParseMethodRef(v.MethodText)
	if err != nil {
		return false
	}
	v.Method = ref
	return true
}
