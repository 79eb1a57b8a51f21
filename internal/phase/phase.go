// Package phase locates the parts of a task journal that later stages read:
// the parse (inlining) sub-tree, the optimizer phase and the escape analysis
// results.
//
// HotSpot has wrapped the parse information differently over the years, so
// the lookup is an ordered compatibility table. Supporting another log format
// means adding a row.
package phase

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
)

// Format names the task layout a rule recognised.
type Format string

const (
	// FormatStale is a task superseded before compilation; it has no body.
	FormatStale Format = "stale"
	// FormatC1 wraps parse data in <phase name='buildIR'>.
	FormatC1 Format = "c1"
	// FormatC2 wraps parse data in <phase name='parse'>.
	FormatC2 Format = "c2"
	// FormatFlat has no wrapping phase; the task itself is the parse tree.
	FormatFlat Format = "flat"
)

// Rule matches one task layout. Match returns the parse sub-tree and whether
// the rule applies.
type Rule struct {
	Format Format
	// Warn marks layouts that are accepted but worth a (single) warning.
	Warn  bool
	Match func(*journal.Task) (*journal.Tag, bool)
}

// Rules is the compatibility table, evaluated top to bottom.
//
//	stale  failure reason='stale_task'         -> no parse tree, no warning
//	c1     exactly one phase name='buildIR'   -> that phase
//	c2     exactly one phase name='parse'     -> that phase
//	flat   anything else                       -> the whole task, warn once
var Rules = []Rule{
	{Format: FormatStale, Match: func(t *journal.Task) (*journal.Tag, bool) {
		return nil, t.IsStale()
	}},
	{Format: FormatC1, Match: func(t *journal.Task) (*journal.Tag, bool) {
		return Single(t.Tag, journal.PhaseBuildIR)
	}},
	{Format: FormatC2, Match: func(t *journal.Task) (*journal.Tag, bool) {
		return Single(t.Tag, journal.PhaseParse)
	}},
	{Format: FormatFlat, Warn: true, Match: func(t *journal.Task) (*journal.Tag, bool) {
		return t.Tag, true
	}},
}

// Single returns the only child phase of parent named name. It reports false
// when there is no such phase or more than one.
func Single(parent *journal.Tag, name string) (*journal.Tag, bool) {
	matches := parent.NamedChildrenWithAttr(journal.TagPhase, journal.AttrName, name)
	if len(matches) != 1 {
		return nil, false
	}
	return matches[0], true
}

// Extractor applies Rules and remembers which tasks it has already warned
// about. One Extractor serves one pipeline run.
type Extractor struct {
	reporter diag.Reporter
	logger   log.FieldLogger

	mu     sync.Mutex
	warned map[uint64]bool
}

// NewExtractor returns an Extractor reporting to r.
func NewExtractor(r diag.Reporter, logger log.FieldLogger) *Extractor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Extractor{reporter: r, logger: logger, warned: make(map[uint64]bool)}
}

// Parse returns the parse sub-tree of task and the layout it was found in.
// A stale task yields (nil, FormatStale).
func (e *Extractor) Parse(task *journal.Task) (*journal.Tag, Format) {
	if task == nil {
		return nil, ""
	}
	for _, rule := range Rules {
		tag, ok := rule.Match(task)
		if !ok {
			continue
		}
		if rule.Warn {
			e.warnOnce(task, rule.Format)
		}
		return tag, rule.Format
	}
	return nil, ""
}

// Detect returns the layout of task without warning.
func Detect(task *journal.Task) Format {
	for _, rule := range Rules {
		if _, ok := rule.Match(task); ok {
			return rule.Format
		}
	}
	return ""
}

func (e *Extractor) warnOnce(task *journal.Task, f Format) {
	if e == nil {
		return
	}
	serial := task.Dictionary().Serial()
	e.mu.Lock()
	already := e.warned[serial]
	e.warned[serial] = true
	e.mu.Unlock()
	if already {
		return
	}
	msg := fmt.Sprintf("no %s or %s phase, using whole task (%s layout)",
		journal.PhaseBuildIR, journal.PhaseParse, f)
	diag.Warn(e.reporter, diag.WalkPhaseMissing,
		diag.Location{Line: task.Line(), CompileID: task.CompileID()}, msg)
	e.logger.WithField("compile_id", task.CompileID()).Debug(msg)
}

// Warnings returns how many tasks have been warned about.
func (e *Extractor) Warnings() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.warned)
}

// Optimizer returns the optimizer phase of task, or nil.
func Optimizer(task *journal.Task) *journal.Tag {
	if task == nil {
		return nil
	}
	tag, _ := Single(task.Tag, journal.PhaseOptimizer)
	return tag
}

// EliminatedAllocations returns the eliminate_allocation elements of task.
// They are looked up beneath the optimizer phase when there is one and
// beneath the whole task otherwise.
func EliminatedAllocations(task *journal.Task) []*journal.Tag {
	return underOptimizer(task, journal.TagEliminateAlloc)
}

// EliminatedLocks returns the eliminate_lock elements of task.
func EliminatedLocks(task *journal.Task) []*journal.Tag {
	return underOptimizer(task, journal.TagEliminateLock)
}

// EliminatedBoxing returns the eliminate_boxing elements of task.
func EliminatedBoxing(task *journal.Task) []*journal.Tag {
	return underOptimizer(task, journal.TagEliminateBoxing)
}

func underOptimizer(task *journal.Task, name string) []*journal.Tag {
	if task == nil {
		return nil
	}
	if opt := Optimizer(task); opt != nil {
		return opt.Descendants(name)
	}
	return task.Descendants(name)
}
