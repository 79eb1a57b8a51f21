// Package report turns pipeline results into tables for the command line.
// Reports only read results; they never change the model.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"jitscope/internal/chain"
	"jitscope/internal/compile"
	"jitscope/internal/phase"
	"jitscope/internal/pipeline"
	"jitscope/internal/telemetry"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown report mode")

// Mode selects a report.
type Mode string

const (
	ModeTasks     Mode = "tasks"
	ModeInlining  Mode = "inlining"
	ModeFailures  Mode = "failures"
	ModeVCalls    Mode = "vcalls"
	ModeHotThrows Mode = "hotthrows"
	ModeUnhandled Mode = "unhandled"
	ModeTop       Mode = "top"
)

// Modes lists every report in help order.
var Modes = []Mode{ModeTasks, ModeInlining, ModeFailures, ModeVCalls, ModeHotThrows, ModeUnhandled, ModeTop}

// ParseMode reads a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == strings.ToLower(strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// Filter narrows a report. Package matches by prefix; a Limit of zero keeps
// every row.
type Filter struct {
	Package string
	Limit   int
}

func (f Filter) match(pkg string) bool {
	if f.Package == "" {
		return true
	}
	return pkg == f.Package || strings.HasPrefix(pkg, f.Package+".")
}

// Table is one report, independent of output format.
type Table struct {
	Mode    Mode       `json:"mode" msgpack:"mode"`
	Title   string     `json:"title" msgpack:"title"`
	Columns []string   `json:"columns" msgpack:"columns"`
	Rows    [][]string `json:"rows" msgpack:"rows"`
	// Total is the row count before Limit was applied.
	Total int `json:"total" msgpack:"total"`
}

func (t *Table) add(row ...string) {
	t.Rows = append(t.Rows, row)
}

func (t *Table) limit(n int) {
	t.Total = len(t.Rows)
	if n > 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}

// Build runs the report mode over results.
func Build(mode Mode, results []*pipeline.Result, f Filter) (*Table, error) {
	var t *Table
	switch mode {
	case ModeTasks:
		t = Tasks(results, f)
	case ModeInlining:
		t = Inlining(results, f)
	case ModeFailures:
		t = Failures(results, f)
	case ModeVCalls:
		t = VirtualCalls(results, f)
	case ModeHotThrows:
		t = HotThrows(results, f)
	case ModeUnhandled:
		t = Unhandled(results)
	case ModeTop:
		t = Top(results, f)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
	t.limit(f.Limit)
	return t, nil
}

// Tasks lists every compilation in compile id order.
func Tasks(results []*pipeline.Result, f Filter) *Table {
	t := &Table{
		Mode:    ModeTasks,
		Title:   "compilations",
		Columns: []string{"id", "compiler", "level", "method", "bytes", "native", "flags", "eliminated"},
	}
	for _, c := range compilations(results, f) {
		t.add(c.ID, c.Compiler, strconv.Itoa(c.Level), methodName(c),
			strconv.Itoa(c.BytecodeSize), strconv.Itoa(c.NativeSize), flags(c), eliminated(c))
	}
	return t
}

// Inlining counts, per callee, how often it was inlined and how often not,
// with the most common refusal.
func Inlining(results []*pipeline.Result, f Filter) *Table {
	type stat struct {
		inlined, refused int
		reasons          map[string]int
	}
	stats := make(map[string]*stat)
	eachSite(results, f, func(n *chain.Node) {
		s := stats[n.Label()]
		if s == nil {
			s = &stat{reasons: make(map[string]int)}
			stats[n.Label()] = s
		}
		if n.Inlined {
			s.inlined++
			return
		}
		s.refused++
		if n.Reason != "" {
			s.reasons[n.Reason]++
		}
	})

	t := &Table{
		Mode:    ModeInlining,
		Title:   "inlining decisions",
		Columns: []string{"method", "inlined", "not inlined", "top reason"},
	}
	for _, name := range sortedBy(stats, func(s *stat) int { return s.inlined + s.refused }) {
		s := stats[name]
		reason := ""
		if top := sortedBy(s.reasons, func(n int) int { return n }); len(top) > 0 {
			reason = fmt.Sprintf("%s (%d)", top[0], s.reasons[top[0]])
		}
		t.add(name, strconv.Itoa(s.inlined), strconv.Itoa(s.refused), reason)
	}
	return t
}

// Failures is a histogram of inline refusal reasons.
func Failures(results []*pipeline.Result, f Filter) *Table {
	counts := make(map[string]int)
	eachSite(results, f, func(n *chain.Node) {
		if !n.Inlined && n.Reason != "" {
			counts[n.Reason]++
		}
	})
	t := &Table{
		Mode:    ModeFailures,
		Title:   "inline failure reasons",
		Columns: []string{"reason", "count"},
	}
	for _, reason := range sortedBy(counts, func(n int) int { return n }) {
		t.add(reason, strconv.Itoa(counts[reason]))
	}
	return t
}

// VirtualCalls lists the optimized virtual calls found in assembly.
func VirtualCalls(results []*pipeline.Result, f Filter) *Table {
	t := &Table{
		Mode:    ModeVCalls,
		Title:   "optimized virtual calls",
		Columns: []string{"id", "method", "address", "caller", "callee", "dialect"},
	}
	for _, r := range results {
		for _, cr := range r.Correlations() {
			if !f.match(cr.Compilation.Package()) {
				continue
			}
			for _, vc := range cr.VirtualCalls {
				t.add(cr.Compilation.ID, methodName(cr.Compilation),
					fmt.Sprintf("0x%x", vc.Instruction.Address),
					vc.Caller.String(), vc.Callee.String(), string(vc.Dialect))
			}
		}
	}
	return t
}

// HotThrows lists hot throw sites inside exception handlers.
func HotThrows(results []*pipeline.Result, f Filter) *Table {
	t := &Table{
		Mode:    ModeHotThrows,
		Title:   "hot throws",
		Columns: []string{"id", "method", "bci", "range", "handler", "preallocated"},
	}
	for _, r := range results {
		for _, cr := range r.Correlations() {
			for _, ht := range cr.HotThrows {
				if !f.match(ht.Member.Package()) {
					continue
				}
				handler := ht.Entry.Type
				if handler == "" {
					handler = "any"
				}
				t.add(ht.CompileID, ht.Member.ShortName(), strconv.Itoa(ht.BCI),
					fmt.Sprintf("%d-%d", ht.Entry.Start, ht.Entry.End),
					fmt.Sprintf("%s@%d", handler, ht.Entry.Handler),
					strconv.FormatBool(ht.Preallocated))
			}
		}
	}
	return t
}

// Unhandled sums the unhandled tag counters of every run. Runs may share
// one set of counters; each set is counted once.
func Unhandled(results []*pipeline.Result) *Table {
	counts := make(map[string]int)
	seen := make(map[*telemetry.Counters]bool)
	for _, r := range results {
		if r.Counters == nil || seen[r.Counters] {
			continue
		}
		seen[r.Counters] = true
		for tag, n := range r.Counters.UnhandledSnapshot() {
			counts[tag] += n
		}
	}
	t := &Table{
		Mode:    ModeUnhandled,
		Title:   "unhandled tags",
		Columns: []string{"tag", "count"},
	}
	for _, tag := range sortedBy(counts, func(n int) int { return n }) {
		t.add(tag, strconv.Itoa(counts[tag]))
	}
	return t
}

// Top orders methods by how often they were compiled.
func Top(results []*pipeline.Result, f Filter) *Table {
	type stat struct {
		total, failed int
		compilers     map[string]int
	}
	stats := make(map[string]*stat)
	for _, c := range compilations(results, f) {
		name := methodName(c)
		s := stats[name]
		if s == nil {
			s = &stat{compilers: make(map[string]int)}
			stats[name] = s
		}
		s.total++
		s.compilers[c.Compiler]++
		if c.Failed {
			s.failed++
		}
	}
	t := &Table{
		Mode:    ModeTop,
		Title:   "most compiled methods",
		Columns: []string{"method", "compilations", "compilers", "failed"},
	}
	for _, name := range sortedBy(stats, func(s *stat) int { return s.total }) {
		s := stats[name]
		var parts []string
		for _, comp := range sortedBy(s.compilers, func(n int) int { return n }) {
			parts = append(parts, fmt.Sprintf("%s:%d", comp, s.compilers[comp]))
		}
		t.add(name, strconv.Itoa(s.total), strings.Join(parts, " "), strconv.Itoa(s.failed))
	}
	return t
}

func compilations(results []*pipeline.Result, f Filter) []*compile.Compilation {
	var out []*compile.Compilation
	for _, r := range results {
		for _, c := range r.Compilations {
			if f.match(c.Package()) {
				out = append(out, c)
			}
		}
	}
	return out
}

// eachSite visits every non-root node of every call tree whose compiled
// method passes f.
func eachSite(results []*pipeline.Result, f Filter, fn func(*chain.Node)) {
	for _, r := range results {
		for _, c := range r.Compilations {
			if !f.match(c.Package()) || !c.HasBody() {
				continue
			}
			root, err := r.CallTree(c)
			if err != nil || root == nil {
				continue
			}
			root.Walk(func(n *chain.Node) bool {
				if !n.IsRoot() {
					fn(n)
				}
				return true
			})
		}
	}
}

func methodName(c *compile.Compilation) string {
	if m := c.Member(); m != nil {
		return m.String()
	}
	if c.MethodText != "" {
		return c.Method.String()
	}
	return "<unknown>"
}

func flags(c *compile.Compilation) string {
	var out []string
	if c.IsOSR() {
		out = append(out, "osr")
	}
	if c.Failed {
		out = append(out, "failed")
	}
	if c.Stale {
		out = append(out, "stale")
	}
	if c.Assembly != nil {
		out = append(out, "asm")
	}
	return strings.Join(out, ",")
}

// eliminated summarises what escape analysis removed from c.
func eliminated(c *compile.Compilation) string {
	if c.Task == nil {
		return ""
	}
	var out []string
	if n := len(phase.EliminatedAllocations(c.Task)); n > 0 {
		out = append(out, fmt.Sprintf("%d alloc", n))
	}
	if n := len(phase.EliminatedLocks(c.Task)); n > 0 {
		out = append(out, fmt.Sprintf("%d lock", n))
	}
	if n := len(phase.EliminatedBoxing(c.Task)); n > 0 {
		out = append(out, fmt.Sprintf("%d box", n))
	}
	return strings.Join(out, ", ")
}

// sortedBy returns the keys of m by descending weight, then by name.
func sortedBy[V any](m map[string]V, weight func(V) int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		wi, wj := weight(m[keys[i]]), weight(m[keys[j]])
		if wi != wj {
			return wi > wj
		}
		return keys[i] < keys[j]
	})
	return keys
}
