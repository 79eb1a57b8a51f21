// Package telemetry holds the per-run counters of a reconstruction pipeline.
//
// Counters replace process-wide mutable state: every pipeline run owns one
// Counters value and passes it to the stages that count things. The values
// are mirrored into a private prometheus registry so a run can be exported
// in the text exposition format.
package telemetry

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "jitscope"

// Stream names used with Line.
const (
	StreamHeader    = "header"
	StreamBody      = "body"
	StreamClassLoad = "classload"
	StreamAssembly  = "assembly"
)

// Counters counts events of one pipeline run. The zero value is not usable;
// a nil *Counters is, and silently drops everything.
type Counters struct {
	mu        sync.Mutex
	unhandled map[string]int

	registry     *prometheus.Registry
	unhandledVec *prometheus.CounterVec
	lines        *prometheus.CounterVec
	compilations *prometheus.CounterVec
	skipped      prometheus.Counter
	tasks        prometheus.Counter
	unresolved   prometheus.Counter
	asmMethods   prometheus.Counter

	// Running totals for Progress; reading them back from the registry
	// would mean a full gather per call.
	lineTotal atomic.Int64
	taskTotal atomic.Int64
	compTotal atomic.Int64
}

// New creates counters with a fresh registry.
func New() *Counters {
	c := &Counters{
		unhandled: make(map[string]int),
		registry:  prometheus.NewRegistry(),
		unhandledVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unhandled_tags_total",
			Help:      "Tags seen by the compile chain walker that it does not understand.",
		}, []string{"tag"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Log lines routed to each stream by the splitter.",
		}, []string{"stream"}),
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compilations_total",
			Help:      "Compilations reconstructed, by compiler.",
		}, []string{"compiler"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_lines_total",
			Help:      "Log lines skipped because they could not be classified or parsed.",
		}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task journals parsed.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_members_total",
			Help:      "Method ids that matched no program model member.",
		}),
		asmMethods: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_methods_total",
			Help:      "Disassembled methods attached to compilations.",
		}),
	}
	c.registry.MustRegister(c.unhandledVec, c.lines, c.compilations,
		c.skipped, c.tasks, c.unresolved, c.asmMethods)
	return c
}

// Unhandled counts one occurrence of an unhandled tag name.
func (c *Counters) Unhandled(tag string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.unhandled[tag]++
	c.mu.Unlock()
	c.unhandledVec.WithLabelValues(tag).Inc()
}

// UnhandledSnapshot returns a copy of the unhandled tag counts.
func (c *Counters) UnhandledSnapshot() map[string]int {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.unhandled))
	for k, v := range c.unhandled {
		out[k] = v
	}
	return out
}

// UnhandledTotal returns the total number of unhandled tags seen.
func (c *Counters) UnhandledTotal() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, v := range c.unhandled {
		total += v
	}
	return total
}

// UnhandledNames returns the unhandled tag names sorted by descending count.
func (c *Counters) UnhandledNames() []string {
	snap := c.UnhandledSnapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if snap[names[i]] != snap[names[j]] {
			return snap[names[i]] > snap[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Line counts one line routed to stream.
func (c *Counters) Line(stream string) {
	if c == nil {
		return
	}
	c.lines.WithLabelValues(stream).Inc()
	c.lineTotal.Add(1)
}

// SkippedLine counts one skipped line.
func (c *Counters) SkippedLine() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

// Task counts one parsed task journal.
func (c *Counters) Task() {
	if c == nil {
		return
	}
	c.tasks.Inc()
	c.taskTotal.Add(1)
}

// Unresolved counts one failed symbol resolution.
func (c *Counters) Unresolved() {
	if c == nil {
		return
	}
	c.unresolved.Inc()
}

// Compilation counts one reconstructed compilation.
func (c *Counters) Compilation(compiler string) {
	if c == nil {
		return
	}
	if compiler == "" {
		compiler = "unknown"
	}
	c.compilations.WithLabelValues(compiler).Inc()
	c.compTotal.Add(1)
}

// Progress summarises the run so far as "lines=N tasks=N compilations=N".
// It is safe to call while stages are counting.
func (c *Counters) Progress() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("lines=%d tasks=%d compilations=%d",
		c.lineTotal.Load(), c.taskTotal.Load(), c.compTotal.Load())
}

// AssemblyMethod counts one attached disassembly.
func (c *Counters) AssemblyMethod() {
	if c == nil {
		return
	}
	c.asmMethods.Inc()
}

// Registry exposes the run's prometheus registry.
func (c *Counters) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// WriteText writes every counter in the prometheus text exposition format.
func (c *Counters) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
