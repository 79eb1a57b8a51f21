package compile

import (
	"fmt"
	"sort"
	"strconv"

	"fortio.org/safecast"
	log "github.com/sirupsen/logrus"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/program"
	"jitscope/internal/telemetry"
)

// Options configures a Builder.
type Options struct {
	Reporter diag.Reporter
	Counters *telemetry.Counters
	Logger   log.FieldLogger
}

// Builder pairs task_queued, nmethod and task elements by compile id.
// It is not safe for concurrent use.
type Builder struct {
	opts   Options
	byID   map[string]*Compilation
	byAddr map[uint64]*Compilation
	synth  int
}

// NewBuilder returns an empty builder.
func NewBuilder(opts Options) *Builder {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Builder{
		opts:   opts,
		byID:   make(map[string]*Compilation),
		byAddr: make(map[uint64]*Compilation),
	}
}

// Add folds one top-level body element into the compilation it describes.
// Elements that describe no compilation are ignored.
func (b *Builder) Add(tag *journal.Tag) *Compilation {
	switch tag.Name() {
	case journal.TagTaskQueued:
		c := b.get(tag)
		if c == nil {
			return nil
		}
		c.Queued = tag
		c.absorb(tag)
		if d, ok := stampAttr(tag); ok {
			c.QueuedAt = d
		}
		return c
	case journal.TagNMethod:
		c := b.get(tag)
		if c == nil {
			return nil
		}
		b.addNMethod(c, tag)
		return c
	}
	return nil
}

// AddTask folds a closed task journal into its compilation.
func (b *Builder) AddTask(task *journal.Task) *Compilation {
	c := b.get(task.Tag)
	if c == nil {
		diag.Warn(b.opts.Reporter, diag.SymUnboundCompile, diag.Location{Line: task.Line()},
			"task without compile_id")
		return nil
	}
	c.Task = task
	c.absorb(task.Tag)
	if d, ok := stampAttr(task.Tag); ok {
		c.StartedAt = d
	}
	if done := task.FirstNamedChild(journal.TagTaskDone); done != nil {
		if done.Attr(journal.AttrSuccess) == "0" {
			c.Failed = true
		}
		if n, ok := intAttr(done, journal.AttrNMSize); ok && c.NativeSize == 0 {
			c.NativeSize = n
		}
	}
	if reason, ok := task.FailureReason(); ok {
		c.Failed = true
		c.FailureReason = reason
	}
	c.Stale = task.IsStale()
	// Some JVMs write the nmethod inside the task rather than beside it.
	if nm := task.FirstNamedChild(journal.TagNMethod); nm != nil && c.NMethod == nil {
		b.addNMethod(c, nm)
	}
	return c
}

func (b *Builder) addNMethod(c *Compilation, tag *journal.Tag) {
	c.NMethod = tag
	c.absorb(tag)
	if d, ok := stampAttr(tag); ok {
		c.EmittedAt = d
	}
	if addr, ok := ParseAddress(tag.Attr(journal.AttrAddress)); ok {
		c.Address = addr
		b.byAddr[addr] = c
	}
	if n, ok := intAttr(tag, journal.AttrSize); ok {
		c.NativeSize = n
	}
}

// AddVerbose folds a J9 verbose line that ParseJ9Line recognised.
func (b *Builder) AddVerbose(v *Verbose) *Compilation {
	b.synth++
	id := "j9-" + strconv.Itoa(b.synth)
	c := &Compilation{
		ID:           id,
		Compiler:     CompilerJ9,
		Method:       v.Method,
		MethodText:   v.MethodText,
		BytecodeSize: v.BytecodeSize,
		Address:      v.Start,
		Failed:       v.Failed,
		Kind:         v.Kind,
	}
	c.FailureReason = v.FailureReason
	if v.End > v.Start {
		if n, err := safecast.Conv[int](v.End - v.Start); err == nil {
			c.NativeSize = n
		}
	}
	c.Level = v.LevelRank()
	b.byID[id] = c
	if c.Address != 0 {
		b.byAddr[c.Address] = c
	}
	b.opts.Counters.Compilation(c.Compiler)
	return c
}

func (b *Builder) get(tag *journal.Tag) *Compilation {
	id := tag.Attr(journal.AttrCompileID)
	if id == "" {
		return nil
	}
	c, ok := b.byID[id]
	if !ok {
		c = &Compilation{ID: id}
		b.byID[id] = c
	}
	return c
}

// Finish settles compiler names and binds every compilation to model. It
// returns the compilations in compile id order.
func (b *Builder) Finish(model program.Model) []*Compilation {
	out := b.Compilations()
	for _, c := range out {
		c.setCompilerFallback()
		if c.Compiler != CompilerJ9 {
			b.opts.Counters.Compilation(c.Compiler)
		}
		if model == nil {
			continue
		}
		if c.Bind(model) == nil && c.MethodText != "" {
			diag.Info(b.opts.Reporter, diag.SymUnboundCompile, diag.Location{CompileID: c.ID},
				fmt.Sprintf("compiled method %s not in program model", c.Method))
		}
	}
	return out
}

// Compilations returns every compilation in compile id order.
func (b *Builder) Compilations() []*Compilation {
	out := make([]*Compilation, 0, len(b.byID))
	for _, c := range b.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Lookup returns the compilation with compile id id.
func (b *Builder) Lookup(id string) (*Compilation, error) {
	if c, ok := b.byID[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCompilation, id)
}

// ByAddress returns the compilation whose nmethod starts at addr.
func (b *Builder) ByAddress(addr uint64) *Compilation {
	return b.byAddr[addr]
}

// Len returns the number of compilations.
func (b *Builder) Len() int {
	return len(b.byID)
}
