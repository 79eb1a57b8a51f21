package correlate

import (
	"context"
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jitscope/internal/asm"
	"jitscope/internal/compile"
	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/phase"
	"jitscope/internal/program"
	"jitscope/internal/resolve"
	"jitscope/internal/telemetry"
	"jitscope/internal/trace"
)

// Options configures a Correlator.
type Options struct {
	Resolver  *resolve.Resolver
	Extractor *phase.Extractor
	Reporter  diag.Reporter
	Counters  *telemetry.Counters
	Logger    log.FieldLogger
	// Jobs bounds the worker pool; zero means GOMAXPROCS.
	Jobs int
}

// Result is everything correlation found for one compilation.
type Result struct {
	Compilation *compile.Compilation
	// Annotations runs parallel to Compilation.Assembly.Instructions().
	Annotations  []Annotation
	VirtualCalls []OptimizedVirtualCall
	HotThrows    []HotThrow
	Mismatches   int
}

// Correlator links assembly to bytecode for many compilations.
type Correlator struct {
	model program.Model
	opts  Options
}

// New returns a Correlator reading model.
func New(model program.Model, opts Options) (*Correlator, error) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Extractor == nil {
		opts.Extractor = phase.NewExtractor(opts.Reporter, opts.Logger)
	}
	if opts.Resolver == nil {
		r, err := resolve.New(model, resolve.Options{
			Reporter: opts.Reporter,
			Counters: opts.Counters,
			Logger:   opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		opts.Resolver = r
	}
	return &Correlator{model: model, opts: opts}, nil
}

// Attach hands each method to the compilation its header names, by compile
// id or by nmethod address. It returns the methods no compilation claimed.
func (cr *Correlator) Attach(methods []*asm.Method, b *compile.Builder) []*asm.Method {
	var orphans []*asm.Method
	for _, m := range methods {
		c := owner(m, b)
		if c == nil || c.Assembly != nil {
			orphans = append(orphans, m)
			diag.Warn(cr.opts.Reporter, diag.AsmNoCompilation, diag.Location{Line: m.Line, CompileID: m.CompileID},
				fmt.Sprintf("assembly at line %d matches no compilation", m.Line))
			continue
		}
		c.Assembly = m
	}
	return orphans
}

func owner(m *asm.Method, b *compile.Builder) *compile.Compilation {
	if m.CompileID != "" {
		if c, err := b.Lookup(m.CompileID); err == nil {
			return c
		}
	}
	if m.Address != 0 {
		return b.ByAddress(m.Address)
	}
	return nil
}

// Run correlates every compilation on a bounded worker pool. Each worker
// owns one compilation at a time, so results need no locking. The context
// is checked between compilations only.
func (cr *Correlator) Run(ctx context.Context, comps []*compile.Compilation) ([]*Result, error) {
	results := make([]*Result, len(comps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cr.opts.Jobs)
	for i, c := range comps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, span := trace.Start(gctx, trace.ScopeTask, "task:"+c.ID)
			results[i] = cr.Correlate(c)
			span.End(fmt.Sprintf("%d vcalls, %d hot throws", len(results[i].VirtualCalls), len(results[i].HotThrows)))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return results, fmt.Errorf("correlate: %w", err)
	}
	return results, nil
}

// Correlate analyses one compilation.
func (cr *Correlator) Correlate(c *compile.Compilation) *Result {
	res := &Result{Compilation: c}
	res.HotThrows = HotThrows(c, cr.model, cr.opts.Resolver, cr.opts.Extractor)
	if c.Assembly == nil {
		return res
	}

	member := c.Member()
	var bytecode *program.MemberBytecode
	if member != nil && cr.model != nil {
		bytecode = cr.model.MetaClass(member.Holder).MemberBytecode(member)
	}

	for _, in := range c.Assembly.Instructions() {
		a := Annotate(in)
		if bytecode != nil && a.HasScope() && sameMember(a.Scopes[0], member) {
			if a.BCI < 0 || a.BCI >= bytecode.Length() {
				a.Mismatch = true
				res.Mismatches++
				diag.Info(cr.opts.Reporter, diag.AsmBCIMismatch, diag.Location{Line: in.Line, CompileID: c.ID},
					fmt.Sprintf("bci %d outside %s (%d bytes)", a.BCI, member.ShortName(), bytecode.Length()))
			}
		}
		res.Annotations = append(res.Annotations, a)

		vc, ok, err := VirtualCallAt(in)
		if err != nil {
			diag.Warn(cr.opts.Reporter, diag.AsmBadScope, diag.Location{Line: in.Line, CompileID: c.ID}, err.Error())
			continue
		}
		if ok {
			vc.Member = member
			vc.CompileID = c.ID
			res.VirtualCalls = append(res.VirtualCalls, vc)
		}
	}
	return res
}

// sameMember reports whether scope names m. Scope comments write the class
// dotted and constructors as <init>.
func sameMember(scope VirtualCallSite, m *program.Member) bool {
	if m == nil || program.TypeName(scope.ClassName) != m.Holder {
		return false
	}
	if scope.MemberName == journal.ConstructorName {
		return m.Constructor
	}
	return scope.MemberName == m.Name
}
