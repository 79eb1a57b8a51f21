// Package pipeline runs the reconstruction stages over one compilation log:
// split, parse, bind, assemble and correlate.
//
// A failing stage never discards the work of the stages before it. Run
// returns whatever model it built together with the error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"jitscope/internal/asm"
	"jitscope/internal/chain"
	"jitscope/internal/compile"
	"jitscope/internal/correlate"
	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/observ"
	"jitscope/internal/phase"
	"jitscope/internal/program"
	"jitscope/internal/resolve"
	"jitscope/internal/splitlog"
	"jitscope/internal/tagparse"
	"jitscope/internal/telemetry"
	"jitscope/internal/trace"
)

// ErrOpenLog is returned when the log file cannot be opened.
var ErrOpenLog = splitlog.ErrOpenLog

// Stage names, used for timings and trace spans.
const (
	StageSplit     = "split"
	StageParse     = "parse"
	StageBind      = "bind"
	StageAssembly  = "assembly"
	StageCorrelate = "correlate"
)

// Options configures a run.
type Options struct {
	// Model is the external program model; it is layered over the model
	// derived from the log.
	Model program.Model
	// Manifest is a symbol manifest path loaded into Model when Model is nil.
	Manifest       string
	Charset        string
	Jobs           int
	MaxDiagnostics int
	// SkipAssembly stops after binding.
	SkipAssembly bool
	Logger       log.FieldLogger
	Timer        *observ.Timer
	Counters     *telemetry.Counters
	// Progress receives a working event per stage and a final done or
	// error event.
	Progress ProgressSink
}

// Result is the model of one log.
type Result struct {
	Name         string
	Header       *journal.Tag
	VM           tagparse.VMInfo
	Tasks        []*journal.Task
	Compilations []*compile.Compilation
	Model        program.Model
	Orphans      []*asm.Method
	ClassLoads   []splitlog.Line
	Lines        int
	SkippedLines int
	Malformed    []tagparse.Malformed

	Diagnostics *diag.Bag
	Counters    *telemetry.Counters

	builder      *compile.Builder
	walker       *chain.Walker
	resolver     *resolve.Resolver
	extractor    *phase.Extractor
	correlations map[*compile.Compilation]*correlate.Result
}

// Lookup returns the compilation with compile id id.
func (r *Result) Lookup(id string) (*compile.Compilation, error) {
	if r.builder == nil {
		return nil, fmt.Errorf("%w: %s", compile.ErrUnknownCompilation, id)
	}
	return r.builder.Lookup(id)
}

// CallTree rebuilds the call tree of c against the run's model. Trees are
// not cached.
func (r *Result) CallTree(c *compile.Compilation) (*chain.Node, error) {
	if r.walker == nil {
		return nil, errors.New("pipeline result has no walker")
	}
	return r.walker.Build(c)
}

// Correlation returns the correlation result of c, or nil when assembly was
// skipped or the run stopped early.
func (r *Result) Correlation(c *compile.Compilation) *correlate.Result {
	return r.correlations[c]
}

// Correlations returns every correlation result in compile id order.
func (r *Result) Correlations() []*correlate.Result {
	out := make([]*correlate.Result, 0, len(r.correlations))
	for _, c := range r.Compilations {
		if cr := r.correlations[c]; cr != nil {
			out = append(out, cr)
		}
	}
	return out
}

// Resolver returns the run's symbol resolver.
func (r *Result) Resolver() *resolve.Resolver {
	return r.resolver
}

// PhaseWarnings returns how many tasks fell back to the flat layout.
func (r *Result) PhaseWarnings() int {
	if r.extractor == nil {
		return 0
	}
	return r.extractor.Warnings()
}

// Run processes the log at path.
func Run(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		res := newResult(path, opts)
		diag.Error(res.reporter(opts), diag.IOOpenLog, diag.Location{}, err.Error())
		err = fmt.Errorf("%w %s: %w", ErrOpenLog, path, err)
		progress{sink: opts.Progress, log: path, start: time.Now()}.finish(err)
		return res, err
	}
	defer f.Close()
	return RunReader(ctx, f, path, opts)
}

func newResult(name string, opts Options) *Result {
	limit := opts.MaxDiagnostics
	if limit <= 0 {
		limit = 10000
	}
	counters := opts.Counters
	if counters == nil {
		counters = telemetry.New()
	}
	return &Result{
		Name:         name,
		Diagnostics:  diag.NewBag(limit),
		Counters:     counters,
		correlations: make(map[*compile.Compilation]*correlate.Result),
	}
}

func (r *Result) reporter(opts Options) diag.Reporter {
	return diag.NewDedupReporter(diag.MultiReporter{
		diag.BagReporter{Bag: r.Diagnostics},
		diag.LogReporter{Logger: opts.Logger},
	})
}

// RunReader processes a log read from in; name labels diagnostics.
func RunReader(ctx context.Context, in io.Reader, name string, opts Options) (*Result, error) {
	p := progress{sink: opts.Progress, log: name, start: time.Now()}
	res, err := runReader(ctx, in, name, opts, p)
	p.finish(err)
	return res, err
}

func runReader(ctx context.Context, in io.Reader, name string, opts Options, p progress) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	logger := opts.Logger.WithField("log", name)
	res := newResult(name, opts)
	rep := res.reporter(opts)

	ctx, runSpan := trace.Start(ctx, trace.ScopeRun, "run")
	runSpan.WithExtra("log", name)
	defer runSpan.End("")

	var errs error

	if opts.Model == nil && opts.Manifest != "" {
		m, err := program.LoadManifest(opts.Manifest)
		if err != nil {
			diag.Error(rep, diag.IOManifest, diag.Location{}, err.Error())
			errs = multierr.Append(errs, err)
		} else {
			opts.Model = m
		}
	}

	// split
	p.stage(StageSplit)
	idx := opts.Timer.Begin(StageSplit)
	_, span := trace.Start(ctx, trace.ScopeStage, StageSplit)
	split, err := splitlog.Split(in, splitlog.Options{
		Reporter: rep,
		Counters: res.Counters,
		Logger:   logger,
		Charset:  opts.Charset,
	})
	if split != nil {
		res.Lines, res.SkippedLines = split.Lines, split.Skipped
		res.ClassLoads = split.ClassLoad
	}
	span.End(strconv.Itoa(res.Lines) + " lines")
	opts.Timer.End(idx, fmt.Sprintf("%d lines", res.Lines))
	if err != nil {
		errs = multierr.Append(errs, err)
		if split == nil {
			return res, errs
		}
	}

	// parse
	p.stage(StageParse)
	idx = opts.Timer.Begin(StageParse)
	_, span = trace.Start(ctx, trace.ScopeStage, StageParse)
	popts := tagparse.Options{Reporter: rep, Counters: res.Counters, Logger: logger}
	res.Header = tagparse.ParseHeader(split.Header, popts)
	res.VM = tagparse.ReadVMInfo(res.Header)
	res.builder = compile.NewBuilder(compile.Options{Reporter: rep, Counters: res.Counters, Logger: logger})
	parser := tagparse.New(popts)
	for _, ln := range split.Body {
		for _, el := range parser.Feed(ln.Num, ln.Text) {
			res.addElement(el)
		}
	}
	for _, el := range parser.Finish() {
		res.addElement(el)
	}
	res.Tasks = parser.Tasks()
	res.Malformed = parser.Malformed()
	asmLines := res.scanVerbose(split.Assembly)
	span.End(fmt.Sprintf("%d tasks", len(res.Tasks)))
	opts.Timer.End(idx, fmt.Sprintf("%d tasks, %d compilations", len(res.Tasks), res.builder.Len()))

	// bind
	p.stage(StageBind)
	idx = opts.Timer.Begin(StageBind)
	_, span = trace.Start(ctx, trace.ScopeStage, StageBind)
	derived := program.FromTasks(res.Tasks)
	var refs []program.MethodRef
	for _, c := range res.builder.Compilations() {
		if c.MethodText != "" {
			refs = append(refs, c.Method)
		}
	}
	derived.AddRefs(refs)
	if opts.Model != nil {
		res.Model = program.Layered{opts.Model, derived}
	} else {
		res.Model = derived
	}
	res.Compilations = res.builder.Finish(res.Model)
	res.extractor = phase.NewExtractor(rep, logger)
	res.resolver, err = resolve.New(res.Model, resolve.Options{Reporter: rep, Counters: res.Counters, Logger: logger})
	if err != nil {
		span.End("failed")
		opts.Timer.End(idx, "failed")
		return res, multierr.Append(errs, err)
	}
	res.walker, err = chain.NewWalker(res.Model, chain.Options{
		Resolver:  res.resolver,
		Extractor: res.extractor,
		Reporter:  rep,
		Counters:  res.Counters,
		Logger:    logger,
	})
	if err != nil {
		span.End("failed")
		opts.Timer.End(idx, "failed")
		return res, multierr.Append(errs, err)
	}
	span.End(fmt.Sprintf("%d compilations", len(res.Compilations)))
	opts.Timer.End(idx, fmt.Sprintf("%d classes", derived.Len()))

	if opts.SkipAssembly {
		return res, errs
	}

	// assembly
	p.stage(StageAssembly)
	idx = opts.Timer.Begin(StageAssembly)
	_, span = trace.Start(ctx, trace.ScopeStage, StageAssembly)
	methods := asm.Parse(asmLines, asm.Options{Reporter: rep, Counters: res.Counters, Logger: logger})
	corr, err := correlate.New(res.Model, correlate.Options{
		Resolver:  res.resolver,
		Extractor: res.extractor,
		Reporter:  rep,
		Counters:  res.Counters,
		Logger:    logger,
		Jobs:      opts.Jobs,
	})
	if err != nil {
		span.End("failed")
		opts.Timer.End(idx, "failed")
		return res, multierr.Append(errs, err)
	}
	res.Orphans = corr.Attach(methods, res.builder)
	if len(res.Orphans) > 0 {
		trace.Point(ctx, trace.ScopeStage, "orphans", strconv.Itoa(len(res.Orphans)))
	}
	span.End(fmt.Sprintf("%d methods", len(methods)))
	opts.Timer.End(idx, fmt.Sprintf("%d methods, %d orphans", len(methods), len(res.Orphans)))

	// correlate
	p.stage(StageCorrelate)
	idx = opts.Timer.Begin(StageCorrelate)
	cctx, span := trace.Start(ctx, trace.ScopeStage, StageCorrelate)
	results, err := corr.Run(cctx, res.Compilations)
	for _, cr := range results {
		if cr != nil {
			res.correlations[cr.Compilation] = cr
		}
	}
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	span.End(fmt.Sprintf("%d results", len(res.correlations)))
	opts.Timer.End(idx, fmt.Sprintf("%d compilations", len(res.correlations)))

	return res, errs
}

func (r *Result) addElement(el tagparse.Element) {
	if el.Task != nil {
		r.builder.AddTask(el.Task)
		return
	}
	r.builder.Add(el.Tag)
}

// scanVerbose folds J9 verbose lines into compilations and returns the
// remaining assembly lines.
func (r *Result) scanVerbose(lines []splitlog.Line) []splitlog.Line {
	out := lines[:0:0]
	for _, ln := range lines {
		if compile.IsJ9Line(ln.Text) {
			if v, ok := compile.ParseJ9Line(ln.Text); ok {
				r.builder.AddVerbose(v)
				continue
			}
		}
		out = append(out, ln)
	}
	return out
}
