package chain

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"jitscope/internal/compile"
	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/phase"
	"jitscope/internal/program"
	"jitscope/internal/resolve"
	"jitscope/internal/telemetry"
)

// kind is the walker's view of an element name.
type kind uint8

const (
	kindOther kind = iota
	kindIgnored
	kindBC
	kindMethod
	kindCall
	kindInlineFail
	kindInlineSuccess
	kindParse
	kindPhase
	kindVirtualCall
)

// ignored elements carry nothing the call tree needs.
var ignored = map[string]bool{
	journal.TagDirectCall:          true,
	journal.TagKlass:               true,
	journal.TagType:                true,
	journal.TagDependency:          true,
	journal.TagPredictedCall:       true,
	journal.TagParseDone:           true,
	journal.TagPhaseDone:           true,
	journal.TagBranch:              true,
	journal.TagUncommonTrap:        true,
	journal.TagIntrinsic:           true,
	journal.TagObserve:             true,
	journal.TagCastUp:              true,
	journal.TagHotThrow:            true,

	// C2 parse annotations with no call site of their own.
	journal.TagInlineLevelDiscount: true,
	journal.TagLateInline:          true,
	journal.TagJVMS:                true,
	journal.TagAssertNull:          true,
	journal.TagReplaceStringConcat: true,

	// Task bookkeeping read by the compilation builder. Flat tasks walk the
	// whole task, so these sit beside the parse elements.
	journal.TagTaskDone:            true,
	journal.TagNMethod:             true,
	journal.TagFailure:             true,
}

func classify(t *journal.Tag) kind {
	switch t.Name() {
	case journal.TagBC:
		return kindBC
	case journal.TagMethod:
		return kindMethod
	case journal.TagCall:
		return kindCall
	case journal.TagInlineFail:
		return kindInlineFail
	case journal.TagInlineSuccess:
		return kindInlineSuccess
	case journal.TagParse:
		return kindParse
	case journal.TagPhase:
		return kindPhase
	case journal.TagVirtualCall:
		return kindVirtualCall
	}
	if ignored[t.Name()] {
		return kindIgnored
	}
	return kindOther
}

// state is what the walk remembers between sibling elements of one parse.
type state struct {
	methodID    string
	methodAttrs *journal.Tag
	callAttrs   *journal.Tag
	bci         int
	virtual     bool
	// created is the node made for methodID by the last inline decision;
	// a following parse descends into it.
	created *Node
}

// Options configures a Walker.
type Options struct {
	Resolver  *resolve.Resolver
	Extractor *phase.Extractor
	Reporter  diag.Reporter
	Counters  *telemetry.Counters
	Logger    log.FieldLogger
}

// Walker builds call trees. One Walker serves one pipeline run; it is safe
// for sequential use only.
type Walker struct {
	model program.Model
	opts  Options
}

// NewWalker returns a Walker resolving against model.
func NewWalker(model program.Model, opts Options) (*Walker, error) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
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
	return &Walker{model: model, opts: opts}, nil
}

// Build returns the call tree of c. It returns (nil, nil) when the task has
// no parse data, as for a stale task, and compile.ErrNoBody when c has no
// task journal at all.
func Build(c *compile.Compilation, model program.Model, opts Options) (*Node, error) {
	w, err := NewWalker(model, opts)
	if err != nil {
		return nil, err
	}
	return w.Build(c)
}

// Build returns the call tree of c.
func (w *Walker) Build(c *compile.Compilation) (*Node, error) {
	if c == nil || c.Task == nil {
		id := ""
		if c != nil {
			id = c.ID
		}
		return nil, fmt.Errorf("%w: compile id %s", compile.ErrNoBody, id)
	}
	tree, format := w.opts.Extractor.Parse(c.Task)
	if tree == nil {
		return nil, nil
	}
	run := &walk{
		w:           w,
		compilation: c,
		dict:        c.Task.Dictionary(),
		logger:      w.opts.Logger.WithField("compile_id", c.ID).WithField("phase", string(format)),
	}
	run.children(tree, nil, &state{})
	if run.root == nil {
		diag.Info(w.opts.Reporter, diag.WalkNoBody, diag.Location{Line: c.Task.Line(), CompileID: c.ID},
			"task has no parse elements")
	}
	return run.root, nil
}

// walk is the state of one Build call.
type walk struct {
	w           *Walker
	compilation *compile.Compilation
	dict        *journal.Dictionary
	logger      log.FieldLogger
	root        *Node
}

// children handles every child of parent in order. node is the tree node the
// children belong to; it is nil until the first top-level parse.
func (r *walk) children(parent *journal.Tag, node *Node, st *state) {
	for _, t := range parent.Children() {
		r.element(t, node, st)
	}
}

func (r *walk) element(t *journal.Tag, node *Node, st *state) {
	switch classify(t) {
	case kindBC:
		st.callAttrs = nil
		st.virtual = false
		st.created = nil
		st.bci = atoi(t.Attr(journal.AttrBCI))

	case kindMethod:
		st.methodID = t.Attr(journal.AttrID)
		st.methodAttrs = t
		st.created = nil

	case kindCall:
		st.methodID = t.Attr(journal.AttrMethod)
		st.callAttrs = t
		st.virtual = t.Attr(journal.AttrVirtual) == "1"
		st.created = nil

	case kindInlineFail:
		if node != nil && st.methodID != "" {
			r.site(node, st, false, t.Attr(journal.AttrReason))
		}
		// A parse that follows belongs to some other call site.
		st.methodID = ""
		st.methodAttrs = nil
		st.created = nil

	case kindInlineSuccess:
		if node != nil && st.methodID != "" {
			st.created = r.site(node, st, true, t.Attr(journal.AttrReason))
		}

	case kindVirtualCall:
		if node != nil && st.methodID != "" {
			n := r.site(node, st, false, t.Attr(journal.AttrReason))
			n.Virtual = true
		}

	case kindParse:
		r.parse(t, node, st)

	case kindPhase:
		name := t.Attr(journal.AttrName)
		if name == journal.PhaseBuildIR || name == journal.PhaseParse {
			r.children(t, node, st)
			return
		}
		r.logger.Debugf("skipping phase %q", name)

	case kindIgnored:

	default:
		r.w.opts.Counters.Unhandled(t.Name())
		diag.Info(r.w.opts.Reporter, diag.WalkUnhandledTag,
			diag.Location{Line: t.Line(), CompileID: r.compilation.ID},
			"unhandled element <"+t.Name()+">")
	}
}

func (r *walk) parse(t *journal.Tag, node *Node, st *state) {
	method := t.Attr(journal.AttrMethod)

	if node == nil {
		switch {
		case r.root == nil:
			r.root = &Node{
				MethodID: method,
				Inlined:  true,
				root: &rootInfo{
					compilation: r.compilation,
					dict:        r.dict,
					model:       r.w.model,
					resolver:    r.w.opts.Resolver,
				},
			}
			r.root.Tooltip = tooltip(r.dict, t, nil)
			r.children(t, r.root, &state{})
		case method == "" || method == r.root.MethodID:
			r.children(t, r.root, &state{})
		default:
			// A later top-level parse, from late inlining, hangs off the
			// existing root.
			late := r.root.add(&Node{MethodID: method, Inlined: true, Reason: "late inline"})
			late.Tooltip = tooltip(r.dict, t, nil)
			r.children(t, late, &state{})
		}
		return
	}

	if st.created != nil && (method == "" || method == st.created.MethodID) {
		child := st.created
		st.created = nil
		r.children(t, child, &state{})
		return
	}

	if len(t.Descendants(journal.TagParse)) > 0 {
		id := st.methodID
		if id == "" {
			id = method
		}
		synth := node.add(&Node{
			MethodID:  id,
			Inlined:   true,
			CallerBCI: st.bci,
			Tooltip:   tooltip(r.dict, st.methodAttrs, st.callAttrs),
		})
		r.children(t, synth, &state{})
		return
	}

	r.children(t, node, &state{})
}

// site adds a child node for the pending method.
func (r *walk) site(node *Node, st *state, inlined bool, reason string) *Node {
	return node.add(&Node{
		MethodID:  st.methodID,
		Inlined:   inlined,
		Virtual:   st.virtual,
		Reason:    reason,
		CallerBCI: st.bci,
		Tooltip:   tooltip(r.dict, st.methodAttrs, st.callAttrs),
	})
}

// tooltip describes a call site from the attributes the walk captured.
func tooltip(dict *journal.Dictionary, method, call *journal.Tag) string {
	var parts []string
	if method != nil {
		if v := method.Attr(journal.AttrBytes); v != "" {
			parts = append(parts, "bytes="+v)
		}
		if v := method.Attr(journal.AttrIICount); v != "" {
			parts = append(parts, "invocations="+v)
		}
	}
	if call != nil {
		if v := call.Attr(journal.AttrCount); v != "" {
			parts = append(parts, "calls="+v)
		}
		if v := call.Attr(journal.AttrProfFactor); v != "" {
			parts = append(parts, "prof_factor="+v)
		}
		if id := call.Attr(journal.AttrReceiver); id != "" {
			name := id
			if k := dict.Klass(id); k != nil {
				name = program.TypeName(k.Attr(journal.AttrName))
			}
			hint := "receiver=" + name
			if cnt := call.Attr(journal.AttrReceiverCnt); cnt != "" {
				hint += " (" + cnt + ")"
			}
			parts = append(parts, hint)
		}
	}
	return strings.Join(parts, ", ")
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
