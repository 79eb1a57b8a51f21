package correlate

import (
	"strconv"

	"jitscope/internal/compile"
	"jitscope/internal/journal"
	"jitscope/internal/phase"
	"jitscope/internal/program"
	"jitscope/internal/resolve"
)

// HotThrow is an exception site the compiler saw thrown often enough to
// handle specially.
type HotThrow struct {
	Member       *program.Member
	MethodID     string
	BCI          int
	Entry        program.ExceptionEntry
	Preallocated bool
	Reason       string
	CompileID    string
}

// HotThrows walks the parse tree of c and returns every hot_throw whose
// bytecode index lies inside an exception table entry of the member being
// parsed at that point.
func HotThrows(c *compile.Compilation, model program.Model, res *resolve.Resolver, ext *phase.Extractor) []HotThrow {
	if c == nil || c.Task == nil || model == nil || res == nil {
		return nil
	}
	tree, _ := ext.Parse(c.Task)
	if tree == nil {
		return nil
	}
	h := &throwScan{c: c, model: model, res: res, dict: c.Task.Dictionary()}
	h.scan(tree, parseFrame{bci: -1})
	return h.out
}

type parseFrame struct {
	methodID string
	member   *program.Member
	bytecode *program.MemberBytecode
	bci      int
}

type throwScan struct {
	c     *compile.Compilation
	model program.Model
	res   *resolve.Resolver
	dict  *journal.Dictionary
	out   []HotThrow
}

func (h *throwScan) scan(parent *journal.Tag, fr parseFrame) {
	for _, t := range parent.Children() {
		switch t.Name() {
		case journal.TagBC:
			if n, err := strconv.Atoi(t.Attr(journal.AttrBCI)); err == nil {
				fr.bci = n
			}
		case journal.TagParse:
			h.scan(t, h.enter(t.Attr(journal.AttrMethod)))
		case journal.TagPhase:
			name := t.Attr(journal.AttrName)
			if name == journal.PhaseParse || name == journal.PhaseBuildIR {
				h.scan(t, fr)
			}
		case journal.TagHotThrow:
			h.hotThrow(t, fr)
		}
	}
}

func (h *throwScan) enter(methodID string) parseFrame {
	fr := parseFrame{methodID: methodID, bci: -1}
	fr.member = h.res.Resolve(methodID, h.dict)
	if fr.member != nil {
		fr.bytecode = h.model.MetaClass(fr.member.Holder).MemberBytecode(fr.member)
	}
	return fr
}

func (h *throwScan) hotThrow(t *journal.Tag, fr parseFrame) {
	if fr.bytecode == nil || fr.bci < 0 {
		return
	}
	entry, ok := fr.bytecode.ExceptionAt(fr.bci)
	if !ok {
		return
	}
	h.out = append(h.out, HotThrow{
		Member:       fr.member,
		MethodID:     fr.methodID,
		BCI:          fr.bci,
		Entry:        entry,
		Preallocated: t.Attr(journal.AttrPreallocated) == "1",
		Reason:       t.Attr(journal.AttrReason),
		CompileID:    h.c.ID,
	})
}
