package chain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/compile"
	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/program"
	"jitscope/internal/tagparse"
	"jitscope/internal/telemetry"
)

func compilation(t *testing.T, lines ...string) *compile.Compilation {
	t.Helper()
	p := tagparse.New(tagparse.Options{})
	for i, ln := range lines {
		p.Feed(i+1, ln)
	}
	p.Finish()
	require.NotEmpty(t, p.Tasks())
	task := p.Tasks()[0]
	return &compile.Compilation{ID: task.CompileID(), Task: task}
}

func TestInlineSuccess(t *testing.T) {
	c := compilation(t, `<task compile_id='1'><parse method='m1'><method id='m1' name='foo' holder='k1'/><bc bci='3'/><call method='m2'/><method id='m2' name='bar' holder='k1'/><inline_success reason='small'/></parse></task>`)

	root, err := Build(c, program.NewTable(), Options{})
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "m1", root.MethodID)
	assert.True(t, root.IsRoot())
	require.Len(t, root.Children, 1)

	child := root.Children[0]
	assert.Equal(t, "m2", child.MethodID)
	assert.True(t, child.Inlined)
	assert.Equal(t, 3, child.CallerBCI)
	assert.Equal(t, "small", child.Reason)
	assert.Same(t, root, child.Parent())
	assert.Same(t, c, child.Compilation())
	assert.Equal(t, "method#m2", child.Label())
}

func TestInlineFailClearsPendingMethod(t *testing.T) {
	c := compilation(t, `<task compile_id='1'><parse method='m1'><method id='m1' name='foo' holder='k1'/><bc bci='3'/><call method='m2'/><method id='m2' name='bar' holder='k1'/><inline_fail reason='too large'/><inline_success reason='stray'/></parse></task>`)

	root, err := Build(c, nil, Options{})
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, "m2", child.MethodID)
	assert.False(t, child.Inlined)
	assert.Equal(t, "too large", child.Reason)
	assert.Equal(t, 3, child.CallerBCI)
}

func TestInlineFailThenUnrelatedParse(t *testing.T) {
	c := compilation(t, `<task compile_id='1'><parse method='m1'><method id='m1' name='foo' holder='k1'/>`+
		`<bc bci='3'/><call method='m2'/><inline_fail reason='too big'/>`+
		`<parse method='m9'><bc bci='1'/><call method='m4'/><inline_success reason='hot'/><parse method='m4'></parse></parse>`+
		`</parse></task>`)

	root, err := Build(c, nil, Options{})
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	failed := root.Children[0]
	assert.Equal(t, "m2", failed.MethodID)
	assert.False(t, failed.Inlined)
	assert.Equal(t, "too big", failed.Reason)
	assert.Empty(t, failed.Children)

	next := root.Children[1]
	assert.Equal(t, "m9", next.MethodID)
	assert.True(t, next.Inlined)
	require.Len(t, next.Children, 1)
	assert.Equal(t, "m4", next.Children[0].MethodID)
	assert.Equal(t, 1, next.Children[0].CallerBCI)
	assert.Same(t, next, next.Children[0].Parent())
}

func TestIgnoredElementsAreNotUnhandled(t *testing.T) {
	c := compilation(t,
		"<task compile_id='8'>",
		"<parse method='m1'>",
		"<bc bci='2'/><call method='m2'/><inline_level_discount/><jvms bci='2' method='m1'/>",
		"<assert_null reason='x'/><replace_string_concat/><late_inline method='m2'/>",
		"<inline_success reason='hot'/>",
		"<mystery/>",
		"</parse>",
		"<nmethod address='0x10'/><failure reason='x'/><task_done success='1'/>",
		"</task>")
	counters := telemetry.New()
	root, err := Build(c, nil, Options{Counters: counters})
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "m2", root.Children[0].MethodID)
	assert.Equal(t, map[string]int{"mystery": 1}, counters.UnhandledSnapshot())
}

var nested = []string{
	"<task compile_id='2'>",
	"<phase name='parse'>",
	"<klass id='10' name='a/B'/><type id='11' name='void'/><type id='12' name='int'/>",
	"<method id='20' holder='10' name='outer' return='11' bytes='30' iicount='100'/>",
	"<parse method='20'>",
	"<bc bci='5'/><method id='21' holder='10' name='inner' return='12' bytes='8'/>",
	"<call method='21' count='90' prof_factor='1'/><inline_success reason='inline (hot)'/>",
	"<parse method='21'>",
	"<bc bci='2'/><method id='22' holder='10' name='leaf' return='11'/>",
	"<call method='22' virtual='1' receiver='10' receiver_count='7'/><virtual_call reason='not monomorphic'/>",
	"<parse_done/>",
	"</parse>",
	"<bc bci='9'/><call method='22'/><inline_fail reason='callee is too large'/>",
	"<mystery/>",
	"</parse>",
	"<parse method='22'><bc bci='0'/></parse>",
	"</phase>",
	"</task>",
}

func nestedModel() *program.Table {
	m := program.NewTable()
	m.AddMember(&program.Member{Holder: "a.B", Name: "outer", Return: "void"})
	m.AddMember(&program.Member{Holder: "a.B", Name: "inner", Return: "int"})
	m.AddMember(&program.Member{Holder: "a.B", Name: "leaf", Return: "void"})
	return m
}

func TestNestedTree(t *testing.T) {
	c := compilation(t, nested...)
	counters := telemetry.New()
	bag := diag.NewBag(100)
	root, err := Build(c, nestedModel(), Options{Counters: counters, Reporter: diag.BagReporter{Bag: bag}})
	require.NoError(t, err)
	require.NotNil(t, root)

	assert.Equal(t, "void a.B.outer()", root.Label())
	assert.Equal(t, 5, root.Count())
	require.Len(t, root.Children, 3)

	inner := root.Children[0]
	assert.Equal(t, "21", inner.MethodID)
	assert.True(t, inner.Inlined)
	assert.Equal(t, 5, inner.CallerBCI)
	assert.Equal(t, "bytes=8, calls=90, prof_factor=1", inner.Tooltip)
	require.Len(t, inner.Children, 1)

	virt := inner.Children[0]
	assert.True(t, virt.Virtual)
	assert.False(t, virt.Inlined)
	assert.Equal(t, "not monomorphic", virt.Reason)
	assert.Equal(t, "receiver=a.B (7)", virt.Tooltip)
	assert.Equal(t, 2, virt.Depth())
	assert.Equal(t, "leaf", virt.Member().Name)

	failed := root.Children[1]
	assert.Equal(t, "22", failed.MethodID)
	assert.False(t, failed.Inlined)
	assert.Equal(t, 9, failed.CallerBCI)

	late := root.Children[2]
	assert.Equal(t, "22", late.MethodID)
	assert.Equal(t, "late inline", late.Reason)

	assert.Equal(t, map[string]int{"mystery": 1}, counters.UnhandledSnapshot())
	assert.Equal(t, 1, bag.Count(diag.WalkUnhandledTag))
}

func TestSynthesizedNode(t *testing.T) {
	c := compilation(t, `<task compile_id='3'><parse method='m1'><bc bci='4'/><call method='m2'/><parse method='m2'><parse method='m3'></parse></parse></parse></task>`)
	root, err := Build(c, nil, Options{})
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	synth := root.Children[0]
	assert.Equal(t, "m2", synth.MethodID)
	assert.True(t, synth.Inlined)
	assert.Equal(t, 4, synth.CallerBCI)
	assert.Empty(t, synth.Children)
}

func shape(n *Node) string {
	var sb strings.Builder
	n.Walk(func(x *Node) bool {
		fmt.Fprintf(&sb, "%d:%s:%t:%t:%d:%s;", x.Depth(), x.MethodID, x.Inlined, x.Virtual, x.CallerBCI, x.Reason)
		return true
	})
	return sb.String()
}

func TestBuildIsDeterministicAndAcyclic(t *testing.T) {
	c := compilation(t, nested...)
	w, err := NewWalker(nestedModel(), Options{})
	require.NoError(t, err)

	first, err := w.Build(c)
	require.NoError(t, err)
	second, err := w.Build(c)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, shape(first), shape(second))

	limit := first.Count()
	first.Walk(func(n *Node) bool {
		for _, ch := range n.Children {
			assert.Same(t, n, ch.Parent())
		}
		steps := 0
		for p := n; p.Parent() != nil; p = p.Parent() {
			steps++
			require.Less(t, steps, limit)
		}
		assert.Same(t, first, n.Root())
		return true
	})
}

func TestBuildWithoutParseData(t *testing.T) {
	stale := compilation(t, "<task compile_id='4'>", "<failure reason='stale_task'/>", "</task>")
	root, err := Build(stale, nil, Options{})
	assert.NoError(t, err)
	assert.Nil(t, root)

	wrapped := compilation(t, "<task compile_id='7'>", "<phase name='parse'>", "<parse method='m1'>", "</parse>", "</phase>",
		"<failure reason='stale_task'/>", "</task>")
	root, err = Build(wrapped, nil, Options{})
	assert.NoError(t, err)
	assert.Nil(t, root)

	bag := diag.NewBag(10)
	empty := compilation(t, "<task compile_id='5'>", "<phase name='parse'>", "</phase>", "</task>")
	root, err = Build(empty, nil, Options{Reporter: diag.BagReporter{Bag: bag}})
	assert.NoError(t, err)
	assert.Nil(t, root)
	assert.Equal(t, 1, bag.Count(diag.WalkNoBody))

	_, err = Build(&compile.Compilation{ID: "6"}, nil, Options{})
	assert.ErrorIs(t, err, compile.ErrNoBody)
	_, err = Build(nil, nil, Options{})
	assert.ErrorIs(t, err, compile.ErrNoBody)
}

func TestSignatureWithoutModel(t *testing.T) {
	c := compilation(t, nested...)
	root, err := Build(c, program.NewTable(), Options{})
	require.NoError(t, err)
	sig, ok := root.Children[0].Signature()
	require.True(t, ok)
	assert.Equal(t, "int a.B.inner()", sig.String())
	assert.Equal(t, "int a.B.inner()", root.Children[0].Label())
	assert.Nil(t, root.Children[0].Member())
	assert.Equal(t, journal.TagTask, c.Task.Name())
}
