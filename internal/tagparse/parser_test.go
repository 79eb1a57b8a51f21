package tagparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/splitlog"
)

func feedAll(p *Parser, lines ...string) []Element {
	var out []Element
	for i, ln := range lines {
		out = append(out, p.Feed(i+1, ln)...)
	}
	return append(out, p.Finish()...)
}

func TestTaskSpansLines(t *testing.T) {
	p := New(Options{})
	els := feedAll(p,
		"<task compile_id='12' method='Foo bar ()V' bytes='5'>",
		"<phase name='parse' nodes='3'>",
		"<type id='1' name='void'/><klass id='2' name='Foo' flags='1'/>",
		"<method id='3' holder='2' name='bar' return='1' bytes='5'/>",
		"<parse method='3'>",
		"<bc code='182' bci='1'/>",
		"</parse>",
		"</phase>",
		"</task>",
	)
	require.Len(t, els, 1)
	task := els[0].Task
	require.NotNil(t, task)
	assert.Same(t, task.Tag, els[0].Tag)
	assert.Equal(t, "12", task.CompileID())
	assert.Equal(t, 1, task.Line())
	assert.Equal(t, "bar", task.Dictionary().Method("3").Attr(journal.AttrName))
	assert.Equal(t, uint64(1), task.Dictionary().Serial())
	assert.Len(t, p.Tasks(), 1)
	assert.Zero(t, p.Depth())

	ph := task.FirstNamedChild(journal.TagPhase)
	require.NotNil(t, ph)
	assert.Len(t, ph.Children(), 4)
	parse := ph.FirstNamedChild(journal.TagParse)
	require.NotNil(t, parse)
	assert.Equal(t, 5, parse.Line())
}

func TestSeveralElementsOnOneLine(t *testing.T) {
	p := New(Options{})
	els := p.Feed(1, "<task_queued compile_id='1'/> <nmethod compile_id='1' address='0x10'/>")
	require.Len(t, els, 2)
	assert.Equal(t, journal.TagTaskQueued, els[0].Tag.Name())
	assert.Equal(t, "0x10", els[1].Tag.Attr(journal.AttrAddress))
	assert.Equal(t, journal.TagNMethod, p.ParseLine(2, "<nmethod compile_id='2'/>").Name())
}

func TestContainersAreTransparent(t *testing.T) {
	p := New(Options{})
	els := feedAll(p, "<hotspot_log version='1'>", "<compilation_log thread='7'>", "<sweeper state='idle'/>", "</compilation_log>", "</hotspot_log>")
	require.Len(t, els, 1)
	assert.Equal(t, journal.TagSweeper, els[0].Tag.Name())
}

func TestEntitiesAreDecoded(t *testing.T) {
	p := New(Options{})
	tag := p.ParseLine(1, `<method id='1' name='&lt;init&gt;' holder="2"/>`)
	require.NotNil(t, tag)
	assert.Equal(t, "<init>", tag.Attr(journal.AttrName))
	assert.Equal(t, "2", tag.Attr(journal.AttrHolder))
}

func TestMalformedElementIsDiscarded(t *testing.T) {
	bag := diag.NewBag(16)
	p := New(Options{Reporter: diag.BagReporter{Bag: bag}})
	els := feedAll(p,
		"<task compile_id='3'>",
		"<bc bci='1/>",
		"<klass id='5' name='A&bogus;'>",
		"<method id='9'/>",
		"</klass>",
		"<call method='4'/>",
		"</task>",
	)
	require.Len(t, els, 1)
	task := els[0].Task
	require.NotNil(t, task)
	assert.Len(t, task.Children(), 1)
	assert.Equal(t, journal.TagCall, task.Children()[0].Name())
	assert.Nil(t, task.Dictionary().Method("9"))

	require.Len(t, p.Malformed(), 2)
	assert.Equal(t, 2, p.Malformed()[0].Line)
	assert.ErrorIs(t, p.Malformed()[1].Err, journal.ErrBadEntity)
	assert.Equal(t, 1, bag.Count(diag.TagBadEntity))
}

func TestUnbalancedAndUnclosed(t *testing.T) {
	bag := diag.NewBag(16)
	p := New(Options{Reporter: diag.BagReporter{Bag: bag}})
	els := feedAll(p,
		"</phase>",
		"<task compile_id='4'>",
		"<phase name='parse'>",
		"</task>",
		"<task compile_id='5'>",
	)
	require.Len(t, els, 2)
	assert.Equal(t, "4", els[0].Task.CompileID())
	assert.Len(t, els[0].Task.NamedChildren(journal.TagPhase), 1)
	assert.Equal(t, "5", els[1].Task.CompileID())
	assert.Equal(t, uint64(2), els[1].Task.Dictionary().Serial())
	assert.Equal(t, 1, bag.Count(diag.TagUnbalancedClose))
	assert.Equal(t, 1, bag.Count(diag.TagMalformed))
	assert.Equal(t, 1, bag.Count(diag.TagUnclosedAtEOF))
}

func TestTextAndCDATA(t *testing.T) {
	p := New(Options{})
	els := feedAll(p, "<dependency type='x'>", "some text", "<![CDATA[raw <stuff>]]>", "</dependency>")
	require.Len(t, els, 1)
	txt, ok := els[0].Tag.Text()
	require.True(t, ok)
	assert.Equal(t, "some text\nraw <stuff>", txt)
}

func TestParseHeader(t *testing.T) {
	lines := []splitlog.Line{
		{Num: 1, Text: "<?xml version='1.0' encoding='UTF-8'?>"},
		{Num: 2, Text: "<hotspot_log version='160 1' process='1'>"},
		{Num: 3, Text: "<vm_version>"},
		{Num: 4, Text: "<name>"},
		{Num: 5, Text: "OpenJDK 64-Bit Server VM"},
		{Num: 6, Text: "</name>"},
		{Num: 7, Text: "<release>"},
		{Num: 8, Text: "21.0.2+13"},
		{Num: 9, Text: "</release>"},
		{Num: 10, Text: "</vm_version>"},
		{Num: 11, Text: "<vm_arguments>"},
		{Num: 12, Text: "<command>"},
		{Num: 13, Text: "Main --fast"},
		{Num: 14, Text: "</command>"},
		{Num: 15, Text: "</vm_arguments>"},
	}
	root := ParseHeader(lines, Options{})
	require.Equal(t, HeaderRoot, root.Name())
	info := ReadVMInfo(root)
	assert.Equal(t, "OpenJDK 64-Bit Server VM", info.Version)
	assert.Equal(t, "21.0.2+13", info.Release)
	assert.Equal(t, "Main --fast", info.Arguments)
	assert.Equal(t, VMInfo{}, ReadVMInfo(nil))
}
