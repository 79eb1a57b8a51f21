package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/tagparse"
)

func parseTask(t *testing.T, lines ...string) *journal.Task {
	t.Helper()
	p := tagparse.New(tagparse.Options{})
	for i, ln := range lines {
		p.Feed(i+1, ln)
	}
	p.Finish()
	require.NotEmpty(t, p.Tasks())
	return p.Tasks()[0]
}

func TestRules(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		format Format
		root   string
	}{
		{
			name:   "c1",
			lines:  []string{"<task compile_id='1'>", "<phase name='buildIR'>", "<parse method='1'/>", "</phase>", "</task>"},
			format: FormatC1,
			root:   journal.TagPhase,
		},
		{
			name:   "c2",
			lines:  []string{"<task compile_id='2'>", "<phase name='parse'>", "<parse method='1'/>", "</phase>", "<phase name='optimizer'/>", "</task>"},
			format: FormatC2,
			root:   journal.TagPhase,
		},
		{
			name:   "flat",
			lines:  []string{"<task compile_id='3'>", "<parse method='1'/>", "</task>"},
			format: FormatFlat,
			root:   journal.TagTask,
		},
		{
			name:   "two parse phases fall back to flat",
			lines:  []string{"<task compile_id='4'>", "<phase name='parse'/>", "<phase name='parse'/>", "</task>"},
			format: FormatFlat,
			root:   journal.TagTask,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := parseTask(t, tt.lines...)
			ext := NewExtractor(nil, nil)
			tag, format := ext.Parse(task)
			assert.Equal(t, tt.format, format)
			require.NotNil(t, tag)
			assert.Equal(t, tt.root, tag.Name())
			assert.Equal(t, tt.format, Detect(task))
		})
	}
}

func TestStaleTaskIsSilent(t *testing.T) {
	tests := map[string][]string{
		"bare": {"<task compile_id='9'>", "<failure reason='stale_task'/>", "</task>"},
		"parse phase": {
			"<task compile_id='9'>",
			"<phase name='parse'>", "<parse method='1'>", "</parse>", "</phase>",
			"<failure reason='stale_task'/>", "</task>",
		},
		"buildIR phase": {
			"<task compile_id='9'>",
			"<phase name='buildIR'>", "<parse method='1'>", "</parse>", "</phase>",
			"<failure reason='stale_task'/>", "</task>",
		},
	}
	for name, lines := range tests {
		t.Run(name, func(t *testing.T) {
			bag := diag.NewBag(8)
			ext := NewExtractor(diag.BagReporter{Bag: bag}, nil)
			task := parseTask(t, lines...)

			tag, format := ext.Parse(task)
			assert.Nil(t, tag)
			assert.Equal(t, FormatStale, format)
			assert.Equal(t, FormatStale, Detect(task))
			assert.Zero(t, ext.Warnings())
			assert.Zero(t, bag.Len())
		})
	}
}

func TestFlatWarnsOncePerTask(t *testing.T) {
	bag := diag.NewBag(8)
	ext := NewExtractor(diag.BagReporter{Bag: bag}, nil)
	a := parseTask(t, "<task compile_id='1'>", "<parse method='1'/>", "</task>")
	b := parseTask(t, "<task compile_id='2'>", "</task>")

	ext.Parse(a)
	ext.Parse(a)
	assert.Equal(t, 1, ext.Warnings())
	assert.Equal(t, 1, bag.Count(diag.WalkPhaseMissing))

	ext.Parse(b)
	assert.Equal(t, 1, ext.Warnings(), "separately parsed tasks share serial 1")

	_, format := ext.Parse(nil)
	assert.Empty(t, format)
}

func TestEliminations(t *testing.T) {
	task := parseTask(t,
		"<task compile_id='5'>",
		"<phase name='parse'/>",
		"<eliminate_allocation type='1'/>",
		"<phase name='optimizer'>",
		"<eliminate_allocation type='2'/>",
		"<eliminate_lock lock='1'/>",
		"<eliminate_boxing/>",
		"</phase>",
		"</task>",
	)
	require.NotNil(t, Optimizer(task))
	allocs := EliminatedAllocations(task)
	require.Len(t, allocs, 1)
	assert.Equal(t, "2", allocs[0].Attr("type"))
	assert.Len(t, EliminatedLocks(task), 1)
	assert.Len(t, EliminatedBoxing(task), 1)

	bare := parseTask(t, "<task compile_id='6'>", "<eliminate_lock lock='1'/>", "</task>")
	assert.Nil(t, Optimizer(bare))
	assert.Len(t, EliminatedLocks(bare), 1)
	assert.Nil(t, EliminatedLocks(nil))
}
