package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"jitscope/internal/pipeline"
)

const sampleLog = `<?xml version='1.0' encoding='UTF-8'?>
<hotspot_log version='160 1' process='4242' time_ms='1700000000000'>
<tty>
<task_queued compile_id='1' method='a/B m (I)I' bytes='10' level='4' stamp='0.100'/>
<task compile_id='1' method='a/B m (I)I' bytes='10' stamp='0.110'>
<phase name='parse' stamp='0.111'>
<klass id='10' name='a/B'/>
<type id='11' name='int'/>
<method id='12' holder='10' name='m' return='11' arguments='11' bytes='10'/>
<klass id='13' name='a/C'/>
<parse method='12' stamp='0.112'>
<bc code='184' bci='3'/>
<method id='14' holder='13' name='small' return='11' arguments='11' bytes='5'/>
<call method='14' count='10'/>
<inline_success reason='inline (hot)'/>
<parse method='14' stamp='0.113'>
</parse>
<bc code='184' bci='8'/>
<method id='15' holder='13' name='big' return='11' arguments='11' bytes='500'/>
<call method='15' count='10'/>
<inline_fail reason='too big'/>
<mystery/>
</parse>
</phase>
<phase name='optimizer' stamp='0.120'>
<eliminate_allocation type='13'/>
<eliminate_allocation type='13'/>
<eliminate_lock lock='1'/>
</phase>
<task_done success='1' nmsize='64' stamp='0.130'/>
</task>
<nmethod compile_id='1' compiler='c2' level='4' address='0x1000' size='64' stamp='0.130'/>
<task_queued compile_id='2' method='x/Y run ()V' bytes='4' level='3' stamp='0.200'/>
<task compile_id='2' method='x/Y run ()V' bytes='4' stamp='0.210'>
<phase name='buildIR' stamp='0.210'>
<klass id='20' name='x/Y'/>
<type id='21' name='void'/>
<type id='22' name='int'/>
<klass id='23' name='a/C'/>
<method id='24' holder='20' name='run' return='21' bytes='4'/>
<parse method='24' stamp='0.211'>
<bc code='184' bci='1'/>
<method id='25' holder='23' name='big' return='22' arguments='22' bytes='500'/>
<call method='25'/>
<inline_fail reason='too big'/>
</parse>
</phase>
<task_done success='1' nmsize='32' stamp='0.220'/>
</task>
<task_queued compile_id='3' method='a/B m (I)I' bytes='10' level='3' stamp='0.300'/>
<task compile_id='3' method='a/B m (I)I' bytes='10' stamp='0.310'>
<failure reason='out of nodes' stamp='0.320'/>
<task_done success='0' nmsize='0' stamp='0.320'/>
</task>
Decoding compiled method 0x0000000000001000:
[Entry Point]
  0x0000000000001010: call 0x2000  ; - a.C::run@0 (line 3)
                                   ; - a.B::m@7 (line 7)
                                   ;   {optimized virtual_call}
</tty>
<hotspot_log_done stamp='0.400'/>
</hotspot_log>
`

func results(t *testing.T) []*pipeline.Result {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)
	res, err := pipeline.RunReader(context.Background(), strings.NewReader(sampleLog), "sample", pipeline.Options{Logger: logger})
	require.NoError(t, err)
	return []*pipeline.Result{res}
}

func noColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestTasks(t *testing.T) {
	tbl, err := Build(ModeTasks, results(t), Filter{Package: "a"})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1", "c2", "4", "int a.B.m(int)", "10", "64", "asm", "2 alloc, 1 lock"}, tbl.Rows[0])
	assert.Equal(t, []string{"3", "c1", "3", "int a.B.m(int)", "10", "0", "failed", ""}, tbl.Rows[1])
	assert.Equal(t, 2, tbl.Total)

	tbl, err = Build(ModeTasks, results(t), Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)
	assert.Equal(t, 3, tbl.Total)
}

func TestInliningAndFailures(t *testing.T) {
	res := results(t)

	tbl, err := Build(ModeInlining, res, Filter{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"int a.C.big(int)", "0", "2", "too big (2)"},
		{"int a.C.small(int)", "1", "0", ""},
	}, tbl.Rows)

	tbl, err = Build(ModeFailures, res, Filter{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"too big", "2"}}, tbl.Rows)

	tbl, err = Build(ModeFailures, res, Filter{Package: "x"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"too big", "1"}}, tbl.Rows)

	tbl, err = Build(ModeFailures, res, Filter{Package: "x.Y"})
	require.NoError(t, err)
	assert.Empty(t, tbl.Rows, "package filter matches whole segments")
}

func TestVirtualCallsAndHotThrows(t *testing.T) {
	res := results(t)
	tbl, err := Build(ModeVCalls, res, Filter{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "int a.B.m(int)", "0x1010", "a.B::m@7 (line 7)", "a.C::run@0 (line 3)", "lookback"}}, tbl.Rows)

	tbl, err = Build(ModeHotThrows, res, Filter{})
	require.NoError(t, err)
	assert.Empty(t, tbl.Rows)
}

func TestUnhandledCountsSharedCountersOnce(t *testing.T) {
	res := results(t)
	c, err := res[0].Lookup("1")
	require.NoError(t, err)
	_, err = res[0].CallTree(c)
	require.NoError(t, err)

	tbl, err := Build(ModeUnhandled, append(res, res[0]), Filter{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"mystery", "1"}}, tbl.Rows)
}

func TestTop(t *testing.T) {
	tbl, err := Build(ModeTop, results(t), Filter{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"int a.B.m(int)", "2", "c1:1 c2:1", "1"},
		{"void x.Y.run()", "1", "c1:1", "0"},
	}, tbl.Rows)
}

func TestParseModeAndFormat(t *testing.T) {
	m, err := ParseMode(" VCalls ")
	require.NoError(t, err)
	assert.Equal(t, ModeVCalls, m)
	_, err = ParseMode("nope")
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = Build(Mode("nope"), nil, Filter{})
	assert.ErrorIs(t, err, ErrUnknownMode)

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPretty, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRender(t *testing.T) {
	noColor(t)
	tbl, err := Build(ModeFailures, results(t), Filter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, tbl, FormatJSON))
	var fromJSON Table
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, *tbl, fromJSON)

	buf.Reset()
	require.NoError(t, Render(&buf, tbl, FormatMsgpack))
	var fromMsgpack Table
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &fromMsgpack))
	assert.Equal(t, *tbl, fromMsgpack)

	buf.Reset()
	require.NoError(t, Render(&buf, tbl, FormatPretty))
	out := buf.String()
	assert.Contains(t, out, "inline failure reasons")
	assert.Contains(t, out, "  reason   count\n")
	assert.Contains(t, out, "  too big  2    \n")

	buf.Reset()
	require.NoError(t, Render(&buf, &Table{Title: "empty", Columns: []string{"a"}, Total: 0}, FormatPretty))
	assert.Contains(t, buf.String(), "(none)")

	buf.Reset()
	limited := &Table{Title: "t", Columns: []string{"a"}, Rows: [][]string{{"x"}}, Total: 5}
	require.NoError(t, Render(&buf, limited, ""))
	assert.Contains(t, buf.String(), "t (1 of 5)")

	assert.ErrorIs(t, Render(&buf, tbl, Format("xml")), ErrUnknownFormat)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "abcde...", Truncate("abcdefghij", 8))
	assert.Equal(t, "日本...", Truncate("日本語のテキスト", 7))
	assert.Equal(t, "ab", Truncate("abcdefgh", 2))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestWriteTreeAndAssembly(t *testing.T) {
	noColor(t)
	res := results(t)[0]
	c, err := res.Lookup("1")
	require.NoError(t, err)
	root, err := res.CallTree(c)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, root, true))
	out := buf.String()
	assert.Contains(t, out, "compile 1 int a.B.m(int) [c2 level 4]")
	assert.Contains(t, out, "* int a.B.m(int)\n")
	assert.Contains(t, out, "  + int a.C.small(int) @3 (inline (hot))  [bytes=5, calls=10]\n")
	assert.Contains(t, out, "  - int a.C.big(int) @8 (too big)")

	buf.Reset()
	require.NoError(t, WriteTree(&buf, nil, false))
	assert.Equal(t, "(no call tree)\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteAssembly(&buf, c, res.Correlation(c)))
	out = buf.String()
	assert.Contains(t, out, "[Entry Point]\n")
	assert.Contains(t, out, "0x0000000000001010: call 0x2000  ; a.C::run@0 (line 3) {optimized virtual_call}")
	assert.Contains(t, out, "optimized virtual calls")
	assert.Contains(t, out, "0x1010 a.B::m@7 (line 7) -> a.C::run@0 (line 3)")

	stale, err := res.Lookup("3")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, WriteAssembly(&buf, stale, nil))
	assert.Equal(t, "(no assembly)\n", buf.String())
}
