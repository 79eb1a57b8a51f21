package splitlog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/diag"
)

const sampleLog = `<?xml version='1.0' encoding='UTF-8'?>
<hotspot_log version='160 1' process='4242'>
<vm_version>
<tty>
<task_queued compile_id='1' method='Foo bar ()V' bytes='5'/>

<![CDATA[
[Loaded java.lang.Object from shared objects file]
[0.012s][info][class,load] java.lang.String source: jrt:/java.base
Decoding compiled method 0x00007f0000001000:
  0x00007f0000001010: mov    %rax,%rbx<nmethod compile_id='1' address='0x00007f0000001000'/>
]]>
</tty>`

func TestSplitRoutesStreams(t *testing.T) {
	bag := diag.NewBag(16)
	res, err := Split(strings.NewReader(sampleLog), Options{Reporter: diag.BagReporter{Bag: bag}})
	require.NoError(t, err)

	require.Len(t, res.Header, 3)
	assert.Equal(t, 1, res.Header[0].Num)
	assert.Equal(t, "<vm_version>", res.Header[2].Text)

	require.Len(t, res.Body, 3)
	assert.Equal(t, "<task_queued compile_id='1' method='Foo bar ()V' bytes='5'/>", res.Body[0].Text)
	assert.Equal(t, 5, res.Body[0].Num)
	assert.Equal(t, "<nmethod compile_id='1' address='0x00007f0000001000'/>", res.Body[1].Text)
	assert.Equal(t, 11, res.Body[1].Num)
	assert.Equal(t, "</tty>", res.Body[2].Text)

	require.Len(t, res.ClassLoad, 2)
	assert.True(t, strings.HasPrefix(res.ClassLoad[0].Text, LoadedPrefix))

	require.Len(t, res.Assembly, 2)
	assert.Equal(t, "Decoding compiled method 0x00007f0000001000:", res.Assembly[0].Text)
	assert.Equal(t, "  0x00007f0000001010: mov    %rax,%rbx", res.Assembly[1].Text)

	assert.Equal(t, 13, res.Lines)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 1, bag.Count(diag.SplitMidLineTag))
}

func TestSplitterNeverLeavesBody(t *testing.T) {
	s := New(Options{})
	s.Feed(1, "<hotspot_log>")
	assert.False(t, s.InBody())
	s.Feed(2, "<tty>")
	assert.True(t, s.InBody())
	s.Feed(3, "<tty>")
	assert.True(t, s.InBody())
	assert.Len(t, s.Result().Body, 1)
}

func TestSplitCharset(t *testing.T) {
	in := "<tty>\n<klass id='1' name='Caf\xe9'/>\n"
	res, err := Split(strings.NewReader(in), Options{Charset: "ISO-8859-1"})
	require.NoError(t, err)
	require.Len(t, res.Body, 1)
	assert.Equal(t, "<klass id='1' name='Café'/>", res.Body[0].Text)

	_, err = Split(strings.NewReader(in), Options{Charset: "no-such-charset"})
	assert.Error(t, err)
}

func TestSplitLineTooLong(t *testing.T) {
	in := "<tty>\n" + strings.Repeat("x", 70*1024) + "\n"
	res, err := Split(strings.NewReader(in), Options{MaxLineSize: 64})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Lines)
}

func TestSplitFileMissing(t *testing.T) {
	_, err := SplitFile(filepath.Join(t.TempDir(), "missing.log"), Options{})
	assert.ErrorIs(t, err, ErrOpenLog)
}
