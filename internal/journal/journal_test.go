package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTask() *Task {
	root := NewTag(TagTask, map[string]string{AttrCompileID: "7", AttrMethod: "m1"}, false)
	root.AddChild(NewTag(TagType, map[string]string{AttrID: "t1", AttrName: "void"}, true))
	root.AddChild(NewTag(TagKlass, map[string]string{AttrID: "k1", AttrName: "java/lang/String"}, true))
	root.AddChild(NewTag(TagMethod, map[string]string{AttrID: "m1", AttrHolder: "k1", AttrName: "hashCode", AttrReturn: "t1"}, true))
	ph := NewTag(TagPhase, map[string]string{AttrName: PhaseParse}, false)
	ph.AddChild(NewTag(TagMethod, map[string]string{AttrID: "m2", AttrHolder: "k1", AttrName: "length", AttrReturn: "t1"}, true))
	root.AddChild(ph)
	task := NewTask(root, 3)
	task.Seal()
	return task
}

func TestDictionaryIsTaskScoped(t *testing.T) {
	task := sampleTask()
	d := task.Dictionary()

	assert.Equal(t, uint64(3), d.Serial())
	assert.Equal(t, 2, d.Methods())
	assert.Equal(t, 1, d.Klasses())
	assert.Equal(t, "length", d.Method("m2").Attr(AttrName))
	assert.Nil(t, d.Method("m3"))

	name, ok := d.TypeOrKlassName("t1")
	require.True(t, ok)
	assert.Equal(t, "void", name)
	name, ok = d.TypeOrKlassName("k1")
	require.True(t, ok)
	assert.Equal(t, "java/lang/String", name)
	_, ok = d.TypeOrKlassName("nope")
	assert.False(t, ok)

	other := NewTask(NewTag(TagTask, nil, false), 4)
	other.Seal()
	assert.Nil(t, other.Dictionary().Method("m1"))
}

func TestNilDictionary(t *testing.T) {
	var d *Dictionary
	assert.Nil(t, d.Method("1"))
	assert.Zero(t, d.Serial())
	assert.Empty(t, d.MethodIDs())
}

func TestStaleTask(t *testing.T) {
	task := sampleTask()
	assert.False(t, task.IsStale())
	_, ok := task.FailureReason()
	assert.False(t, ok)

	task.AddChild(NewTag(TagFailure, map[string]string{AttrReason: "stale_task"}, true))
	assert.True(t, task.IsStale())
	reason, ok := task.FailureReason()
	require.True(t, ok)
	assert.Equal(t, "stale_task", reason)
	assert.True(t, IsStaleReason("stale task"))
	assert.False(t, IsStaleReason("COMPILE SKIPPED"))
}

func TestTagNavigation(t *testing.T) {
	task := sampleTask()
	assert.Equal(t, "7", task.CompileID())
	assert.Len(t, task.NamedChildren(TagMethod), 1)
	assert.Len(t, task.Descendants(TagMethod), 2)
	assert.Equal(t, "k1", task.FirstNamedChild(TagKlass).Attr(AttrID))
	assert.Len(t, task.NamedChildrenWithAttr(TagPhase, AttrName, PhaseParse), 1)
	assert.Nil(t, task.FirstNamedChild(TagBC))

	var order []string
	task.Walk(func(tg *Tag) bool {
		order = append(order, tg.Name())
		return tg.Name() != TagPhase
	})
	assert.Equal(t, []string{TagTask, TagType, TagKlass, TagMethod, TagPhase}, order)
}

func TestTagText(t *testing.T) {
	tag := NewTag("dependency", nil, false)
	_, ok := tag.Text()
	assert.False(t, ok)
	tag.AppendText("a")
	tag.AppendText("b")
	text, ok := tag.Text()
	require.True(t, ok)
	assert.Equal(t, "a\nb", text)
}

func TestOpenStringEncodesAttributes(t *testing.T) {
	tag := NewTag(TagMethod, map[string]string{AttrName: "<init>", AttrID: "1"}, true)
	assert.Equal(t, "<method id='1' name='&lt;init&gt;'/>", tag.OpenString())
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in, want string
		bad      bool
	}{
		{in: "plain", want: "plain"},
		{in: "&lt;init&gt;", want: "<init>"},
		{in: "a&amp;b&apos;&quot;", want: "a&b'\""},
		{in: "&#65;&#x42;", want: "AB"},
		{in: "&bogus;", bad: true},
		{in: "&lt", bad: true},
	}
	for _, tt := range tests {
		got, err := DecodeEntities(tt.in)
		if tt.bad {
			assert.ErrorIs(t, err, ErrBadEntity, tt.in)
			assert.Equal(t, tt.in, MustDecodeEntities(tt.in))
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
