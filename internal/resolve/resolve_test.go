package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/program"
	"jitscope/internal/telemetry"
)

func tag(name string, attrs map[string]string) *journal.Tag {
	return journal.NewTag(name, attrs, true)
}

// dictionary declares String(char[], int, int), String.length() and a
// method whose holder is missing.
func dictionary(serial uint64) *journal.Dictionary {
	root := journal.NewTag(journal.TagTask, nil, false)
	for _, t := range []*journal.Tag{
		tag(journal.TagType, map[string]string{"id": "1", "name": "void"}),
		tag(journal.TagType, map[string]string{"id": "2", "name": "int"}),
		tag(journal.TagKlass, map[string]string{"id": "3", "name": "java/lang/String"}),
		tag(journal.TagKlass, map[string]string{"id": "4", "name": "[C"}),
		tag(journal.TagMethod, map[string]string{"id": "5", "holder": "3", "name": "<init>", "return": "1", "arguments": "4 2 2"}),
		tag(journal.TagMethod, map[string]string{"id": "6", "holder": "3", "name": "length", "return": "2"}),
		tag(journal.TagMethod, map[string]string{"id": "7", "holder": "99", "name": "lost", "return": "1"}),
		tag(journal.TagMethod, map[string]string{"id": "8", "holder": "3", "name": "charAt", "return": "42", "arguments": "2"}),
		tag(journal.TagMethod, map[string]string{"id": "9", "holder": "3", "name": "isEmpty", "return": "2"}),
	} {
		root.AddChild(t)
	}
	return journal.NewDictionary(serial, root)
}

func model() *program.Table {
	t := program.NewTable()
	t.AddMember(&program.Member{Holder: "java.lang.String", Name: "String", Return: "void",
		Params: []string{"char[]", "int", "int"}, Constructor: true})
	t.AddMember(&program.Member{Holder: "java.lang.String", Name: "length", Return: "int"})
	t.AddMember(&program.Member{Holder: "java.lang.String", Name: "isEmpty", Return: "boolean"})
	return t
}

func TestSignatureOf(t *testing.T) {
	d := dictionary(1)

	sig, err := SignatureOf("5", d)
	require.NoError(t, err)
	assert.True(t, sig.IsConstructor())
	assert.Equal(t, "java.lang.String", sig.Holder)
	assert.Equal(t, []string{"char[]", "int", "int"}, sig.Params)
	assert.Equal(t, "void java.lang.String.<init>(char[], int, int)", sig.String())

	_, err = SignatureOf("404", d)
	assert.ErrorIs(t, err, ErrUnknownMethodID)
	_, err = SignatureOf("7", d)
	assert.ErrorIs(t, err, ErrUnknownKlassID)
	_, err = SignatureOf("8", d)
	assert.ErrorIs(t, err, ErrUnknownTypeID)
}

func TestMatchesIsExact(t *testing.T) {
	m := &program.Member{Holder: "a.B", Name: "f", Return: "int", Params: []string{"int"}}
	sig := Signature{Holder: "a.B", Name: "f", Return: "int", Params: []string{"int"}}
	assert.True(t, Matches(m, sig))

	for name, s := range map[string]Signature{
		"holder": {Holder: "a.C", Name: "f", Return: "int", Params: []string{"int"}},
		"name":   {Holder: "a.B", Name: "g", Return: "int", Params: []string{"int"}},
		"return": {Holder: "a.B", Name: "f", Return: "long", Params: []string{"int"}},
		"arity":  {Holder: "a.B", Name: "f", Return: "int", Params: []string{"int", "int"}},
		"param":  {Holder: "a.B", Name: "f", Return: "int", Params: []string{"long"}},
	} {
		assert.False(t, Matches(m, s), name)
	}
	assert.False(t, Matches(nil, sig))

	ctor := &program.Member{Holder: "a.B", Name: "B", Return: "void", Constructor: true}
	assert.True(t, Matches(ctor, Signature{Holder: "a.B", Name: "<init>", Return: "void"}))
}

func TestResolverLookup(t *testing.T) {
	bag := diag.NewBag(100)
	counters := telemetry.New()
	r, err := New(model(), Options{Reporter: diag.BagReporter{Bag: bag}, Counters: counters})
	require.NoError(t, err)
	d := dictionary(1)

	ctor := r.Resolve("5", d)
	require.NotNil(t, ctor)
	assert.True(t, ctor.Constructor)
	assert.Equal(t, "length", r.Resolve("6", d).Name)

	_, err = r.Lookup("9", d)
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = r.Lookup("7", d)
	assert.ErrorIs(t, err, ErrUnknownKlassID)
	_, err = r.Lookup("5", nil)
	assert.ErrorIs(t, err, ErrUnknownMethodID)

	assert.Equal(t, 1, bag.Count(diag.SymNoMatchingMember))
	assert.Equal(t, 1, bag.Count(diag.SymUnknownKlassID))
	var sb strings.Builder
	require.NoError(t, counters.WriteText(&sb))
	assert.Contains(t, sb.String(), "jitscope_unresolved_members_total 2")
}

func TestResolverCachesPerDictionary(t *testing.T) {
	bag := diag.NewBag(100)
	r, err := New(model(), Options{Reporter: diag.BagReporter{Bag: bag}, CacheSize: 8})
	require.NoError(t, err)

	d1 := dictionary(1)
	for range 3 {
		assert.Nil(t, r.Resolve("9", d1))
	}
	assert.Equal(t, 1, bag.Count(diag.SymNoMatchingMember), "negative results are cached")

	assert.Nil(t, r.Resolve("9", dictionary(2)))
	assert.Equal(t, 2, bag.Count(diag.SymNoMatchingMember), "cache is keyed by task")
}

func TestResolverWithoutClass(t *testing.T) {
	r, err := New(program.NewTable(), Options{})
	require.NoError(t, err)
	_, err = r.Lookup("6", dictionary(1))
	assert.ErrorIs(t, err, ErrNoClass)

	_, err = FindMember(nil, Signature{Holder: "x.Y"})
	assert.ErrorIs(t, err, ErrNoClass)
}
