package program

import (
	"strings"

	"jitscope/internal/journal"
)

// DeclaredMember builds the member a method tag declares, looking types up
// in the tag's own task dictionary. It reports false when any referenced id
// is missing from the dictionary.
func DeclaredMember(method *journal.Tag, dict *journal.Dictionary) (*Member, bool) {
	if method == nil || dict == nil {
		return nil, false
	}
	klass := dict.Klass(method.Attr(journal.AttrHolder))
	if klass == nil {
		return nil, false
	}
	holder := TypeName(klass.Attr(journal.AttrName))

	ret, ok := dict.TypeOrKlassName(method.Attr(journal.AttrReturn))
	if !ok {
		return nil, false
	}

	var params []string
	if args := strings.TrimSpace(method.Attr(journal.AttrArguments)); args != "" {
		for _, id := range strings.Fields(args) {
			name, ok := dict.TypeOrKlassName(id)
			if !ok {
				return nil, false
			}
			params = append(params, TypeName(name))
		}
	}

	name := method.Attr(journal.AttrName)
	m := &Member{
		Holder: holder,
		Name:   name,
		Return: TypeName(ret),
		Params: params,
	}
	if name == journal.ConstructorName {
		m.Constructor = true
		m.Name = SimpleName(holder)
	}
	return m, true
}

// FromTasks derives a model from every method declared in the given tasks.
// Each declaration is interpreted with its own task's dictionary.
func FromTasks(tasks []*journal.Task) *Table {
	t := NewTable()
	for _, task := range tasks {
		dict := task.Dictionary()
		task.Walk(func(tag *journal.Tag) bool {
			if tag.Name() != journal.TagMethod {
				return true
			}
			if m, ok := DeclaredMember(tag, dict); ok {
				t.AddMember(m)
			}
			return true
		})
	}
	return t
}

// AddRefs adds members for method references that no task declared, such as
// compilations whose task journal is missing from the log.
func (t *Table) AddRefs(refs []MethodRef) {
	for _, r := range refs {
		if r.Find(t) != nil {
			continue
		}
		t.AddMember(&Member{
			Holder:      r.Class,
			Name:        r.MemberName(),
			Return:      r.Return,
			Params:      r.Params,
			Constructor: r.IsConstructor(),
		})
	}
}
