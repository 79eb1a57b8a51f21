package program

import (
	"sort"
	"sync"
)

// Table is an in-memory Model. It is safe for concurrent reads once
// populated; writes are serialised.
type Table struct {
	mu      sync.RWMutex
	classes map[string]*MetaClass
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{classes: make(map[string]*MetaClass)}
}

// MetaClass implements Model.
func (t *Table) MetaClass(fqName string) *MetaClass {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.classes[fqName]
}

// Class returns the class named fqName, creating it when absent.
func (t *Table) Class(fqName string) *MetaClass {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.classes[fqName]
	if !ok {
		c = &MetaClass{Name: fqName}
		t.classes[fqName] = c
	}
	return c
}

// AddMember adds m to its holder class unless a member with the same key is
// already present. It returns the member stored in the table.
func (t *Table) AddMember(m *Member) *Member {
	c := t.Class(m.Holder)
	t.mu.Lock()
	defer t.mu.Unlock()
	key := m.Key()
	for _, existing := range c.Members {
		if existing.Key() == key {
			return existing
		}
	}
	c.Members = append(c.Members, m)
	return m
}

// SetBytecode attaches bytecode to member m of its holder class.
func (t *Table) SetBytecode(m *Member, bc *MemberBytecode) {
	c := t.Class(m.Holder)
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Bytecode == nil {
		c.Bytecode = &ClassBytecode{Members: make(map[string]*MemberBytecode)}
	}
	c.Bytecode.Members[m.Key()] = bc
}

// Classes returns every class name, sorted.
func (t *Table) Classes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.classes))
	for n := range t.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of classes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.classes)
}

// Layered consults each model in order and returns the first class found.
// A manifest layered over a log-derived model lets the manifest supply
// bytecode for the classes it knows.
type Layered []Model

// MetaClass implements Model.
func (l Layered) MetaClass(fqName string) *MetaClass {
	for _, m := range l {
		if m == nil {
			continue
		}
		if c := m.MetaClass(fqName); c != nil {
			return c
		}
	}
	return nil
}
