package journal

// Task is the journal of one compilation attempt: the <task> element plus
// the symbol dictionary declared inside it.
type Task struct {
	*Tag
	dict *Dictionary
}

// NewTask wraps an open task tag. The dictionary is built by Seal once the
// closing tag has been seen.
func NewTask(tag *Tag, serial uint64) *Task {
	return &Task{Tag: tag, dict: newDictionary(serial)}
}

// Seal builds the parse dictionary from every method, klass and type element
// beneath the task.
func (t *Task) Seal() {
	t.Walk(func(d *Tag) bool {
		t.dict.record(d)
		return true
	})
}

// Dictionary returns the task-scoped parse dictionary.
func (t *Task) Dictionary() *Dictionary {
	if t == nil {
		return nil
	}
	return t.dict
}

// CompileID returns the compile_id attribute.
func (t *Task) CompileID() string {
	return t.Attr(AttrCompileID)
}

// IsStale reports whether the task was superseded before completion.
func (t *Task) IsStale() bool {
	if t == nil {
		return false
	}
	for _, f := range t.NamedChildren(TagFailure) {
		if IsStaleReason(f.Attr(AttrReason)) {
			return true
		}
	}
	return false
}

// FailureReason returns the reason of the first failure child, if any.
func (t *Task) FailureReason() (string, bool) {
	f := t.FirstNamedChild(TagFailure)
	if f == nil {
		return "", false
	}
	return f.Attr(AttrReason), true
}

// IsStaleReason reports whether reason is one of the stale task sentinels.
func IsStaleReason(reason string) bool {
	for _, s := range StaleTaskReasons {
		if reason == s {
			return true
		}
	}
	return false
}

// Dictionary maps the numeric ids declared inside one task to the tags that
// declared them. Ids are meaningless outside the owning task.
type Dictionary struct {
	serial  uint64
	methods map[string]*Tag
	klasses map[string]*Tag
	types   map[string]*Tag
}

func newDictionary(serial uint64) *Dictionary {
	return &Dictionary{
		serial:  serial,
		methods: make(map[string]*Tag),
		klasses: make(map[string]*Tag),
		types:   make(map[string]*Tag),
	}
}

// NewDictionary builds a standalone dictionary from the tags beneath root.
func NewDictionary(serial uint64, root *Tag) *Dictionary {
	d := newDictionary(serial)
	root.Walk(func(t *Tag) bool {
		d.record(t)
		return true
	})
	return d
}

func (d *Dictionary) record(t *Tag) {
	id, ok := t.LookupAttr(AttrID)
	if !ok {
		return
	}
	switch t.Name() {
	case TagMethod:
		d.methods[id] = t
	case TagKlass:
		d.klasses[id] = t
	case TagType:
		d.types[id] = t
	}
}

// Serial identifies the owning task within one run.
func (d *Dictionary) Serial() uint64 {
	if d == nil {
		return 0
	}
	return d.serial
}

// Method returns the method tag declared with id.
func (d *Dictionary) Method(id string) *Tag {
	if d == nil {
		return nil
	}
	return d.methods[id]
}

// Klass returns the klass tag declared with id.
func (d *Dictionary) Klass(id string) *Tag {
	if d == nil {
		return nil
	}
	return d.klasses[id]
}

// Type returns the primitive type tag declared with id.
func (d *Dictionary) Type(id string) *Tag {
	if d == nil {
		return nil
	}
	return d.types[id]
}

// TypeOrKlassName returns the raw name for an id that may denote either a
// primitive type or a klass.
func (d *Dictionary) TypeOrKlassName(id string) (string, bool) {
	if t := d.Type(id); t != nil {
		return t.Attr(AttrName), true
	}
	if k := d.Klass(id); k != nil {
		return k.Attr(AttrName), true
	}
	return "", false
}

// Methods returns the number of method declarations.
func (d *Dictionary) Methods() int {
	if d == nil {
		return 0
	}
	return len(d.methods)
}

// Klasses returns the number of klass declarations.
func (d *Dictionary) Klasses() int {
	if d == nil {
		return 0
	}
	return len(d.klasses)
}

// MethodIDs returns every declared method id.
func (d *Dictionary) MethodIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.methods))
	for id := range d.methods {
		ids = append(ids, id)
	}
	return ids
}
