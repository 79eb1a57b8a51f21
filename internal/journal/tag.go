package journal

import (
	"sort"
	"strings"
)

// Tag is one element of the compilation log: a name, its attributes, the
// elements nested inside it and any free text it carried.
//
// Tags are assembled by the tag parser and must be treated as read-only once
// their closing line has been processed.
type Tag struct {
	name        string
	attrs       map[string]string
	children    []*Tag
	text        string
	hasText     bool
	selfClosing bool
	line        int
}

// NewTag creates a tag. attrs is owned by the tag afterwards.
func NewTag(name string, attrs map[string]string, selfClosing bool) *Tag {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Tag{name: name, attrs: attrs, selfClosing: selfClosing}
}

// AddChild appends child in document order. Build-time only.
func (t *Tag) AddChild(child *Tag) {
	if t == nil || child == nil {
		return
	}
	t.children = append(t.children, child)
}

// AppendText adds free text content. Build-time only.
func (t *Tag) AppendText(s string) {
	if t == nil {
		return
	}
	if t.hasText && s != "" {
		t.text += "\n"
	}
	t.text += s
	t.hasText = true
}

// SetLine records the log line the tag was opened on. Build-time only.
func (t *Tag) SetLine(n int) {
	if t != nil {
		t.line = n
	}
}

// Line returns the 1-based log line the tag was opened on, or 0.
func (t *Tag) Line() int {
	if t == nil {
		return 0
	}
	return t.line
}

// Name returns the element name.
func (t *Tag) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Attr returns the attribute value, or "" when absent.
func (t *Tag) Attr(key string) string {
	if t == nil {
		return ""
	}
	return t.attrs[key]
}

// LookupAttr returns the attribute value and whether it was present.
func (t *Tag) LookupAttr(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.attrs[key]
	return v, ok
}

// Attrs returns a copy of the attribute map.
func (t *Tag) Attrs() map[string]string {
	if t == nil {
		return nil
	}
	out := make(map[string]string, len(t.attrs))
	for k, v := range t.attrs {
		out[k] = v
	}
	return out
}

// AttrKeys returns the attribute names sorted.
func (t *Tag) AttrKeys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.attrs))
	for k := range t.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Children returns the nested elements in document order.
// The returned slice must not be modified.
func (t *Tag) Children() []*Tag {
	if t == nil {
		return nil
	}
	return t.children
}

// NamedChildren returns direct children with the given name.
func (t *Tag) NamedChildren(name string) []*Tag {
	if t == nil {
		return nil
	}
	var out []*Tag
	for _, c := range t.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// FirstNamedChild returns the first direct child with the given name, or nil.
func (t *Tag) FirstNamedChild(name string) *Tag {
	if t == nil {
		return nil
	}
	for _, c := range t.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// NamedChildrenWithAttr returns direct children named name whose attribute key equals value.
func (t *Tag) NamedChildrenWithAttr(name, key, value string) []*Tag {
	if t == nil {
		return nil
	}
	var out []*Tag
	for _, c := range t.children {
		if c.name == name && c.attrs[key] == value {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every element beneath t named name, depth first.
func (t *Tag) Descendants(name string) []*Tag {
	var out []*Tag
	t.Walk(func(d *Tag) bool {
		if d != t && d.name == name {
			out = append(out, d)
		}
		return true
	})
	return out
}

// Walk visits t and its descendants depth first. Returning false from fn
// skips the children of the visited tag.
func (t *Tag) Walk(fn func(*Tag) bool) {
	if t == nil {
		return
	}
	stack := []*Tag{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i])
		}
	}
}

// Text returns the free text carried by the tag.
func (t *Tag) Text() (string, bool) {
	if t == nil {
		return "", false
	}
	return t.text, t.hasText
}

// SelfClosing reports whether the tag was written as <name/>.
func (t *Tag) SelfClosing() bool {
	return t != nil && t.selfClosing
}

// OpenString renders the opening element, attributes sorted by name.
func (t *Tag) OpenString() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(t.name)
	for _, k := range t.AttrKeys() {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteString("='")
		sb.WriteString(EncodeEntities(t.attrs[k]))
		sb.WriteByte('\'')
	}
	if t.selfClosing {
		sb.WriteByte('/')
	}
	sb.WriteByte('>')
	return sb.String()
}

// String renders t and its subtree back into log markup.
func (t *Tag) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	t.render(&sb, 0)
	return sb.String()
}

func (t *Tag) render(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteString(t.OpenString())
	sb.WriteByte('\n')
	if t.selfClosing {
		return
	}
	if t.hasText {
		sb.WriteString(t.text)
		sb.WriteByte('\n')
	}
	for _, c := range t.children {
		c.render(sb, depth+1)
	}
	sb.WriteString(indent)
	sb.WriteString("</")
	sb.WriteString(t.name)
	sb.WriteString(">\n")
}
