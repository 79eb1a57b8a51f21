package program

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadDescriptor is returned for malformed JVM descriptors.
var ErrBadDescriptor = errors.New("bad descriptor")

var baseTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'V': "void",
	'Z': "boolean",
}

// TypeName normalises a type name as the log writes it into the dotted form
// the program model uses: "java/lang/String" becomes "java.lang.String",
// "[I" becomes "int[]" and "[Ljava/lang/Object;" becomes "java.lang.Object[]".
func TypeName(raw string) string {
	if !strings.HasPrefix(raw, "[") {
		return strings.ReplaceAll(raw, "/", ".")
	}
	var sb strings.Builder
	if rest := decodeType(raw, &sb); rest != "" || sb.Len() == 0 {
		return strings.ReplaceAll(raw, "/", ".")
	}
	return sb.String()
}

// decodeType writes the first type of signature and returns the rest.
func decodeType(signature string, sb *strings.Builder) string {
	var i, dims int
	for i = 0; i < len(signature) && signature[i] == '['; i++ {
		dims++
	}
	if i >= len(signature) {
		return ""
	}

	typeChar := signature[i]
	i++

	if typeChar == 'L' {
		end := strings.IndexByte(signature[i:], ';')
		if end < 0 {
			return ""
		}
		sb.WriteString(strings.ReplaceAll(signature[i:i+end], "/", "."))
		i += end + 1
	} else if name, ok := baseTypes[typeChar]; ok {
		sb.WriteString(name)
	} else {
		return ""
	}

	for ; dims > 0; dims-- {
		sb.WriteString("[]")
	}
	return signature[i:]
}

// ParseDescriptor splits a method descriptor such as "(ILjava/lang/String;)V"
// into parameter and return type names.
func ParseDescriptor(desc string) (params []string, ret string, err error) {
	end := strings.IndexByte(desc, ')')
	if end < 0 || !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	left := desc[1:end]
	for left != "" {
		var sb strings.Builder
		next := decodeType(left, &sb)
		if sb.Len() == 0 || next == left {
			return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
		}
		params = append(params, sb.String())
		left = next
	}
	var sb strings.Builder
	if rest := decodeType(desc[end+1:], &sb); rest != "" || sb.Len() == 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	return params, sb.String(), nil
}

// MethodRef is a method named the way task_queued, nmethod and task
// attributes name it: "java/lang/String hashCode ()I".
type MethodRef struct {
	Class  string
	Name   string
	Params []string
	Return string
}

// ParseMethodRef parses a method attribute value.
func ParseMethodRef(s string) (MethodRef, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return MethodRef{}, fmt.Errorf("%w: method %q", ErrBadDescriptor, s)
	}
	params, ret, err := ParseDescriptor(fields[2])
	if err != nil {
		return MethodRef{}, err
	}
	return MethodRef{
		Class:  TypeName(fields[0]),
		Name:   fields[1],
		Params: params,
		Return: ret,
	}, nil
}

// IsConstructor reports whether the reference names an instance initialiser.
func (r MethodRef) IsConstructor() bool {
	return r.Name == "<init>"
}

// MemberName returns the name a program model member carries for r.
func (r MethodRef) MemberName() string {
	if r.IsConstructor() {
		return SimpleName(r.Class)
	}
	return r.Name
}

// Find looks r up in m with exact matching.
func (r MethodRef) Find(m Model) *Member {
	if m == nil {
		return nil
	}
	mc := m.MetaClass(r.Class)
	if mc == nil {
		return nil
	}
	name := r.MemberName()
	for _, mem := range mc.Members {
		if mem.Name != name || mem.Holder != r.Class || mem.Return != r.Return {
			continue
		}
		if equalTypes(mem.Params, r.Params) {
			return mem
		}
	}
	return nil
}

func (r MethodRef) String() string {
	return r.Class + "." + r.Name + "(" + strings.Join(r.Params, ", ") + ")"
}

func equalTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
