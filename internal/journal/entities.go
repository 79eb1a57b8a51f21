package journal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadEntity is returned when an attribute value references an entity the
// log format never produces.
var ErrBadEntity = errors.New("unknown entity")

var namedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// DecodeEntities resolves XML entities and numeric character references.
func DecodeEntities(s string) (string, error) {
	if !strings.Contains(s, "&") {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '&' {
			sb.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return s, fmt.Errorf("%w: unterminated reference at offset %d", ErrBadEntity, i)
		}
		ref := s[i+1 : i+end]
		repl, err := resolveEntity(ref)
		if err != nil {
			return s, err
		}
		sb.WriteString(repl)
		i += end + 1
	}
	return sb.String(), nil
}

// MustDecodeEntities decodes s, returning it unchanged when it is malformed.
func MustDecodeEntities(s string) string {
	out, err := DecodeEntities(s)
	if err != nil {
		return s
	}
	return out
}

func resolveEntity(ref string) (string, error) {
	if v, ok := namedEntities[ref]; ok {
		return v, nil
	}
	if strings.HasPrefix(ref, "#") {
		num := ref[1:]
		base := 10
		if strings.HasPrefix(num, "x") || strings.HasPrefix(num, "X") {
			num = num[1:]
			base = 16
		}
		code, err := strconv.ParseInt(num, base, 32)
		if err != nil || code < 0 {
			return "", fmt.Errorf("%w: &%s;", ErrBadEntity, ref)
		}
		return string(rune(code)), nil
	}
	return "", fmt.Errorf("%w: &%s;", ErrBadEntity, ref)
}

var entityEncoder = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
)

// EncodeEntities escapes the characters DecodeEntities resolves.
func EncodeEntities(s string) string {
	return entityEncoder.Replace(s)
}
