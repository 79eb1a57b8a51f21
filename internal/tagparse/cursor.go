package tagparse

import "strings"

// cursor walks one body line byte by byte.
type cursor struct {
	src string
	off int
}

func (c *cursor) eof() bool {
	return c.off >= len(c.src)
}

func (c *cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.off]
}

func (c *cursor) bump() byte {
	if c.eof() {
		return 0
	}
	b := c.src[c.off]
	c.off++
	return b
}

// eat consumes b if it is next.
func (c *cursor) eat(b byte) bool {
	if !c.eof() && c.src[c.off] == b {
		c.off++
		return true
	}
	return false
}

// eatPrefix consumes p if the remaining input starts with it.
func (c *cursor) eatPrefix(p string) bool {
	if strings.HasPrefix(c.src[c.off:], p) {
		c.off += len(p)
		return true
	}
	return false
}

func (c *cursor) skipSpace() {
	for !c.eof() && isSpace(c.src[c.off]) {
		c.off++
	}
}

// until consumes up to (not including) the next occurrence of stop and
// reports whether stop was found. Without a match the rest of the line is
// consumed.
func (c *cursor) until(stop string) (string, bool) {
	rest := c.src[c.off:]
	idx := strings.Index(rest, stop)
	if idx < 0 {
		c.off = len(c.src)
		return rest, false
	}
	c.off += idx
	return rest[:idx], true
}

// name consumes an element or attribute name.
func (c *cursor) name() string {
	start := c.off
	for !c.eof() {
		b := c.src[c.off]
		if isSpace(b) || b == '>' || b == '/' || b == '=' || b == '<' {
			break
		}
		c.off++
	}
	return c.src[start:c.off]
}

func (c *cursor) rest() string {
	return c.src[c.off:]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
