// Package tagparse turns compilation log body lines into journal tags.
//
// The parser keeps an explicit stack of open elements, so an element may be
// opened on one line and closed thousands of lines later. A line may also
// hold several complete elements. Malformed elements are recorded and
// discarded without disturbing their parents or siblings.
package tagparse

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/telemetry"
)

// containers are wrapper elements that are never materialised; their
// children are treated as top-level elements.
var containers = map[string]bool{
	"hotspot_log":             true,
	journal.TagCompilationLog: true,
	"tty":                     true,
}

// Element is a completed top-level element.
type Element struct {
	Tag *journal.Tag
	// Task is set when the element is a task journal.
	Task *journal.Task
}

// Malformed records an element that could not be parsed.
type Malformed struct {
	Line int
	Name string
	Text string
	Err  error
}

// Options configures a Parser.
type Options struct {
	Reporter diag.Reporter
	Counters *telemetry.Counters
	Logger   log.FieldLogger
}

type frame struct {
	tag  *journal.Tag
	task *journal.Task
	// discard marks an element whose opening tag was malformed; it still
	// balances its closing tag but is not attached to the tree.
	discard bool
}

// Parser holds the open element stack across lines.
type Parser struct {
	opts      Options
	stack     []frame
	serial    uint64
	line      int
	tasks     []*journal.Task
	malformed []Malformed
	done      []Element
}

// New returns a parser with an empty stack.
func New(opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Parser{opts: opts}
}

// Depth returns the number of open elements.
func (p *Parser) Depth() int {
	return len(p.stack)
}

// Tasks returns every task closed so far, in closing order, including tasks
// nested inside other elements.
func (p *Parser) Tasks() []*journal.Task {
	return p.tasks
}

// Malformed returns every discarded element.
func (p *Parser) Malformed() []Malformed {
	return p.malformed
}

// Feed parses one body line and returns the top-level elements it completed.
func (p *Parser) Feed(num int, text string) []Element {
	p.line = num
	p.done = p.done[:0]
	c := &cursor{src: text}
	for {
		c.skipSpace()
		if c.eof() {
			break
		}
		if c.peek() != '<' {
			txt, _ := c.until("<")
			p.text(txt)
			continue
		}
		p.markup(c)
	}
	if len(p.done) == 0 {
		return nil
	}
	out := make([]Element, len(p.done))
	copy(out, p.done)
	return out
}

// ParseLine is Feed for callers expecting at most one completed element per
// line. It returns the last element the line completed, or nil.
func (p *Parser) ParseLine(num int, text string) *journal.Tag {
	els := p.Feed(num, text)
	if len(els) == 0 {
		return nil
	}
	return els[len(els)-1].Tag
}

// Finish closes every element still open at the end of the log and returns
// the top-level elements that closing produced.
func (p *Parser) Finish() []Element {
	p.done = p.done[:0]
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		diag.Warn(p.opts.Reporter, diag.TagUnclosedAtEOF,
			diag.Location{Line: top.tag.Line(), CompileID: top.tag.Attr(journal.AttrCompileID)},
			fmt.Sprintf("<%s> never closed", top.tag.Name()))
		p.pop()
	}
	out := make([]Element, len(p.done))
	copy(out, p.done)
	return out
}

func (p *Parser) markup(c *cursor) {
	switch {
	case c.eatPrefix("</"):
		name := c.name()
		c.skipSpace()
		if !c.eat('>') {
			p.bad(name, c.rest(), errors.New("unterminated closing tag"))
			c.until(">")
			c.eat('>')
		}
		p.close(name)
	case c.eatPrefix("<?"):
		c.until("?>")
		c.eatPrefix("?>")
	case c.eatPrefix("<!--"):
		c.until("-->")
		c.eatPrefix("-->")
	case c.eatPrefix("<![CDATA["):
		txt, _ := c.until("]]>")
		c.eatPrefix("]]>")
		p.text(txt)
	default:
		c.bump()
		p.open(c)
	}
}

func (p *Parser) open(c *cursor) {
	start := c.off
	name := c.name()
	if name == "" {
		p.bad("", c.src[start:], errors.New("empty element name"))
		c.until("<")
		return
	}

	attrs := make(map[string]string)
	var attrErr error
	selfClosing := false
	for {
		c.skipSpace()
		if c.eof() {
			p.bad(name, c.src[start:], errors.New("unterminated element"))
			return
		}
		if c.eatPrefix("/>") {
			selfClosing = true
			break
		}
		if c.eat('>') {
			break
		}
		key := c.name()
		if key == "" {
			p.bad(name, c.src[start:], fmt.Errorf("unexpected %q in attribute list", c.peek()))
			c.until("<")
			return
		}
		if !c.eat('=') {
			// Valueless attribute; keep the key so the element stays usable.
			attrs[key] = ""
			continue
		}
		quote := c.bump()
		if quote != '\'' && quote != '"' {
			p.bad(name, c.src[start:], fmt.Errorf("attribute %s: missing quote", key))
			c.until("<")
			return
		}
		raw, ok := c.until(string(quote))
		if !ok {
			p.bad(name, c.src[start:], fmt.Errorf("attribute %s: unterminated quote", key))
			return
		}
		c.bump()
		val, err := journal.DecodeEntities(raw)
		if err != nil && attrErr == nil {
			attrErr = fmt.Errorf("attribute %s: %w", key, err)
		}
		attrs[key] = val
	}

	if containers[name] {
		return
	}

	tag := journal.NewTag(name, attrs, selfClosing)
	tag.SetLine(p.line)

	if attrErr != nil {
		code := diag.TagMalformed
		if errors.Is(attrErr, journal.ErrBadEntity) {
			code = diag.TagBadEntity
		}
		p.record(code, name, c.src[start:c.off], attrErr)
		if !selfClosing {
			p.stack = append(p.stack, frame{tag: tag, discard: true})
		}
		return
	}

	fr := frame{tag: tag}
	if name == journal.TagTask {
		p.serial++
		fr.task = journal.NewTask(tag, p.serial)
	}
	if selfClosing {
		p.complete(fr)
		return
	}
	p.stack = append(p.stack, fr)
}

func (p *Parser) close(name string) {
	if containers[name] {
		return
	}
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].tag.Name() != name {
			continue
		}
		for len(p.stack)-1 > i {
			top := p.stack[len(p.stack)-1]
			diag.Warn(p.opts.Reporter, diag.TagMalformed, diag.Location{Line: p.line},
				fmt.Sprintf("<%s> implicitly closed by </%s>", top.tag.Name(), name))
			p.pop()
		}
		p.pop()
		return
	}
	diag.Warn(p.opts.Reporter, diag.TagUnbalancedClose, diag.Location{Line: p.line},
		fmt.Sprintf("</%s> without open element", name))
}

func (p *Parser) pop() {
	fr := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if fr.discard {
		return
	}
	p.complete(fr)
}

// complete attaches a finished element to its parent, or hands it out when
// it is top-level.
func (p *Parser) complete(fr frame) {
	if fr.task != nil {
		fr.task.Seal()
		p.tasks = append(p.tasks, fr.task)
		p.opts.Counters.Task()
	}
	if parent := p.parent(); parent != nil {
		parent.AddChild(fr.tag)
		return
	}
	if p.inDiscarded() {
		return
	}
	p.done = append(p.done, Element{Tag: fr.tag, Task: fr.task})
}

// parent returns the innermost open element that is being kept.
func (p *Parser) parent() *journal.Tag {
	if len(p.stack) == 0 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	if top.discard {
		return nil
	}
	return top.tag
}

func (p *Parser) inDiscarded() bool {
	return len(p.stack) > 0 && p.stack[len(p.stack)-1].discard
}

func (p *Parser) text(s string) {
	if s == "" {
		return
	}
	if parent := p.parent(); parent != nil {
		parent.AppendText(s)
		return
	}
	if p.inDiscarded() {
		return
	}
	diag.Info(p.opts.Reporter, diag.TagOrphanText, diag.Location{Line: p.line}, "text outside any element")
}

func (p *Parser) bad(name, text string, err error) {
	p.record(diag.TagMalformed, name, text, err)
}

func (p *Parser) record(code diag.Code, name, text string, err error) {
	p.malformed = append(p.malformed, Malformed{Line: p.line, Name: name, Text: text, Err: err})
	p.opts.Counters.SkippedLine()
	diag.Warn(p.opts.Reporter, code, diag.Location{Line: p.line}, fmt.Sprintf("<%s>: %v", name, err))
	p.opts.Logger.WithFields(log.Fields{"line": p.line, "tag": name}).Debugf("discarding malformed tag: %v", err)
}
