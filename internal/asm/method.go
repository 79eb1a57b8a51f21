package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"jitscope/internal/diag"
	"jitscope/internal/splitlog"
	"jitscope/internal/telemetry"
)

// Block is a titled run of instructions. The first block of a method may be
// untitled.
type Block struct {
	Title        string
	Instructions []*Instruction
}

// Method is the disassembly of one compiled method.
type Method struct {
	Header []string
	Blocks []*Block
	// Address is taken from a "Decoding compiled method" header.
	Address uint64
	// CompileID and Compiler are taken from a "Compiled method (c2)" header.
	CompileID string
	Compiler  string
	Line      int
}

// Instructions returns every instruction in block order.
func (m *Method) Instructions() []*Instruction {
	var out []*Instruction
	for _, b := range m.Blocks {
		out = append(out, b.Instructions...)
	}
	return out
}

// Len returns the number of instructions.
func (m *Method) Len() int {
	n := 0
	for _, b := range m.Blocks {
		n += len(b.Instructions)
	}
	return n
}

// InstructionAt returns the instruction at addr.
func (m *Method) InstructionAt(addr uint64) *Instruction {
	for _, b := range m.Blocks {
		for _, in := range b.Instructions {
			if in.Address == addr {
				return in
			}
		}
	}
	return nil
}

var (
	decodingHeader = regexp.MustCompile(`^Decoding compiled method (?:0x)?([0-9a-fA-F]+):?`)
	compiledHeader = regexp.MustCompile(`^Compiled method \((\w+)\)\s+\d+\s+(\d+)\b`)
	c2Label        = regexp.MustCompile(`^;;\s*(B\d+:.*)$`)
)

// blockTitles are the section markers the disassembler prints.
var blockTitles = map[string]bool{
	"[Entry Point]":           true,
	"[Verified Entry Point]":  true,
	"[Constants]":             true,
	"[Exception Handler]":     true,
	"[Stub Code]":             true,
	"[Deopt Handler Code]":    true,
	"[Deopt MH Handler Code]": true,
}

// Options configures a Parser.
type Options struct {
	Reporter diag.Reporter
	Counters *telemetry.Counters
	Logger   log.FieldLogger
}

// Parser segments assembly lines into methods.
type Parser struct {
	opts    Options
	methods []*Method
	cur     *Method
	block   *Block
	last    *Instruction
}

// NewParser returns a parser with no open method.
func NewParser(opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Parser{opts: opts}
}

// Parse segments lines into methods.
func Parse(lines []splitlog.Line, opts Options) []*Method {
	p := NewParser(opts)
	for _, l := range lines {
		p.Feed(l.Num, l.Text)
	}
	return p.Methods()
}

// Methods returns every method seen so far.
func (p *Parser) Methods() []*Method {
	return p.methods
}

// Feed consumes one assembly line.
func (p *Parser) Feed(num int, text string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return
	}

	if m := decodingHeader.FindStringSubmatch(s); m != nil {
		addr, _ := strconv.ParseUint(m[1], 16, 64)
		p.header(num, s).Address = addr
		return
	}
	if m := compiledHeader.FindStringSubmatch(s); m != nil {
		cur := p.header(num, s)
		cur.Compiler, cur.CompileID = m[1], m[2]
		return
	}

	if blockTitles[s] {
		p.startBlock(num, s)
		return
	}
	if m := c2Label.FindStringSubmatch(s); m != nil {
		p.startBlock(num, m[1])
		return
	}

	switch {
	case strings.HasPrefix(s, ";") || strings.HasPrefix(s, "#"):
		c := strings.TrimSpace(strings.TrimPrefix(s, ";"))
		if p.last != nil {
			p.last.Comments = append(p.last.Comments, c)
			return
		}
		p.method(num).Header = append(p.method(num).Header, s)
		return
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		in, err := ParseInstruction(s)
		if err != nil {
			p.unparsed(num, s, err)
			return
		}
		in.Line = num
		m := p.method(num)
		if p.block == nil {
			p.block = &Block{}
			m.Blocks = append(m.Blocks, p.block)
		}
		p.block.Instructions = append(p.block.Instructions, in)
		p.last = in
		return
	}

	// Anything else before the first instruction is header text.
	if p.cur == nil || p.cur.Len() == 0 {
		p.method(num).Header = append(p.method(num).Header, s)
		return
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "---") {
		return
	}
	p.unparsed(num, s, ErrNotInstruction)
}

// header starts a new method unless the current one has no instructions
// yet, in which case both header lines describe the same method.
func (p *Parser) header(num int, s string) *Method {
	if p.cur == nil || p.cur.Len() > 0 {
		p.cur = &Method{Line: num}
		p.methods = append(p.methods, p.cur)
		p.block, p.last = nil, nil
		p.opts.Counters.AssemblyMethod()
	}
	p.cur.Header = append(p.cur.Header, s)
	return p.cur
}

func (p *Parser) method(num int) *Method {
	if p.cur == nil {
		p.cur = &Method{Line: num}
		p.methods = append(p.methods, p.cur)
		p.opts.Counters.AssemblyMethod()
	}
	return p.cur
}

func (p *Parser) startBlock(num int, title string) {
	m := p.method(num)
	p.block = &Block{Title: title}
	m.Blocks = append(m.Blocks, p.block)
	p.last = nil
}

func (p *Parser) unparsed(num int, s string, err error) {
	p.opts.Counters.SkippedLine()
	diag.Warn(p.opts.Reporter, diag.AsmLineUnparsed, diag.Location{Line: num},
		fmt.Sprintf("%v: %q", err, s))
	p.opts.Logger.WithField("line", num).Debugf("unparsed assembly: %s", s)
}
