// Package asm parses the disassembly text HotSpot prints for compiled
// methods into methods, blocks and instructions.
//
// The text is pre-rendered by the JVM's disassembler plugin; this package
// never decodes machine code itself.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotInstruction is returned for a line without an address field.
var ErrNotInstruction = errors.New("not an instruction")

// Instruction is one disassembled native instruction.
type Instruction struct {
	Address  uint64
	Modifier string
	Mnemonic string
	Operands []string
	// Comments are the annotation lines emitted with the instruction, the
	// leading ';' removed.
	Comments []string
	Line     int
}

// String renders the instruction the way the disassembler printed it.
func (in *Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "0x%016x: ", in.Address)
	if in.Modifier != "" {
		sb.WriteString(in.Modifier)
		sb.WriteByte(' ')
	}
	sb.WriteString(in.Mnemonic)
	if len(in.Operands) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(in.Operands, ","))
	}
	return sb.String()
}

// IsCall reports whether the mnemonic is a call.
func (in *Instruction) IsCall() bool {
	return strings.HasPrefix(in.Mnemonic, "call") || in.Mnemonic == "bl" || in.Mnemonic == "blr"
}

// HasComment reports whether any comment line contains s.
func (in *Instruction) HasComment(s string) bool {
	for _, c := range in.Comments {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}

// modifiers are instruction prefixes printed before the mnemonic.
var modifiers = map[string]bool{
	"lock":    true,
	"rep":     true,
	"repe":    true,
	"repz":    true,
	"repne":   true,
	"repnz":   true,
	"data16":  true,
	"data32":  true,
	"addr16":  true,
	"addr32":  true,
	"rex":     true,
	"rex.W":   true,
	"rex.WB":  true,
	"rex.WR":  true,
	"rex.WRB": true,
	"notrack": true,
	"bnd":     true,
	"cs":      true,
	"ds":      true,
	"es":      true,
	"fs":      true,
	"gs":      true,
	"ss":      true,
}

// ParseInstruction parses "0x..: [modifier] mnemonic operands [; comment]".
func ParseInstruction(text string) (*Instruction, error) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, ErrNotInstruction
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return nil, ErrNotInstruction
	}
	addr, err := strconv.ParseUint(s[2:colon], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q", ErrNotInstruction, s[:colon])
	}
	in := &Instruction{Address: addr}

	body := s[colon+1:]
	if i := strings.IndexByte(body, ';'); i >= 0 {
		if c := strings.TrimSpace(body[i+1:]); c != "" {
			in.Comments = append(in.Comments, c)
		}
		body = body[:i]
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no mnemonic at 0x%x", ErrNotInstruction, addr)
	}
	i := 0
	if len(fields) > 1 && modifiers[fields[0]] {
		in.Modifier = fields[0]
		i = 1
	}
	in.Mnemonic = fields[i]
	rest := strings.TrimSpace(body)
	// Skip past the modifier and mnemonic in the raw text so operand spacing
	// survives ("QWORD PTR [rsp+0x8]").
	for j := 0; j <= i; j++ {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[j]))
	}
	in.Operands = SplitOperands(rest)
	return in, nil
}

// SplitOperands splits an operand list on commas that are not nested inside
// (), [] or {}.
func SplitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
