package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"jitscope/internal/chain"
	"jitscope/internal/compile"
	"jitscope/internal/correlate"
)

// WriteTree prints the call tree rooted at root, one site per line:
//
//	+ inlined, - not inlined, v virtual call
//
// followed by the caller bci and the compiler's reason.
func WriteTree(w io.Writer, root *chain.Node, verbose bool) error {
	if root == nil {
		_, err := io.WriteString(w, "(no call tree)\n")
		return err
	}
	var b strings.Builder
	if c := root.Compilation(); c != nil {
		b.WriteString(titleStyle.Render(compilationTitle(c)))
		b.WriteByte('\n')
	}
	root.Walk(func(n *chain.Node) bool {
		b.WriteString(strings.Repeat("  ", n.Depth()))
		b.WriteString(marker(n))
		b.WriteByte(' ')
		b.WriteString(n.Label())
		if !n.IsRoot() {
			fmt.Fprintf(&b, " @%d", n.CallerBCI)
		}
		if n.Reason != "" {
			b.WriteString(" ")
			b.WriteString(color.New(color.Faint).Sprintf("(%s)", n.Reason))
		}
		if verbose && n.Tooltip != "" {
			b.WriteString("  [")
			b.WriteString(strings.ReplaceAll(n.Tooltip, "\n", "; "))
			b.WriteByte(']')
		}
		b.WriteByte('\n')
		return true
	})
	_, err := io.WriteString(w, b.String())
	return err
}

func marker(n *chain.Node) string {
	switch {
	case n.IsRoot():
		return "*"
	case n.Virtual:
		return color.CyanString("v")
	case n.Inlined:
		return color.GreenString("+")
	default:
		return color.YellowString("-")
	}
}

func compilationTitle(c *compile.Compilation) string {
	title := fmt.Sprintf("compile %s %s", c.ID, methodName(c))
	if c.Compiler != "" {
		title += fmt.Sprintf(" [%s level %d]", c.Compiler, c.Level)
	}
	return title
}

// WriteAssembly prints the disassembly of c, each instruction followed by
// the bytecode scope the correlator found for it. Instructions whose bci lies
// outside the member's bytecode are marked "!".
func WriteAssembly(w io.Writer, c *compile.Compilation, res *correlate.Result) error {
	if c == nil || c.Assembly == nil {
		_, err := io.WriteString(w, "(no assembly)\n")
		return err
	}
	var notes []correlate.Annotation
	if res != nil {
		notes = res.Annotations
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(compilationTitle(c)))
	b.WriteByte('\n')
	i := 0
	for _, blk := range c.Assembly.Blocks {
		if blk.Title != "" {
			b.WriteString(color.New(color.Bold).Sprint(blk.Title))
			b.WriteByte('\n')
		}
		for _, in := range blk.Instructions {
			mark := " "
			note := ""
			if i < len(notes) {
				a := notes[i]
				if a.Mismatch {
					mark = color.RedString("!")
				}
				note = scopeNote(a)
			}
			i++
			fmt.Fprintf(&b, "%s %s", mark, in.String())
			if note != "" {
				b.WriteString("  ")
				b.WriteString(color.New(color.Faint).Sprint("; " + note))
			}
			b.WriteByte('\n')
		}
	}
	if res != nil && len(res.VirtualCalls) > 0 {
		b.WriteString(titleStyle.Render("optimized virtual calls"))
		b.WriteByte('\n')
		for _, vc := range res.VirtualCalls {
			fmt.Fprintf(&b, "  0x%x %s -> %s\n", vc.Instruction.Address, vc.Caller, vc.Callee)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func scopeNote(a correlate.Annotation) string {
	var parts []string
	if a.HasScope() {
		parts = append(parts, a.Scopes[0].String())
	}
	if a.Bytecode != "" {
		parts = append(parts, "*"+a.Bytecode)
	}
	if a.Relocation != "" {
		r := "{" + a.Relocation + "}"
		if a.Callee != "" {
			r += " " + a.Callee
		}
		parts = append(parts, r)
	}
	return strings.Join(parts, " ")
}
