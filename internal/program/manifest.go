package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrManifest wraps symbol manifest loading failures.
var ErrManifest = errors.New("symbol manifest")

// The manifest is a TOML description of classes for programs whose class
// files are not at hand:
//
//	[[class]]
//	name = "com.example.Parser"
//
//	  [[class.member]]
//	  name = "parse"
//	  return = "int"
//	  params = ["java.lang.String"]
//	  size = 42
//	  lines = [[0, 10], [12, 11]]
//
//	    [[class.member.exception]]
//	    start = 0
//	    end = 20
//	    handler = 24
//	    type = "java.lang.NumberFormatException"
type manifestFile struct {
	Class []manifestClass `toml:"class"`
}

type manifestClass struct {
	Name   string           `toml:"name"`
	Member []manifestMember `toml:"member"`
}

type manifestMember struct {
	Name        string              `toml:"name"`
	Return      string              `toml:"return"`
	Params      []string            `toml:"params"`
	Constructor bool                `toml:"constructor"`
	Static      bool                `toml:"static"`
	Size        int                 `toml:"size"`
	Lines       [][2]int            `toml:"lines"`
	Bytecode    []manifestInsn      `toml:"bytecode"`
	Exception   []manifestException `toml:"exception"`
}

type manifestInsn struct {
	Offset   int    `toml:"offset"`
	Opcode   string `toml:"opcode"`
	Operands string `toml:"operands"`
}

type manifestException struct {
	Start   int    `toml:"start"`
	End     int    `toml:"end"`
	Handler int    `toml:"handler"`
	Type    string `toml:"type"`
}

// LoadManifest reads a TOML symbol manifest into a new Table.
func LoadManifest(path string) (*Table, error) {
	var mf manifestFile
	if _, err := toml.DecodeFile(path, &mf); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrManifest, path, err)
	}
	return buildManifest(path, mf)
}

// ParseManifest decodes manifest text into a new Table.
func ParseManifest(data string) (*Table, error) {
	var mf manifestFile
	if _, err := toml.Decode(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	return buildManifest("<inline>", mf)
}

func buildManifest(path string, mf manifestFile) (*Table, error) {
	t := NewTable()
	for _, c := range mf.Class {
		className := TypeName(strings.TrimSpace(c.Name))
		if className == "" {
			return nil, fmt.Errorf("%w %s: class without name", ErrManifest, path)
		}
		t.Class(className)
		for _, mm := range c.Member {
			if mm.Name == "" {
				return nil, fmt.Errorf("%w %s: member of %s without name", ErrManifest, path, className)
			}
			m := &Member{
				Holder:      className,
				Name:        mm.Name,
				Return:      mm.Return,
				Params:      normaliseTypes(mm.Params),
				Constructor: mm.Constructor,
				Static:      mm.Static,
			}
			if m.Constructor || mm.Name == "<init>" {
				m.Constructor = true
				m.Name = SimpleName(className)
			}
			if m.Return == "" {
				m.Return = "void"
			}
			m.Return = TypeName(m.Return)
			m = t.AddMember(m)

			if mm.Size == 0 && len(mm.Lines) == 0 && len(mm.Bytecode) == 0 && len(mm.Exception) == 0 {
				continue
			}
			bc := &MemberBytecode{Size: mm.Size}
			for _, l := range mm.Lines {
				bc.LineTable = append(bc.LineTable, LineEntry{BCI: l[0], Line: l[1]})
			}
			for _, in := range mm.Bytecode {
				bc.Instructions = append(bc.Instructions, Instruction(in))
			}
			for _, e := range mm.Exception {
				if e.End <= e.Start {
					return nil, fmt.Errorf("%w %s: %s.%s: empty exception range [%d,%d)",
						ErrManifest, path, className, mm.Name, e.Start, e.End)
				}
				bc.ExceptionTable = append(bc.ExceptionTable, ExceptionEntry{
					Start: e.Start, End: e.End, Handler: e.Handler, Type: TypeName(e.Type),
				})
			}
			t.SetBytecode(m, bc)
		}
	}
	return t, nil
}

func normaliseTypes(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = TypeName(strings.TrimSpace(s))
	}
	return out
}
