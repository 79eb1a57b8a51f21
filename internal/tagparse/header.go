package tagparse

import (
	"jitscope/internal/journal"
	"jitscope/internal/splitlog"
)

// HeaderRoot is the name of the synthetic element holding the header.
const HeaderRoot = "header"

// ParseHeader parses the header stream into a synthetic root element. Free
// text between header elements is kept as the root's text.
func ParseHeader(lines []splitlog.Line, opts Options) *journal.Tag {
	root := journal.NewTag(HeaderRoot, nil, false)
	p := New(opts)
	for _, ln := range lines {
		for _, el := range p.Feed(ln.Num, ln.Text) {
			root.AddChild(el.Tag)
		}
	}
	for _, el := range p.Finish() {
		root.AddChild(el.Tag)
	}
	return root
}

// VMInfo extracts commonly used header values.
type VMInfo struct {
	Version   string
	Release   string
	Arguments string
}

// ReadVMInfo collects version and argument text from a parsed header.
func ReadVMInfo(header *journal.Tag) VMInfo {
	var info VMInfo
	if header == nil {
		return info
	}
	header.Walk(func(t *journal.Tag) bool {
		txt, _ := t.Text()
		switch t.Name() {
		case "name":
			if info.Version == "" {
				info.Version = txt
			}
		case "release":
			info.Release = txt
		case "args", "command":
			if info.Arguments == "" {
				info.Arguments = txt
			}
		}
		return true
	})
	return info
}
