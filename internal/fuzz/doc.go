// Package fuzztests holds Go fuzz harnesses for the log readers: the tag
// parser, the disassembly parser and the whole pipeline. They guard against
// panics and runaway allocation on arbitrary input.
//
// Seeds come from the *.log files under testdata/ at the repository root.
package fuzztests
