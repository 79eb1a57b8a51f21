// Package diag defines the diagnostic model shared by every stage of the
// log reconstruction pipeline.
//
// # Purpose
//
//   - Record findings produced while splitting the log, parsing tags, walking
//     compile chains, resolving symbols and correlating assembly.
//   - Keep producers decoupled from storage and output: stages emit through a
//     Reporter, the run decides whether that lands in a Bag, a logger or both.
//
// # Taxonomy
//
// Every Code belongs to a Class:
//
//   - Structural: a line or tag could not be classified or parsed. The stage
//     skips it and carries on.
//   - Semantic: parsed data disagrees with the program model (no member
//     matches, an annotated bci falls outside the member). The affected node
//     or instruction gets a partial result; the walk continues.
//   - Fatal: the log could not be opened or read. These are also returned as
//     errors, since no model is meaningful without the source file.
//
// Stale tasks and tasks in a format without a wrapping phase are expected and
// never produce a diagnostic.
//
// # Codes
//
// Codes are grouped by stage: SPL (splitting), TAG (tag parsing), WLK (phase
// extraction and chain walking), SYM (symbol resolution), ASM (assembly) and
// IO. Code.ID renders the stable identifier, Code.Title the short text.
package diag
