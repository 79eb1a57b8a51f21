package main

import (
	"fmt"
	"io"
	"sort"

	"jitscope/internal/observ"
)

// writeTimings prints one timing block per log, in log name order.
func writeTimings(out io.Writer, timers map[string]*observ.Timer) {
	if out == nil {
		return
	}
	names := make([]string, 0, len(timers))
	for name := range timers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(timers) > 1 {
			fmt.Fprintf(out, "%s\n", name)
		}
		fmt.Fprint(out, timers[name].Summary())
	}
}
