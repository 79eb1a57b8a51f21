package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jitscope/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "jitscope",
	Short: "Reconstruct JIT compilations from a HotSpot compilation log",
	Long: `jitscope reads the output of -XX:+LogCompilation (optionally with
-XX:+PrintAssembly) and rebuilds every compilation: which method was compiled
by which tier, what was inlined and why, and how native code maps back to
bytecode.`,
	SilenceUsage: true,
}

// main registers subcommands and persistent flags and executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("log-level", "", "log level (panic|fatal|error|warning|info|debug|trace)")
	flags.Bool("timings", false, "show per-stage timings")
	flags.String("metrics", "", "write run counters in prometheus text format to FILE")
	flags.String("model", "", "symbol manifest (TOML) describing the program")
	flags.String("charset", "", "input charset when the log is not UTF-8")
	flags.Int("jobs", 0, "correlation workers (0 = GOMAXPROCS)")
	flags.Int("max-diagnostics", 10000, "maximum number of diagnostics kept per log")
	flags.String("config", "", "path to jitscope.toml (default: search upwards)")
	flags.String("trace", "", "write trace events to FILE (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|stage|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")
	flags.String("cpu-profile", "", "write a CPU profile to FILE")
	flags.String("mem-profile", "", "write a heap profile to FILE on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to FILE")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
