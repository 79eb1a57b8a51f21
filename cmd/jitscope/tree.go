package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"jitscope/internal/observ"
	"jitscope/internal/pipeline"
	"jitscope/internal/report"
)

var treeCmd = &cobra.Command{
	Use:   "tree LOG",
	Short: "Print the inlining tree of one compilation",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

var asmCmd = &cobra.Command{
	Use:   "asm LOG",
	Short: "Print the disassembly of one compilation mapped back to bytecode",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsm,
}

func init() {
	treeCmd.Flags().String("compile-id", "", "compile id of the compilation")
	treeCmd.Flags().Bool("verbose", false, "show call site profile data")
	_ = treeCmd.MarkFlagRequired("compile-id")

	asmCmd.Flags().String("compile-id", "", "compile id of the compilation")
	_ = asmCmd.MarkFlagRequired("compile-id")
}

func runTree(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	return withCompilation(cmd, args, true, func(res *pipeline.Result, id string) error {
		c, err := res.Lookup(id)
		if err != nil {
			return err
		}
		root, err := res.CallTree(c)
		if err != nil {
			return fmt.Errorf("compile %s: %w", id, err)
		}
		return report.WriteTree(cmd.OutOrStdout(), root, verbose)
	})
}

func runAsm(cmd *cobra.Command, args []string) error {
	return withCompilation(cmd, args, false, func(res *pipeline.Result, id string) error {
		c, err := res.Lookup(id)
		if err != nil {
			return err
		}
		return report.WriteAssembly(cmd.OutOrStdout(), c, res.Correlation(c))
	})
}

// withCompilation runs the pipeline over the LOG argument and hands the
// result and the --compile-id value to fn.
func withCompilation(cmd *cobra.Command, args []string, skipAssembly bool, fn func(*pipeline.Result, string) error) (err error) {
	path, err := logArg(args)
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetString("compile-id")
	if err != nil {
		return fmt.Errorf("failed to get compile-id flag: %w", err)
	}
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	opts := sess.options()
	opts.SkipAssembly = skipAssembly
	timers := map[string]*observ.Timer{path: opts.Timer}
	defer func() {
		if cerr := sess.close(timers, err); err == nil {
			err = cerr
		}
	}()

	res, runErr := sess.run(cmd.Context(), path, opts)
	if !partial(res, runErr) {
		return runErr
	}
	return multierr.Append(runErr, fn(res, id))
}
