package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx context.Context, o *options, stdout, stderr io.Writer) *cobra.Command {
	var asModule bool
	cmd := &cobra.Command{
		Use:   "run <file> [args...]",
		Short: "Run a script manifest, or a module manifest with --module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.argv = append([]string{"escore"}, args...)
			e, err := o.newEngine(stdout, stderr)
			if err != nil {
				return err
			}
			if asModule {
				_, err = e.Import(ctx, specifierFor(args[0]))
			} else {
				_, err = e.RunScriptFile(args[0])
			}
			if err != nil {
				return runError{err}
			}
			if err := e.RunJobs(ctx); err != nil {
				return runError{err}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asModule, "module", "m", false, "evaluate the file as a module")
	return cmd
}
