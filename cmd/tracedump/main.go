// Command tracedump renders a tracer.Snapshot dump as a colorized table.
// It consumes nothing but the tracer package's public, JSON-serialisable
// surface: the richer, interactive visualiser the spec describes is an
// external collaborator out of scope here, exactly as a running
// streamflow process writing `tracer.Snapshot()` to disk (or serving it
// over HTTP) is out of scope for this command too.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:   "tracedump",
		Short: "Render a streamflow tracer snapshot as a table",
		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				color.NoColor = true //nolint:reassign // intentional, mirrors codefang's validate command
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")
	root.AddCommand(newDumpCommand())
	return root
}
