// Command mempack is a thin CLI front end over the mempack package: it
// is not itself part of the spec's core, just a wiring example that
// exercises Encoder, Retriever, and Verify from a shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per spec.md §6.
const (
	exitOK         = 0
	exitError      = 1
	exitCorrupt    = 2
	exitUsageError = 3
)

func main() {
	root := &cobra.Command{
		Use:           "mempack",
		Short:         "Build and query .mpack retrieval containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBuildCommand(),
		newSearchCommand(),
		newVerifyCommand(),
		newInfoCommand(),
		newExportCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mempack:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to spec.md §6's exit code taxonomy.
func exitCodeFor(err error) int {
	if isUsageError(err) {
		return exitUsageError
	}
	if isCorruptError(err) {
		return exitCorrupt
	}
	return exitError
}
