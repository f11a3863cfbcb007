// recall is a persistent memory engine for coding assistant sessions.
// Lessons and handoffs live in human-editable markdown; hook subcommands
// wire them into the host's session lifecycle.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// errUsage marks errors that should exit 1 (bad invocation) rather than 2
// (recoverable failure).
var errUsage = errors.New("usage")

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Persistent memory for coding assistant sessions",
	Long: `recall keeps lessons and work handoffs in markdown files that survive
across assistant sessions.

Lessons are durable notes the assistant cites while working; citations and
periodic decay keep the ranking honest. Handoffs capture in-flight work so
the next session resumes instead of rediscovering.

Hook commands (recall hook ...) are wired into the host's session events
and follow a do-no-harm rule: they exit 0 no matter what.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "recall: %v\n", err)
		if isUsageError(err) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func isUsageError(err error) bool {
	if errors.Is(err, errUsage) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "accepts ") ||
		strings.HasPrefix(msg, "requires ") ||
		strings.Contains(msg, "unknown command") ||
		strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "invalid argument")
}
