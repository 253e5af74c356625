/*
Package main - admin CLI entry point into the compliance core.

Mirrors the three admin commands: sync_contacts, generate_document_references,
seed_process_templates. Each opens its own database connection and logger
rather than sharing process-wide state, matching the one-shot-job nature of
these commands.
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "fizko-cli",
	Short: "Admin entry points into the SII compliance core",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML config file (optional)")
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command failure to the documented exit codes: 1 for
// configuration errors, 2 for runtime failures.
func exitCodeFor(err error) int {
	if _, ok := err.(*configError); ok {
		return 1
	}
	return 2
}

type configError struct{ cause error }

func (e *configError) Error() string { return e.cause.Error() }
func (e *configError) Unwrap() error { return e.cause }
