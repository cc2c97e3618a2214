package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	projectDir string
	logLevel   string
	backend    string
	format     string
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "cfgedit",
		Short: "Edit simulation configuration graphs with snapshot-backed undo",
		Long: `cfgedit edits a configuration graph, its layout and the user preferences.
Every change is recorded as a snapshot in the project's history directory
before it is applied, so any sequence of edits can be undone and redone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (default: cfgedit.toml or cfgedit.yaml in the project)")
	f.StringVarP(&opts.projectDir, "project", "p", ".", "Project directory")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.backend, "backend", "", "Snapshot store backend (dir, badger)")
	f.StringVar(&opts.format, "format", "", "Snapshot graph format (json, yaml, toml)")

	root.AddCommand(
		newReplCmd(opts),
		newRunCmd(opts),
		newLsCmd(opts),
		newSweepCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cfgedit %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
