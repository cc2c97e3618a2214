package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
)

func newLsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List snapshot artifacts left in the project's history directory",
		Long: `Ls lists artifacts found in the history directory. While no session is
running these are leftovers of a session that did not shut down cleanly;
the next session removes them when it opens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			e, err := openEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, e.Close()) }()

			out := cmd.OutOrStdout()
			stems := e.factory.Stems()
			for _, p := range snapshot.Parts {
				names, err := e.store.List(stems.Of(p))
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintf(out, "%-7s %s\n", p, e.store.Location(name))
				}
			}

			ids, err := e.factory.Stranded()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "no stranded snapshots")
				return nil
			}
			strs := make([]string, len(ids))
			for i, id := range ids {
				strs[i] = fmt.Sprint(id)
			}
			fmt.Fprintf(out, "%d stranded snapshots: %s\n", len(ids), strings.Join(strs, ", "))
			return nil
		},
	}
}

func newSweepCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete stranded snapshot artifacts",
		Long: `Sweep deletes every snapshot artifact in the history directory. Do not run
it while an editing session is open on the same project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			e, err := openEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, e.Close()) }()

			n, err := e.factory.Sweep()
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d artifacts\n", n)
			return err
		},
	}
}
