package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3worlds/tw-apps-sub001/internal/logging"
	"github.com/3worlds/tw-apps-sub001/internal/script"
	"github.com/3worlds/tw-apps-sub001/internal/session"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Apply a Lua edit script, one undoable step per call",
		Long: `Run executes a Lua script inside a fresh editing session. The script may
call add_node, remove_node, link, unlink, set_prop, set_pref, move, undo
and redo. Use --output to keep the resulting configuration graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, input, func(ctx context.Context, e *env, s *session.Session, ws *workspace.Workspace) error {
				r := script.New(s,
					script.WithOutput(cmd.OutOrStdout()),
					script.WithLogger(logging.WithComponent(e.logger, "script")),
				)
				defer r.Close()

				if err := r.RunFile(ctx, args[0]); err != nil {
					return err
				}
				h := s.History()
				fmt.Fprintf(cmd.OutOrStdout(), "%d edits applied, history at %d/%d\n", r.Edits(), h.Cursor()+1, h.Len())

				if output != "" {
					if err := saveGraph(ws, output); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Configuration graph to start from (.json, .yaml, .toml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the final configuration graph here (.json, .yaml, .toml)")
	return cmd
}
