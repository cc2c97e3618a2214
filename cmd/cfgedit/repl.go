package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3worlds/tw-apps-sub001/internal/script"
	"github.com/3worlds/tw-apps-sub001/internal/session"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

const replHelp = `Commands:
  add <id> <kind> [label]        add a node
  rm <id>                        remove a node and its edges
  link <from> <to> [label]       add an edge
  unlink <from> <to> [label]     remove an edge
  set <id> <key> [value]         set a node property (no value deletes it)
  pref <key> [value]             set a preference (no value deletes it)
  move <id> <x> <y>              place a node in the layout
  lua <code>                     run a Lua statement
  undo | redo                    step through the history
  history                        list the history
  diff [config|layout|prefs]     show what undo would revert
  show                           print the configuration graph
  save <path>                    export the configuration graph
  help                           show this help
  quit                           end the session`

func newReplCmd(opts *globalOptions) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive editing session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, input, func(ctx context.Context, _ *env, s *session.Session, ws *workspace.Workspace) error {
				return runREPL(ctx, s, ws, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Configuration graph to start from (.json, .yaml, .toml)")
	return cmd
}

// repl executes line commands against a session.
type repl struct {
	s      *session.Session
	ws     *workspace.Workspace
	runner *script.Runner
	out    io.Writer
}

func runREPL(ctx context.Context, s *session.Session, ws *workspace.Workspace, in io.Reader, out io.Writer) error {
	r := &repl{s: s, ws: ws, out: out, runner: script.New(s, script.WithOutput(out))}
	defer r.runner.Close()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, r.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (r *repl) prompt() string {
	h := r.s.History()
	return fmt.Sprintf("[%d/%d]> ", h.Cursor()+1, h.Len())
}

func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(r.out, replHelp)
		return nil
	case "add":
		if err := needArgs(args, 2, 3); err != nil {
			return err
		}
		id, kind, label := args[0], args[1], optArg(args, 2)
		return r.s.Edit("Add node "+id, func(d *workspace.Draft) error {
			return d.AddNode(id, kind, label)
		})
	case "rm":
		if err := needArgs(args, 1, 1); err != nil {
			return err
		}
		id := args[0]
		return r.s.Edit("Remove node "+id, func(d *workspace.Draft) error {
			return d.RemoveNode(id)
		})
	case "link", "unlink":
		if err := needArgs(args, 2, 3); err != nil {
			return err
		}
		from, to, label := args[0], args[1], optArg(args, 2)
		if name == "link" {
			return r.s.Edit(fmt.Sprintf("Link %s -> %s", from, to), func(d *workspace.Draft) error {
				return d.Link(from, to, label)
			})
		}
		return r.s.Edit(fmt.Sprintf("Unlink %s -> %s", from, to), func(d *workspace.Draft) error {
			return d.Unlink(from, to, label)
		})
	case "set":
		if err := needArgs(args, 2, 3); err != nil {
			return err
		}
		id, key, value := args[0], args[1], optArg(args, 2)
		return r.s.Edit(fmt.Sprintf("Set %s.%s", id, key), func(d *workspace.Draft) error {
			return d.SetProperty(id, key, value)
		})
	case "pref":
		if err := needArgs(args, 1, 2); err != nil {
			return err
		}
		key, value := args[0], optArg(args, 1)
		return r.s.Edit("Set preference "+key, func(d *workspace.Draft) error {
			d.SetPreference(key, value)
			return nil
		})
	case "move":
		if err := needArgs(args, 3, 3); err != nil {
			return err
		}
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid x %q", args[1])
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid y %q", args[2])
		}
		id := args[0]
		return r.s.Edit("Move "+id, func(d *workspace.Draft) error {
			return d.Move(id, x, y)
		})
	case "lua":
		code := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "lua"))
		return r.runner.Run(ctx, "repl", code)
	case "undo":
		label, err := r.s.Undo()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "undid: %s\n", label)
		return nil
	case "redo":
		label, err := r.s.Redo()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "redid: %s\n", label)
		return nil
	case "history":
		r.printHistory()
		return nil
	case "diff":
		part := snapshot.PartConfig
		if len(args) > 0 {
			p, err := snapshot.ParsePart(args[0])
			if err != nil {
				return err
			}
			part = p
		}
		text, err := r.s.DiffPrevious(part)
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Fprintf(r.out, "no %s changes\n", part)
			return nil
		}
		fmt.Fprint(r.out, text)
		return nil
	case "show":
		r.printGraph()
		return nil
	case "save":
		if err := needArgs(args, 1, 1); err != nil {
			return err
		}
		if err := saveGraph(r.ws, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "saved %s\n", args[0])
		return nil
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
}

func (r *repl) printHistory() {
	for _, e := range r.s.Entries() {
		marker := " "
		if e.Active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %3d  %s\n", marker, e.Index, e.Description)
	}
	if label, ok := r.s.UndoLabel(); ok {
		fmt.Fprintf(r.out, "undo: %s\n", label)
	}
	if label, ok := r.s.RedoLabel(); ok {
		fmt.Fprintf(r.out, "redo: %s\n", label)
	}
}

func (r *repl) printGraph() {
	cfg := r.ws.Config()
	for _, n := range cfg.Nodes() {
		fmt.Fprintf(r.out, "node %s (%s)", n.ID, n.Kind)
		if n.Label != "" {
			fmt.Fprintf(r.out, " %q", n.Label)
		}
		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, " %s=%s", k, n.Properties[k])
		}
		fmt.Fprintln(r.out)
	}
	for _, e := range cfg.Edges() {
		fmt.Fprintf(r.out, "edge %s -> %s", e.From, e.To)
		if e.Label != "" {
			fmt.Fprintf(r.out, " [%s]", e.Label)
		}
		fmt.Fprintln(r.out)
	}
}

func needArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("expected %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
