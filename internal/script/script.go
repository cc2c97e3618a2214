// Package script runs Lua batch edits against an editing session.
//
// Every mutating function is one undoable edit:
//
//	add_node("sim", "simulator", "Main")
//	add_node("sys", "system")
//	link("sim", "sys", "belongsTo")
//	set_prop("sim", "steps", "100")
//	move("sim", 10, 20)
//	undo()
//
// Scripts run in a sandbox with only the base, table, string and math
// libraries; io, os, debug and module loading are unavailable.
package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/3worlds/tw-apps-sub001/internal/history"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

// Editor is the session surface scripts drive.
type Editor interface {
	Edit(description string, mutate func(d *workspace.Draft) error) error
	Undo() (string, error)
	Redo() (string, error)
	CanUndo() bool
	CanRedo() bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput redirects print.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner executes scripts. A Runner is not safe for concurrent use.
type Runner struct {
	L      *lua.LState
	editor Editor
	out    io.Writer
	logger *slog.Logger
	edits  int
}

// New creates a sandboxed runner bound to editor.
func New(editor Editor, opts ...Option) *Runner {
	r := &Runner{
		editor: editor,
		out:    os.Stdout,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	r.L = L
	r.register()
	return r
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.L.Close()
}

// Edits returns the number of edits recorded so far.
func (r *Runner) Edits() int { return r.edits }

// RunFile executes a script file.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script %s: %w", path, err)
	}
	return r.Run(ctx, path, string(src))
}

// Run executes a script. The first failing call aborts the script; edits
// made before it stay recorded.
func (r *Runner) Run(ctx context.Context, name, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	fn, err := r.L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("loading script %s: %w", name, err)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("running script %s: %w", name, err)
	}
	r.logger.Debug("script finished", "script", name, "edits", r.edits)
	return nil
}

func (r *Runner) register() {
	fns := map[string]lua.LGFunction{
		"add_node": func(L *lua.LState) int {
			id, kind, label := L.CheckString(1), L.CheckString(2), L.OptString(3, "")
			return r.edit(L, "Add node "+id, func(d *workspace.Draft) error {
				return d.AddNode(id, kind, label)
			})
		},
		"remove_node": func(L *lua.LState) int {
			id := L.CheckString(1)
			return r.edit(L, "Remove node "+id, func(d *workspace.Draft) error {
				return d.RemoveNode(id)
			})
		},
		"link": func(L *lua.LState) int {
			from, to, label := L.CheckString(1), L.CheckString(2), L.OptString(3, "")
			return r.edit(L, fmt.Sprintf("Link %s -> %s", from, to), func(d *workspace.Draft) error {
				return d.Link(from, to, label)
			})
		},
		"unlink": func(L *lua.LState) int {
			from, to, label := L.CheckString(1), L.CheckString(2), L.OptString(3, "")
			return r.edit(L, fmt.Sprintf("Unlink %s -> %s", from, to), func(d *workspace.Draft) error {
				return d.Unlink(from, to, label)
			})
		},
		"set_prop": func(L *lua.LState) int {
			id, key, value := L.CheckString(1), L.CheckString(2), L.OptString(3, "")
			return r.edit(L, fmt.Sprintf("Set %s.%s", id, key), func(d *workspace.Draft) error {
				return d.SetProperty(id, key, value)
			})
		},
		"set_pref": func(L *lua.LState) int {
			key, value := L.CheckString(1), L.OptString(2, "")
			return r.edit(L, "Set preference "+key, func(d *workspace.Draft) error {
				d.SetPreference(key, value)
				return nil
			})
		},
		"move": func(L *lua.LState) int {
			id := L.CheckString(1)
			x, y := float64(L.CheckNumber(2)), float64(L.CheckNumber(3))
			return r.edit(L, "Move "+id, func(d *workspace.Draft) error {
				return d.Move(id, x, y)
			})
		},
		"undo": func(L *lua.LState) int {
			return r.navigate(L, r.editor.Undo)
		},
		"redo": func(L *lua.LState) int {
			return r.navigate(L, r.editor.Redo)
		},
		"can_undo": func(L *lua.LState) int {
			L.Push(lua.LBool(r.editor.CanUndo()))
			return 1
		},
		"can_redo": func(L *lua.LState) int {
			L.Push(lua.LBool(r.editor.CanRedo()))
			return 1
		},
		"print": func(L *lua.LState) int {
			parts := make([]string, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				parts = append(parts, L.ToStringMeta(L.Get(i)).String())
			}
			fmt.Fprintln(r.out, strings.Join(parts, "\t"))
			return 0
		},
	}
	for name, fn := range fns {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
}

// edit records one change, raising a Lua error if it fails.
func (r *Runner) edit(L *lua.LState, description string, mutate func(d *workspace.Draft) error) int {
	if err := r.editor.Edit(description, mutate); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	r.edits++
	return 0
}

// navigate returns the label on success, or nil and a message when there is
// nothing to undo or redo. Other failures raise a Lua error.
func (r *Runner) navigate(L *lua.LState, step func() (string, error)) int {
	label, err := step()
	if err != nil {
		if history.IsNavigation(err) {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(label))
	return 1
}
