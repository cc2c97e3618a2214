package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/3worlds/tw-apps-sub001/internal/config"
	"github.com/3worlds/tw-apps-sub001/internal/export"
	"github.com/3worlds/tw-apps-sub001/internal/logging"
	"github.com/3worlds/tw-apps-sub001/internal/metrics"
	"github.com/3worlds/tw-apps-sub001/internal/session"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
	"github.com/3worlds/tw-apps-sub001/internal/store"
	"github.com/3worlds/tw-apps-sub001/internal/vfs"
	"github.com/3worlds/tw-apps-sub001/internal/watch"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

// env is everything a command needs, built from flags and configuration.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	project workspace.Project
	store   store.Store
	factory *snapshot.Factory
	metrics *metrics.Metrics
	server  *http.Server
	errOut  io.Writer
}

func openEnv(cmd *cobra.Command, opts *globalOptions) (*env, error) {
	root, err := filepath.Abs(opts.projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	fsys := vfs.NewOSFS()
	path := opts.configPath
	if path == "" {
		path = config.Find(fsys, root)
	}
	cfg, err := config.Load(fsys, path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}
	if opts.format != "" {
		cfg.Storage.Format = opts.format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if path != "" {
		logger.Debug("configuration loaded", "path", path)
	}

	project, err := workspace.NewProject(root, cfg.Project.StorageDir)
	if err != nil {
		return nil, err
	}
	exp, err := export.New(cfg.Storage.Format)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Options{
		Backend:    cfg.Storage.Backend,
		Dir:        project.StorageDir,
		FS:         fsys,
		SyncWrites: cfg.Storage.SyncWrites,
		Logger:     logging.WithComponent(logger, "store"),
	})
	if err != nil {
		return nil, err
	}
	factory, err := snapshot.NewFactory(st, exp,
		snapshot.WithStems(cfg.Storage.Stems.Snapshot()),
		snapshot.WithLogger(logging.WithComponent(logger, "snapshot")),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	e := &env{
		cfg:     cfg,
		logger:  logger,
		project: project,
		store:   st,
		factory: factory,
		errOut:  cmd.ErrOrStderr(),
	}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.New()
		if cfg.Metrics.Addr != "" {
			if err := e.serveMetrics(cfg.Metrics.Addr); err != nil {
				_ = st.Close()
				return nil, err
			}
		}
	}
	return e, nil
}

func (e *env) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server stopped", "error", err)
		}
	}()
	e.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// Close stops the metrics server and closes the store.
func (e *env) Close() error {
	var errs []error
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errs = append(errs, e.server.Shutdown(ctx))
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}

// newSession creates a session over ws using the configured policy.
func (e *env) newSession(ws *workspace.Workspace) (*session.Session, error) {
	policy, err := session.ParsePolicy(e.cfg.History.OnPersistFailure)
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Name:       e.project.Name(),
		Workspace:  ws,
		Snapshots:  e.factory,
		MaxEntries: e.cfg.History.MaxEntries,
		Policy:     policy,
		Logger:     logging.WithComponent(e.logger, "session"),
		Metrics:    e.metrics,
		Alert: func(err error) {
			fmt.Fprintf(e.errOut, "warning: %v\n", err)
		},
	})
}

// watch reports live artifacts removed behind the session's back. It is a
// no-op unless watching is enabled and the store is a directory.
func (e *env) watch(ctx context.Context, s *session.Session) (func(), error) {
	if !e.cfg.Watch.Enabled || e.cfg.Storage.Backend != store.BackendDir {
		return func() {}, nil
	}
	w, err := watch.New(ctx, e.project.StorageDir, watch.OwnerFunc(s.Owns),
		watch.WithLogger(logging.WithComponent(e.logger, "watch")))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", e.project.StorageDir, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range w.Violations() {
			fmt.Fprintf(e.errOut, "warning: %s was removed while still in the undo history\n", v.Name)
		}
	}()
	return func() {
		_ = w.Close()
		<-done
	}, nil
}

// loadGraph seeds ws with the configuration graph stored at path.
func loadGraph(ws *workspace.Workspace, path string) error {
	exp, err := export.ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := exp.Import(f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return ws.Restore(snapshot.State{Config: g})
}

// saveGraph writes the live configuration graph to path.
func saveGraph(ws *workspace.Workspace, path string) error {
	exp, err := export.ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exp.Export(f, ws.Config()); err != nil {
		_ = f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

// withSession opens a session, seeded from input when given, runs fn and
// closes the session, which removes every snapshot it recorded.
func withSession(cmd *cobra.Command, opts *globalOptions, input string,
	fn func(ctx context.Context, e *env, s *session.Session, ws *workspace.Workspace) error) (err error) {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	ws := workspace.New()
	if input != "" {
		if err := loadGraph(ws, input); err != nil {
			return err
		}
	}

	s, err := e.newSession(ws)
	if err != nil {
		return err
	}
	if err := s.Open(); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop, err := e.watch(ctx, s)
	if err != nil {
		return err
	}
	defer stop()

	return fn(ctx, e, s, ws)
}
