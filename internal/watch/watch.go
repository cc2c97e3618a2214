// Package watch reports snapshot artifacts removed from the storage
// directory by something other than the session that owns them.
package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by operations on a closed watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Owner reports whether a live snapshot owns an artifact name.
type Owner interface {
	Owns(name string) bool
}

// OwnerFunc adapts a function to Owner.
type OwnerFunc func(name string) bool

// Owns implements Owner.
func (f OwnerFunc) Owns(name string) bool { return f(name) }

// Violation is a live artifact that disappeared from storage.
type Violation struct {
	Name string
	Path string
	Op   string // remove or rename
	Time time.Time
}

// Stats holds watcher counters.
type Stats struct {
	Events     int64
	Violations int64
	Errors     int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithBufferSize sets the capacity of the violation channel.
func WithBufferSize(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

// Watcher watches one storage directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	owner   Owner
	logger  *slog.Logger
	bufSize int

	violations chan Violation

	events      int64
	violated    int64
	totalErrors int64

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	closedWg sync.WaitGroup
}

// New starts watching dir. The watcher stops when ctx is done or Close is
// called.
func New(ctx context.Context, dir string, owner Owner, opts ...Option) (*Watcher, error) {
	if owner == nil {
		return nil, errors.New("watch owner is required")
	}

	w := &Watcher{
		dir:     dir,
		owner:   owner,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		bufSize: 16,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.watcher = fsw
	w.violations = make(chan Violation, w.bufSize)

	ctx, w.cancel = context.WithCancel(ctx)
	w.closedWg.Add(1)
	go w.processLoop(ctx)

	return w, nil
}

// Violations returns the channel of detected violations. It is closed by Close.
func (w *Watcher) Violations() <-chan Violation {
	return w.violations
}

// Stats returns watcher counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Events:     atomic.LoadInt64(&w.events),
		Violations: atomic.LoadInt64(&w.violated),
		Errors:     atomic.LoadInt64(&w.totalErrors),
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.closedWg.Wait()
	close(w.violations)
	return w.watcher.Close()
}

func (w *Watcher) processLoop(ctx context.Context) {
	defer w.closedWg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			atomic.AddInt64(&w.events, 1)
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			atomic.AddInt64(&w.totalErrors, 1)
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op string
	switch {
	case ev.Op.Has(fsnotify.Remove):
		op = "remove"
	case ev.Op.Has(fsnotify.Rename):
		op = "rename"
	default:
		return
	}

	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || !w.owner.Owns(name) {
		return
	}

	v := Violation{Name: name, Path: ev.Name, Op: op, Time: time.Now()}
	atomic.AddInt64(&w.violated, 1)
	w.logger.Warn("live snapshot artifact removed externally", "name", name, "op", op)

	select {
	case w.violations <- v:
	default:
		// Channel full, drop; the warning was logged.
	}
}
