package controlloop

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ChangeFunc is called with the task name whose configuration changed.
type ChangeFunc func(task string)

// Watcher watches controller configuration files and reports writes. It
// never reloads anything itself; the caller decides what a change means,
// typically by calling [Agent.Reload].
type Watcher struct {
	logger   *zap.SugaredLogger
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	files    map[string]string // cleaned path -> task
	onChange ChangeFunc
	done     chan struct{}
}

func NewWatcher(logger *zap.SugaredLogger, onChange ChangeFunc) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "controlloop: creating file watcher")
	}
	return &Watcher{
		logger:   logger,
		fsw:      fsw,
		files:    make(map[string]string),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Watch registers the configuration file of task. The parent directory is
// watched so editors that replace the file by rename are still seen.
func (w *Watcher) Watch(task, path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := false
	for p := range w.files {
		if filepath.Dir(p) == dir {
			seen = true
			break
		}
	}
	if !seen {
		if err := w.fsw.Add(dir); err != nil {
			return errors.Wrapf(err, "controlloop: watching %s", dir)
		}
	}
	w.files[path] = task
	return nil
}

// Run dispatches events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			task, ok := w.files[filepath.Clean(ev.Name)]
			w.mu.Unlock()
			if !ok {
				continue
			}
			w.logger.Infow("controller config changed", "task", task, "path", ev.Name, "op", ev.Op.String())
			if w.onChange != nil {
				w.onChange(task)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.fsw.Close()
}
