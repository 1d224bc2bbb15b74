package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

// Watcher feeds filesystem events below Dir to a Dispatcher
type Watcher struct {
	// Root is the project directory; dispatched paths are relative to it
	Root string
	// Dir is the watched directory relative to Root
	Dir        string
	Dispatcher *Dispatcher
	// ready is closed once every directory has been added
	ready chan struct{}
}

// NewWatcher returns a watcher for dir (relative to root)
func NewWatcher(root, dir string, dispatcher *Dispatcher) *Watcher {
	return &Watcher{Root: root, Dir: dir, Dispatcher: dispatcher, ready: make(chan struct{})}
}

// Ready is closed once the watcher is set up
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	root, err := filepath.Abs(w.Root)
	if err != nil {
		return eris.Wrap(err, "failed to resolve project root")
	}

	dir := filepath.Join(root, filepath.FromSlash(w.Dir))
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := addDirsRecursive(ctx, watcher, dir); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Dispatcher.Run(ctx)
	}()

	logging.Log(ctx).Info().Msgf("Watching %s for changes", w.Dir)
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				<-done
				return nil
			}
			w.handleEvent(ctx, watcher, root, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				<-done
				return nil
			}
			logging.Log(ctx).Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, root string, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = addDirsRecursive(ctx, watcher, ev.Name)
		}
	}

	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	matched := w.Dispatcher.Dispatch(rel)
	logging.Log(ctx).Debug().Str("path", rel).Msgf("%s %s -> %s", ev.Op, rel, strings.Join(matched, ", "))
}

func addDirsRecursive(ctx context.Context, watcher *fsnotify.Watcher, root string) error {
	return eris.Wrapf(filepath.WalkDir(root, func(item string, entry os.DirEntry, err error) error {
		if err != nil {
			if item == root {
				return err
			}
			return nil
		}

		if entry.IsDir() {
			if err := watcher.Add(item); err != nil {
				logging.Log(ctx).Warn().Err(err).Str("path", item).Msg("failed to watch directory")
			}
		}
		return nil
	}), "failed to watch %s", root)
}

// shouldIgnoreEvent filters hidden files and editor temp files
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}

	return base == "Thumbs.db" || base == "4913"
}
