// Package watch re-runs pipeline nodes when their source files change.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/ngld/assetpipe/pkg/glob"
	"github.com/ngld/assetpipe/pkg/logging"
	"github.com/ngld/assetpipe/pkg/pipeline"
)

// DefaultDebounce is the quiet period after the last matching change before a binding runs
const DefaultDebounce = 300 * time.Millisecond

// ReloadKind tells browsers how to apply a finished rebuild
type ReloadKind int

const (
	ReloadNone ReloadKind = iota
	// ReloadPage reloads the whole page
	ReloadPage
	// ReloadCSS swaps stylesheets without a page reload
	ReloadCSS
)

func (k ReloadKind) String() string {
	switch k {
	case ReloadPage:
		return "reload"
	case ReloadCSS:
		return "css"
	default:
		return "none"
	}
}

// Reloader is informed after a bound node finished successfully
type Reloader interface {
	Reload(kind ReloadKind)
}

// Notifier receives the recoverable errors nodes report instead of failing
type Notifier interface {
	Notify(ctx context.Context, task string, err error)
}

// FailureLog forwards recoverable errors to Next and remembers which tasks reported one, so that a
// rebuild which only reported an error doesn't refresh browsers.
type FailureLog struct {
	Next Notifier

	mu     sync.Mutex
	failed map[string]bool
}

func (f *FailureLog) Notify(ctx context.Context, task string, err error) {
	f.mu.Lock()
	if f.failed == nil {
		f.failed = map[string]bool{}
	}
	f.failed[task] = true
	f.mu.Unlock()

	if f.Next != nil {
		f.Next.Notify(ctx, task, err)
	}
}

// take reports whether task logged an error since the last call and resets its state
func (f *FailureLog) take(task string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	failed := f.failed[task]
	delete(f.failed, task)
	return failed
}

// Binding connects source patterns to the node rebuilding them
type Binding struct {
	// Patterns are matched against slash-separated paths relative to the project root
	Patterns []string
	Node     pipeline.Node
	Reload   ReloadKind
}

type worker struct {
	Binding
	requests chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// trigger (re)starts the debounce timer. Once it fires, a run is requested. Requests made while the node
// is running collapse into a single follow-up run.
func (w *worker) trigger(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, func() {
		select {
		case w.requests <- struct{}{}:
		default:
		}
	})
}

func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// Dispatcher maps changed files to bindings
type Dispatcher struct {
	Reloader Reloader
	Debounce time.Duration
	// Failures, if set, suppresses the reload after runs that reported a recoverable error
	Failures *FailureLog

	workers []*worker
}

// NewDispatcher returns a dispatcher for the given bindings. reloader may be nil.
func NewDispatcher(reloader Reloader, bindings ...Binding) *Dispatcher {
	d := &Dispatcher{
		Reloader: reloader,
		Debounce: DefaultDebounce,
		workers:  make([]*worker, len(bindings)),
	}

	for idx, binding := range bindings {
		d.workers[idx] = &worker{
			Binding:  binding,
			requests: make(chan struct{}, 1),
		}
	}

	return d
}

// Dispatch schedules every binding matching path and returns their names
func (d *Dispatcher) Dispatch(path string) []string {
	matched := []string{}
	for _, w := range d.workers {
		if glob.MatchAny(w.Patterns, path) {
			w.trigger(d.Debounce)
			matched = append(matched, w.Node.Name())
		}
	}
	return matched
}

// Run processes scheduled runs until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			defer w.stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-w.requests:
					d.process(ctx, w)
				}
			}
		}(w)
	}

	wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, w *worker) {
	name := w.Node.Name()
	if d.Failures != nil {
		d.Failures.take(name)
	}

	// errors are logged by the node itself
	if err := w.Node.Run(ctx); err != nil {
		return
	}

	if d.Failures != nil && d.Failures.take(name) {
		logging.Log(ctx).Debug().Msgf("Not reloading browsers, '%s' reported an error", name)
		return
	}

	if d.Reloader != nil && w.Reload != ReloadNone {
		logging.Log(ctx).Debug().Msgf("Sending %s to browsers after '%s'", w.Reload, name)
		d.Reloader.Reload(w.Reload)
	}
}
