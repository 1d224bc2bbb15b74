// Package adapters wraps the third-party transformations used by the asset pipeline. Every adapter reads
// the files matched by its patterns and writes its results below a fixed destination.
package adapters

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/glob"
	"github.com/ngld/assetpipe/pkg/logging"
)

// Adapter is a single transformation step
type Adapter interface {
	Name() string
	// Outputs lists the root-relative paths the adapter would write for the current source tree
	Outputs() ([]string, error)
	Run(ctx context.Context) error
}

// Notifier surfaces recoverable errors to the user
type Notifier interface {
	Notify(ctx context.Context, task string, err error)
}

// LogNotifier only logs the error
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, task string, err error) {
	logging.Log(ctx).Error().Err(err).Msgf("%s failed", task)
}

// Options are shared by all adapters
type Options struct {
	// Root is the project directory; all patterns and destinations are relative to it
	Root     string
	Mode     config.Mode
	Notifier Notifier
}

func (o Options) abs(rel string) string {
	return filepath.Join(o.Root, filepath.FromSlash(rel))
}

func (o Options) expand(patterns []string) ([]string, error) {
	return glob.Expand(o.Root, patterns...)
}

// recoverable reports compile errors. In development they're only reported so that the watch loop keeps
// running; in production they fail the task.
func (o Options) recoverable(ctx context.Context, task string, err error) error {
	if err == nil {
		return nil
	}

	if o.Mode.IsProduction() {
		return err
	}

	notifier := o.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	notifier.Notify(ctx, task, err)

	return nil
}

// FileSet is a list of patterns and the directory their matches are written to
type FileSet struct {
	Patterns []string
	// Base is stripped from every match to build the output path. Defaults to the static prefix
	// of the first pattern.
	Base string
	Dest string
}

func (fs FileSet) base() string {
	if fs.Base != "" {
		return path.Clean(fs.Base)
	}
	if len(fs.Patterns) == 0 {
		return "."
	}
	return glob.Base(fs.Patterns[0])
}

// target maps a matched source path to its output path
func (fs FileSet) target(src string) (string, error) {
	base := fs.base()
	rel := src
	if base != "." {
		if !strings.HasPrefix(src, base+"/") {
			return "", eris.Errorf("%s is not below %s", src, base)
		}
		rel = src[len(base)+1:]
	}

	return path.Join(fs.Dest, rel), nil
}

func writeFile(dest string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create directory for %s", dest)
	}

	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write %s", dest)
	}

	return nil
}

func replaceExt(p, ext string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}
