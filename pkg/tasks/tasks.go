// Package tasks assembles the pipeline graphs for the CLI commands from the project configuration.
package tasks

import (
	"context"
	"io"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/adapters"
	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/devserver"
	"github.com/ngld/assetpipe/pkg/pipeline"
	"github.com/ngld/assetpipe/pkg/rev"
	"github.com/ngld/assetpipe/pkg/watch"
)

// Project builds the graphs for a project directory
type Project struct {
	Root   string
	Config *config.Config
	// Compiler overrides the Dart Sass compiler
	Compiler adapters.StyleCompiler
	// Notifier receives recoverable development errors. Development replaces it with one forwarding to
	// the dev server hub.
	Notifier    adapters.Notifier
	ProgressOut io.Writer
}

// AdapterSet contains one adapter per asset type
type AdapterSet struct {
	Clean     *adapters.Clean
	HTML      *adapters.HTMLInclude
	Scripts   *adapters.Scripts
	Styles    *adapters.Styles
	Resources *adapters.Copy
	Images    *adapters.Images
	Sprites   *adapters.Sprites
}

func (p *Project) src(rel string) string {
	return path.Join(p.Config.Src, rel)
}

func (p *Project) dist(rel string) string {
	return path.Join(p.Config.Dist, rel)
}

// Adapters configures the adapters for mode
func (p *Project) Adapters(mode config.Mode) (*AdapterSet, error) {
	targets, err := p.Config.Targets()
	if err != nil {
		return nil, err
	}

	compiler := p.Compiler
	if compiler == nil {
		compiler = adapters.DartSass{Binary: p.Config.Sass.Binary}
	}

	opts := adapters.Options{Root: p.Root, Mode: mode, Notifier: p.Notifier}
	return &AdapterSet{
		Clean: &adapters.Clean{Options: opts, Dir: p.Config.Dist},
		HTML: &adapters.HTMLInclude{
			Options: opts,
			FileSet: adapters.FileSet{Patterns: []string{p.src("*.html")}, Dest: p.Config.Dist},
		},
		Scripts: &adapters.Scripts{
			Options: opts,
			Entry:   p.src("js/script.js"),
			Dest:    p.dist("js/script.js"),
			Targets: targets,
		},
		Styles: &adapters.Styles{
			Options:  opts,
			FileSet:  adapters.FileSet{Patterns: []string{p.src("scss/*.scss")}, Dest: p.dist("css")},
			Compiler: compiler,
			Targets:  targets,
		},
		Resources: &adapters.Copy{
			Options: opts,
			FileSet: adapters.FileSet{Patterns: []string{p.src("resources/**/*")}, Dest: p.Config.Dist},
			Task:    "resources",
		},
		Images: &adapters.Images{
			Options: opts,
			FileSet: adapters.FileSet{
				Patterns: []string{p.src("img/*.{jpg,jpeg,svg,png,gif}")},
				Base:     p.src("img"),
				Dest:     p.dist("img"),
			},
			JPEGQuality: p.Config.Images.JPEGQuality,
			Progress:    p.Config.Images.Progress,
			ProgressOut: p.ProgressOut,
		},
		Sprites: &adapters.Sprites{
			Options:  opts,
			Patterns: []string{p.src("img/svg/*.svg")},
			Dest:     p.dist("img/sprite.svg"),
		},
	}, nil
}

// Node wraps an adapter in a task node scoped to its current outputs
func Node(a adapters.Adapter) (pipeline.Node, error) {
	outputs, err := a.Outputs()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to determine the outputs of %s", a.Name())
	}

	return pipeline.Task(a.Name(), outputs, a.Run), nil
}

type nodeSet struct {
	clean, html, scripts, styles, resources, images, sprites pipeline.Node
}

func (s *AdapterSet) nodes() (*nodeSet, error) {
	result := &nodeSet{}
	pairs := []struct {
		adapter adapters.Adapter
		dest    *pipeline.Node
	}{
		{s.Clean, &result.clean},
		{s.HTML, &result.html},
		{s.Scripts, &result.scripts},
		{s.Styles, &result.styles},
		{s.Resources, &result.resources},
		{s.Images, &result.images},
		{s.Sprites, &result.sprites},
	}

	for _, pair := range pairs {
		node, err := Node(pair.adapter)
		if err != nil {
			return nil, err
		}
		*pair.dest = node
	}

	return result, nil
}

// parallel runs clean and then every adapter at once
func (n *nodeSet) parallel(name string) pipeline.Node {
	return pipeline.Series(name,
		n.clean,
		pipeline.Parallel("assets", n.html, n.scripts, n.styles, n.resources, n.images, n.sprites),
	)
}

// sequential runs clean and then one adapter after another
func (n *nodeSet) sequential(name string) pipeline.Node {
	return pipeline.Series(name, n.clean, n.html, n.scripts, n.styles, n.resources, n.images, n.sprites)
}

// Production returns the graph behind `build`: clean, then every adapter in sequence
func (p *Project) Production() (*pipeline.Graph, error) {
	set, err := p.Adapters(config.Production)
	if err != nil {
		return nil, err
	}

	nodes, err := set.nodes()
	if err != nil {
		return nil, err
	}

	return pipeline.NewGraph(nodes.sequential("build"))
}

// bindings maps source patterns to the nodes rebuilding them
func (p *Project) bindings(n *nodeSet) []watch.Binding {
	return []watch.Binding{
		{Patterns: []string{p.src("scss/**/*.scss")}, Node: n.styles, Reload: watch.ReloadCSS},
		{Patterns: []string{p.src("js/**/*.js")}, Node: n.scripts, Reload: watch.ReloadPage},
		{Patterns: []string{p.src("partials/*.html"), p.src("*.html")}, Node: n.html, Reload: watch.ReloadPage},
		{
			Patterns: []string{p.src("img/*.{jpg,jpeg,png,svg,gif}"), p.src("img/**/*.{jpg,jpeg,png}")},
			Node:     n.images,
			Reload:   watch.ReloadNone,
		},
		{Patterns: []string{p.src("img/svg/*.svg")}, Node: n.sprites, Reload: watch.ReloadNone},
	}
}

// Development returns the graph behind the default command: the development build followed by the
// watcher and the dev server, which run until the context is cancelled.
func (p *Project) Development() (*pipeline.Graph, error) {
	server := devserver.New(p.Config.Server.Address, filepath.Join(p.Root, filepath.FromSlash(p.Config.Dist)))
	failures := &watch.FailureLog{Next: server.Hub}
	p.Notifier = failures

	set, err := p.Adapters(config.Development)
	if err != nil {
		return nil, err
	}

	nodes, err := set.nodes()
	if err != nil {
		return nil, err
	}

	dispatcher := watch.NewDispatcher(server.Hub, p.bindings(nodes)...)
	dispatcher.Failures = failures
	watcher := watch.NewWatcher(p.Root, p.Config.Src, dispatcher)

	serve := func(ctx context.Context) error {
		// if either of them fails, the other one is stopped as well
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		return pipeline.Parallel("serve",
			pipeline.Task("watch", nil, stopOnError(cancel, watcher.Run)),
			pipeline.Task("server", nil, stopOnError(cancel, server.Run)),
		).Run(ctx)
	}

	return pipeline.NewGraph(pipeline.Series("default",
		nodes.parallel("build"),
		pipeline.Task("serve", nil, serve),
	))
}

func stopOnError(cancel context.CancelFunc, fn pipeline.Func) pipeline.Func {
	return func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil {
			cancel()
		}
		return err
	}
}

// Cache returns the graph behind `cache`: hash the output tree, then rewrite the references
func (p *Project) Cache() (*pipeline.Graph, error) {
	dist := filepath.Join(p.Root, filepath.FromSlash(p.Config.Dist))
	rewriter := &rev.Rewriter{Root: p.Root, Dist: p.Config.Dist}

	return pipeline.NewGraph(pipeline.Series("cache",
		pipeline.Task("rev-hash", []string{p.Config.Dist}, func(ctx context.Context) error {
			_, err := rev.Hash(ctx, dist)
			return err
		}),
		pipeline.Task("rev-rewrite", []string{p.Config.Dist}, rewriter.Run),
	))
}
