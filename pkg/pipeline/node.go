package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"

	"github.com/ngld/assetpipe/pkg/logging"
)

// Node is a unit of work in a graph
type Node interface {
	// Name returns the name used in logs and error messages
	Name() string
	// Scope returns the slash-separated output paths (files or directories) the node writes to
	Scope() []string
	// Run executes the node and blocks until it's done
	Run(ctx context.Context) error
}

// Func is the work performed by a Task
type Func func(ctx context.Context) error

type task struct {
	name  string
	scope []string
	fn    Func
}

// Task returns a leaf node which calls fn
func Task(name string, scope []string, fn Func) Node {
	return &task{name: name, scope: normalizeScope(scope), fn: fn}
}

func (t *task) Name() string    { return t.name }
func (t *task) Scope() []string { return t.scope }

func (t *task) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = logging.WithTask(ctx, t.name)
	logger := logging.Log(ctx)
	logger.Info().Msgf("Starting '%s'...", t.name)

	start := time.Now()
	err := t.fn(ctx)
	if err != nil {
		logger.Error().Err(err).Msgf("'%s' errored after %s", t.name, time.Since(start).Round(time.Millisecond))
		return err
	}

	logger.Info().Msgf("Finished '%s' after %s", t.name, time.Since(start).Round(time.Millisecond))
	return nil
}

type composite struct {
	name  string
	nodes []Node
}

func (c *composite) Name() string { return c.name }

func (c *composite) Scope() []string {
	result := []string{}
	for _, node := range c.nodes {
		result = append(result, node.Scope()...)
	}
	return result
}

// Children returns the nodes contained in a series or parallel node
func (c *composite) Children() []Node {
	return c.nodes
}

type series struct {
	composite
}

// Series returns a node that runs the given nodes one after another. The first failure stops the chain.
func Series(name string, nodes ...Node) Node {
	return &series{composite{name: name, nodes: nodes}}
}

func (s *series) Run(ctx context.Context) error {
	for _, node := range s.nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := node.Run(ctx)
		if err != nil {
			return eris.Wrapf(err, "%s failed due to %s", s.name, node.Name())
		}
	}

	return nil
}

type parallel struct {
	composite
}

// Parallel returns a node that starts all given nodes at once and waits until every one of them finished.
// A failing node doesn't stop its siblings; all failures are combined into the returned error.
func Parallel(name string, nodes ...Node) Node {
	return &parallel{composite{name: name, nodes: nodes}}
}

func (p *parallel) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, len(p.nodes))

	for idx, node := range p.nodes {
		wg.Add(1)
		go func(idx int, node Node) {
			defer wg.Done()

			err := node.Run(ctx)
			if err != nil {
				errs[idx] = &NodeError{Node: node.Name(), Err: err}
			}
		}(idx, node)
	}

	wg.Wait()
	return multierr.Combine(errs...)
}
