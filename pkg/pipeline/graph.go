package pipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

type parent interface {
	Children() []Node
}

// Graph is a validated tree of nodes
type Graph struct {
	root Node
}

// NewGraph checks the tree below root and returns a runnable graph
func NewGraph(root Node) (*Graph, error) {
	if root == nil {
		return nil, eris.New("graph has no root node")
	}

	if err := validate(root, map[Node]bool{}); err != nil {
		return nil, err
	}

	return &Graph{root: root}, nil
}

// Root returns the top-level node
func (g *Graph) Root() Node {
	return g.root
}

// Run executes the graph
func (g *Graph) Run(ctx context.Context) error {
	start := time.Now()
	if err := g.root.Run(ctx); err != nil {
		return err
	}

	logging.Log(ctx).Info().Msgf("Finished '%s' after %s", g.root.Name(), time.Since(start).Round(time.Millisecond))
	return nil
}

func validate(node Node, visiting map[Node]bool) error {
	if visiting[node] {
		return eris.Errorf("node %s contains itself", node.Name())
	}

	p, ok := node.(parent)
	if !ok {
		return nil
	}

	visiting[node] = true
	defer delete(visiting, node)

	names := map[string]bool{}
	for _, child := range p.Children() {
		if child == nil {
			return eris.Errorf("%s contains a nil node", node.Name())
		}

		if names[child.Name()] {
			return eris.Errorf("%s contains the node %s twice", node.Name(), child.Name())
		}
		names[child.Name()] = true

		if err := validate(child, visiting); err != nil {
			return err
		}
	}

	if _, ok := node.(*parallel); ok {
		children := p.Children()
		for a := 0; a < len(children); a++ {
			for b := a + 1; b < len(children); b++ {
				first, other, found := findOverlap(children[a].Scope(), children[b].Scope())
				if found {
					return &ScopeConflictError{
						Group: node.Name(),
						First: children[a].Name(),
						Other: children[b].Name(),
						Paths: [2]string{first, other},
					}
				}
			}
		}
	}

	return nil
}

func findOverlap(a, b []string) (string, string, bool) {
	for _, left := range a {
		for _, right := range b {
			if Overlaps(left, right) {
				return left, right, true
			}
		}
	}
	return "", "", false
}

// Overlaps reports whether two scope paths refer to the same file or one contains the other
func Overlaps(a, b string) bool {
	a = cleanScope(a)
	b = cleanScope(b)

	if a == b || a == "." || b == "." {
		return true
	}

	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

func cleanScope(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}

func normalizeScope(scope []string) []string {
	result := make([]string, 0, len(scope))
	for _, item := range scope {
		result = append(result, cleanScope(item))
	}
	return result
}
