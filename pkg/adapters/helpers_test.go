package adapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		dest := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
		require.NoError(t, os.WriteFile(dest, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
	return err == nil
}

// plainCompiler treats stylesheets as plain CSS. Sources containing "@error" fail to compile.
type plainCompiler struct {
	mu       sync.Mutex
	requests []CompileRequest
}

func (c *plainCompiler) Compile(ctx context.Context, req CompileRequest) ([]byte, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	data, err := os.ReadFile(req.Source)
	if err != nil {
		return nil, err
	}

	if strings.Contains(string(data), "@error") {
		return nil, eris.Errorf("%s: @error triggered", filepath.Base(req.Source))
	}
	return data, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []error
}

func (n *recordingNotifier) Notify(ctx context.Context, task string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}
