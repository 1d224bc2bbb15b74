package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/assetpipe/pkg/config"
)

func newScripts(root string, mode config.Mode, notifier Notifier) *Scripts {
	return &Scripts{
		Options: Options{Root: root, Mode: mode, Notifier: notifier},
		Entry:   "src/js/script.js",
		Dest:    "dist/js/script.js",
	}
}

var scriptSources = map[string]string{
	"src/js/script.js": "import { greet } from './greet.js';\ngreet('world');\n",
	"src/js/greet.js":  "export function greet(name) {\n  const message = 'hello ' + name;\n  console.log(message);\n}\n",
	"src/js/unused.js": "console.log('never bundled');\n",
}

func TestScriptsProduction(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, scriptSources)

	require.NoError(t, newScripts(root, config.Production, nil).Run(context.Background()))

	js := readTree(t, root, "dist/js/script.js")
	assert.Contains(t, js, "hello ")
	assert.NotContains(t, js, "never bundled")
	assert.NotContains(t, js, "sourceMappingURL")
	assert.False(t, exists(root, "dist/js/script.js.map"))
}

func TestScriptsDevelopment(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, scriptSources)

	require.NoError(t, newScripts(root, config.Development, nil).Run(context.Background()))

	assert.Contains(t, readTree(t, root, "dist/js/script.js"), "//# sourceMappingURL=script.js.map")
	assert.True(t, exists(root, "dist/js/script.js.map"))
}

func TestScriptsSyntaxError(t *testing.T) {
	sources := map[string]string{"src/js/script.js": "function {\n"}

	root := t.TempDir()
	writeTree(t, root, sources)
	notifier := &recordingNotifier{}
	require.NoError(t, newScripts(root, config.Development, notifier).Run(context.Background()))
	assert.Equal(t, 1, notifier.count())
	assert.False(t, exists(root, "dist/js/script.js"))

	root = t.TempDir()
	writeTree(t, root, sources)
	err := newScripts(root, config.Production, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bundle src/js/script.js")
}

func TestScriptsMissingEntry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, newScripts(root, config.Production, nil).Run(context.Background()))
	assert.False(t, exists(root, "dist/js/script.js"))
}
