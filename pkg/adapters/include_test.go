package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/assetpipe/pkg/config"
)

func newInclude(root string, mode config.Mode, notifier Notifier) *HTMLInclude {
	return &HTMLInclude{
		Options: Options{Root: root, Mode: mode, Notifier: notifier},
		FileSet: FileSet{Patterns: []string{"src/*.html"}, Dest: "dist"},
	}
}

func TestIncludeExpandsPartials(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.html":           "<body>\n@include('partials/header.html', {\"title\": \"Home\", \"count\": 3})\n<main></main>\n</body>\n",
		"src/partials/header.html": "<h1>@title (@count)</h1>@include('nav.html')",
		"src/partials/nav.html":    "<nav>@title @missing</nav>",
	})

	require.NoError(t, newInclude(root, config.Production, nil).Run(context.Background()))

	assert.Equal(t,
		"<body>\n<h1>Home (3)</h1><nav>Home @missing</nav>\n<main></main>\n</body>\n",
		readTree(t, root, "dist/index.html"))
	assert.False(t, exists(root, "dist/partials/header.html"))
}

func TestIncludeWithoutDirectives(t *testing.T) {
	root := t.TempDir()
	page := "<p>contact me @ home</p>\n"
	writeTree(t, root, map[string]string{"src/about.html": page})

	require.NoError(t, newInclude(root, config.Production, nil).Run(context.Background()))
	assert.Equal(t, page, readTree(t, root, "dist/about.html"))
}

func TestIncludeMissingPartial(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.html": "@include(\"partials/gone.html\")",
	})

	err := newInclude(root, config.Production, nil).Run(context.Background())
	require.Error(t, err)

	var includeErr *IncludeError
	require.True(t, errors.As(err, &includeErr))
	assert.Equal(t, "src/index.html", includeErr.File)
	assert.Contains(t, includeErr.Reason, "src/partials/gone.html")

	notifier := &recordingNotifier{}
	require.NoError(t, newInclude(root, config.Development, notifier).Run(context.Background()))
	assert.Equal(t, 1, notifier.count())
	assert.False(t, exists(root, "dist/index.html"))
}

func TestIncludeCycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.html":      "@include('partials/a.html')",
		"src/partials/a.html": "a @include('b.html')",
		"src/partials/b.html": "b @include('a.html')",
	})

	err := newInclude(root, config.Production, nil).Run(context.Background())
	require.Error(t, err)

	var includeErr *IncludeError
	require.True(t, errors.As(err, &includeErr))
	assert.Contains(t, includeErr.Reason, "cycle")
	assert.Equal(t, []string{"src/index.html", "src/partials/a.html", "src/partials/b.html"}, includeErr.Chain)
}

func TestParseInclude(t *testing.T) {
	target, vars, n, err := parseInclude([]byte(` 'x.html' , {"a": "b"} ) tail`))
	require.NoError(t, err)
	assert.Equal(t, "x.html", target)
	assert.Equal(t, map[string]any{"a": "b"}, vars)
	assert.Equal(t, " tail", ` 'x.html' , {"a": "b"} ) tail`[n:])

	_, _, _, err = parseInclude([]byte(`x.html)`))
	assert.Error(t, err)

	_, _, _, err = parseInclude([]byte(`'x.html', {broken})`))
	assert.Error(t, err)

	_, _, _, err = parseInclude([]byte(`'x.html'`))
	assert.Error(t, err)
}
