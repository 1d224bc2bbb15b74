package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/assetpipe/pkg/adapters"
	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/glob"
	"github.com/ngld/assetpipe/pkg/pipeline"
	"github.com/ngld/assetpipe/pkg/rev"
)

type plainCompiler struct{}

func (plainCompiler) Compile(ctx context.Context, req adapters.CompileRequest) ([]byte, error) {
	return os.ReadFile(req.Source)
}

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	return cfg
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		dest := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
		require.NoError(t, os.WriteFile(dest, []byte(content), 0o644))
	}
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	result := map[string]string{}
	require.NoError(t, filepath.WalkDir(dir, func(item string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		data, err := os.ReadFile(item)
		if err != nil {
			return err
		}

		rel, _ := filepath.Rel(dir, item)
		result[filepath.ToSlash(rel)] = string(data)
		return nil
	}))
	return result
}

func samplePNG(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.String()
}

func sampleProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.html":              "<html><head><link rel=\"stylesheet\" href=\"css/main.min.css\"></head><body>@include('partials/nav.html', {\"active\": \"home\"})<script src=\"js/script.js\"></script></body></html>\n",
		"src/partials/nav.html":       "<nav class=\"@active\"><img src=\"img/logo.png\"></nav>",
		"src/scss/main.scss":          "body {\n  background: url(../img/logo.png);\n}\n",
		"src/scss/_vars.scss":         "$color: red;\n",
		"src/js/script.js":            "import { run } from './lib.js';\nrun();\n",
		"src/js/lib.js":               "export function run() { document.body.dataset.ready = 'yes'; }\n",
		"src/img/logo.png":            samplePNG(t),
		"src/img/svg/star.svg":        "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 24 24\"><path d=\"M12 2 22 22H2z\"/></svg>",
		"src/resources/robots.txt":    "User-agent: *\n",
		"src/resources/fonts/a.woff2": "font",
		"dist/stale.txt":              "left over from an earlier build",
	})
	return root
}

func TestProductionBuild(t *testing.T) {
	root := sampleProject(t)
	// only top-level images are optimized; nested ones merely trigger a rebuild while watching
	writeTree(t, root, map[string]string{"src/img/photos/cat.png": samplePNG(t)})
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	graph, err := project.Production()
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))

	tree := snapshot(t, filepath.Join(root, "dist"))
	assert.NotContains(t, tree, "stale.txt")
	assert.NotContains(t, tree, "partials/nav.html")
	assert.NotContains(t, tree, "css/_vars.min.css")
	assert.NotContains(t, tree, "css/main.min.css.map")
	assert.NotContains(t, tree, "js/script.js.map")

	assert.Contains(t, tree["index.html"], `<nav class="home"><img src="img/logo.png"></nav>`)
	assert.Contains(t, tree["css/main.min.css"], "url(../img/logo.png)")
	assert.Contains(t, tree["js/script.js"], "yes")
	assert.Equal(t, "User-agent: *\n", tree["robots.txt"])
	assert.Equal(t, "font", tree["fonts/a.woff2"])
	assert.Contains(t, tree, "img/logo.png")
	assert.NotContains(t, tree, "img/photos/cat.png")
	assert.Contains(t, tree["img/sprite.svg"], `id="star"`)
}

func TestCleanFailureStopsBuild(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions aren't enforced for root")
	}

	root := sampleProject(t)
	locked := filepath.Join(root, "dist", "locked")
	writeTree(t, root, map[string]string{"dist/locked/keep.txt": "can't be removed"})
	require.NoError(t, os.Chmod(locked, 0o500))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}
	graph, err := project.Production()
	require.NoError(t, err)
	require.Error(t, graph.Run(context.Background()))

	dist := filepath.Join(root, "dist")
	assert.NoDirExists(t, filepath.Join(dist, "css"))
	assert.NoDirExists(t, filepath.Join(dist, "js"))
	assert.NoFileExists(t, filepath.Join(dist, "index.html"))
	assert.FileExists(t, filepath.Join(locked, "keep.txt"))
}

func TestDevelopmentBuild(t *testing.T) {
	root := sampleProject(t)
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	set, err := project.Adapters(config.Development)
	require.NoError(t, err)
	nodes, err := set.nodes()
	require.NoError(t, err)

	graph, err := pipeline.NewGraph(nodes.parallel("build"))
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))

	tree := snapshot(t, filepath.Join(root, "dist"))
	assert.NotContains(t, tree, "stale.txt")
	assert.Contains(t, tree, "css/main.min.css.map")
	assert.Contains(t, tree["css/main.min.css"], "sourceMappingURL=main.min.css.map")
	assert.Contains(t, tree, "js/script.js.map")
	assert.Contains(t, tree["js/script.js"], "sourceMappingURL=script.js.map")
	assert.Contains(t, tree["index.html"], `<nav class="home">`)
	assert.Contains(t, tree["img/sprite.svg"], `id="star"`)
}

func TestProductionBuildIsIdempotent(t *testing.T) {
	root := sampleProject(t)
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	graph, err := project.Production()
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))
	first := snapshot(t, filepath.Join(root, "dist"))

	graph, err = project.Production()
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))

	assert.Equal(t, first, snapshot(t, filepath.Join(root, "dist")))
}

func TestBuildThenCache(t *testing.T) {
	root := sampleProject(t)
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	graph, err := project.Production()
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))

	graph, err = project.Cache()
	require.NoError(t, err)
	require.NoError(t, graph.Run(context.Background()))

	dist := filepath.Join(root, "dist")
	manifest, err := rev.LoadManifest(dist)
	require.NoError(t, err)

	for _, key := range []string{"css/main.min.css", "js/script.js", "img/logo.png", "img/sprite.svg", "fonts/a.woff2"} {
		assert.Contains(t, manifest, key)
	}
	assert.NotContains(t, manifest, "robots.txt")
	assert.NotContains(t, manifest, "index.html")

	tree := snapshot(t, dist)
	for key, value := range manifest {
		assert.NotContains(t, tree, key)
		assert.Contains(t, tree, value)
	}

	index := tree["index.html"]
	assert.Contains(t, index, `href="`+manifest["css/main.min.css"]+`"`)
	assert.Contains(t, index, `src="`+manifest["js/script.js"]+`"`)
	assert.Contains(t, index, `src="`+manifest["img/logo.png"]+`"`)
	assert.Contains(t, tree[manifest["css/main.min.css"]], "url(../"+manifest["img/logo.png"]+")")
}

func TestCacheWithoutBuild(t *testing.T) {
	root := t.TempDir()
	project := &Project{Root: root, Config: defaultConfig(t)}

	graph, err := project.Cache()
	require.NoError(t, err)
	assert.Error(t, graph.Run(context.Background()))
	assert.NoFileExists(t, filepath.Join(root, "dist", rev.ManifestName))
}

func TestConflictingOutputsAreRejected(t *testing.T) {
	root := sampleProject(t)
	writeTree(t, root, map[string]string{"src/resources/img/logo.png": "copy"})
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	// production runs the adapters one after another, so only development checks the outputs
	_, err := project.Production()
	require.NoError(t, err)

	_, err = project.Development()
	require.Error(t, err)

	var conflict *pipeline.ScopeConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "assets", conflict.Group)
}

func TestDevelopmentGraph(t *testing.T) {
	root := sampleProject(t)
	project := &Project{Root: root, Config: defaultConfig(t), Compiler: plainCompiler{}}

	graph, err := project.Development()
	require.NoError(t, err)
	assert.Equal(t, "default", graph.Root().Name())
	assert.NotNil(t, project.Notifier)
}

func TestBindings(t *testing.T) {
	project := &Project{Root: t.TempDir(), Config: defaultConfig(t)}
	set, err := project.Adapters(config.Development)
	require.NoError(t, err)

	nodes, err := set.nodes()
	require.NoError(t, err)

	matches := func(file string) []string {
		result := []string{}
		for _, binding := range project.bindings(nodes) {
			if glob.MatchAny(binding.Patterns, file) {
				result = append(result, binding.Node.Name())
			}
		}
		return result
	}

	assert.Equal(t, []string{"styles"}, matches("src/scss/base/_vars.scss"))
	assert.Equal(t, []string{"scripts"}, matches("src/js/lib/util.js"))
	assert.Equal(t, []string{"html"}, matches("src/partials/nav.html"))
	assert.Equal(t, []string{"images"}, matches("src/img/photos/cat.jpg"))
	assert.Equal(t, []string{"svg-sprites"}, matches("src/img/svg/star.svg"))
	assert.Empty(t, matches("src/resources/robots.txt"))
}
