package rev

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ngld/assetpipe/pkg/glob"
	"github.com/ngld/assetpipe/pkg/logging"
	"github.com/ngld/assetpipe/pkg/pipeline"
)

// Rewriter updates references inside the stylesheets and HTML documents of an output directory
type Rewriter struct {
	// Root is the project directory
	Root string
	// Dist is the output directory relative to Root
	Dist string
}

func (r *Rewriter) dist() string {
	return filepath.Join(r.Root, filepath.FromSlash(r.Dist))
}

// Stylesheets lists the stylesheets to rewrite, relative to Root
func (r *Rewriter) Stylesheets() ([]string, error) {
	return glob.Expand(r.Root, path.Join(r.Dist, "css/*.css"))
}

// Documents lists the HTML documents to rewrite, relative to Root
func (r *Rewriter) Documents() ([]string, error) {
	return glob.Expand(r.Root, path.Join(r.Dist, "*.html"), path.Join(r.Dist, "**/*.html"))
}

// Run loads the manifest and rewrites stylesheets and documents in parallel. Nothing is touched if the
// manifest can't be loaded.
func (r *Rewriter) Run(ctx context.Context) error {
	manifest, err := LoadManifest(r.dist())
	if err != nil {
		return err
	}

	stylesheets, err := r.Stylesheets()
	if err != nil {
		return err
	}

	documents, err := r.Documents()
	if err != nil {
		return err
	}

	graph, err := pipeline.NewGraph(pipeline.Parallel("rewrite",
		pipeline.Task("rewrite-css", stylesheets, func(ctx context.Context) error {
			return r.rewriteAll(ctx, manifest, stylesheets, RewriteCSS)
		}),
		pipeline.Task("rewrite-html", documents, func(ctx context.Context) error {
			return r.rewriteAll(ctx, manifest, documents, RewriteHTML)
		}),
	))
	if err != nil {
		return err
	}

	return graph.Run(ctx)
}

type rewriteFunc func(replacer *Replacer, data []byte) ([]byte, bool, error)

func (r *Rewriter) rewriteAll(ctx context.Context, manifest Manifest, files []string, fn rewriteFunc) error {
	for _, item := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := item
		if r.Dist != "." {
			rel = item[len(path.Clean(r.Dist))+1:]
		}

		src := filepath.Join(r.Root, filepath.FromSlash(item))
		data, err := os.ReadFile(src)
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", item)
		}

		result, changed, err := fn(NewReplacer(manifest, path.Dir(rel)), data)
		if err != nil {
			return eris.Wrapf(err, "failed to rewrite %s", item)
		}

		if !changed {
			continue
		}

		logging.Log(ctx).Debug().Str("path", item).Msgf("Rewrote references in %s", item)
		if err := os.WriteFile(src, result, 0o644); err != nil {
			return eris.Wrapf(err, "failed to write %s", item)
		}
	}

	return nil
}

// RewriteCSS replaces references anywhere in the stylesheet
func RewriteCSS(replacer *Replacer, data []byte) ([]byte, bool, error) {
	result, changed := replacer.Replace(data)
	return result, changed, nil
}

// RewriteHTML replaces references inside tags (attributes) and inline <style> elements. All other
// tokens are copied unchanged.
func RewriteHTML(replacer *Replacer, data []byte) ([]byte, bool, error) {
	var out bytes.Buffer
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	inStyle := false
	changed := false

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if eris.Is(tokenizer.Err(), io.EOF) {
				break
			}
			return nil, false, tokenizer.Err()
		}

		// TagName lowercases the underlying buffer
		raw := append([]byte(nil), tokenizer.Raw()...)
		rewrite := false

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			rewrite = true
			name, _ := tokenizer.TagName()
			if tt == html.StartTagToken && atom.Lookup(name) == atom.Style {
				inStyle = true
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if atom.Lookup(name) == atom.Style {
				inStyle = false
			}
		case html.TextToken:
			rewrite = inStyle
		}

		if rewrite {
			if result, ok := replacer.Replace(raw); ok {
				out.Write(result)
				changed = true
				continue
			}
		}
		out.Write(raw)
	}

	if !changed {
		return data, false, nil
	}
	return out.Bytes(), true, nil
}
