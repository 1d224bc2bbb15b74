package adapters

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/logging"
)

// MinSuffix is inserted before the extension of every emitted stylesheet
const MinSuffix = ".min"

// Styles compiles stylesheets, adds vendor prefixes and minifies (production) or maps (development) them
type Styles struct {
	Options
	FileSet
	Compiler StyleCompiler
	Targets  []config.Target
}

func (s *Styles) Name() string { return "styles" }

func (s *Styles) sources() ([]string, error) {
	matches, err := s.expand(s.Patterns)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(matches))
	for _, item := range matches {
		// partials are only compiled as part of the stylesheets importing them
		if !strings.HasPrefix(path.Base(item), "_") {
			result = append(result, item)
		}
	}
	return result, nil
}

func (s *Styles) output(src string) (string, error) {
	dest, err := s.target(src)
	if err != nil {
		return "", err
	}
	return replaceExt(dest, MinSuffix+".css"), nil
}

func (s *Styles) Outputs() ([]string, error) {
	sources, err := s.sources()
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, src := range sources {
		dest, err := s.output(src)
		if err != nil {
			return nil, err
		}

		result = append(result, dest)
		if !s.Mode.IsProduction() {
			result = append(result, dest+".map")
		}
	}
	return result, nil
}

func (s *Styles) Run(ctx context.Context) error {
	sources, err := s.sources()
	if err != nil {
		return err
	}

	for _, src := range sources {
		err := s.compile(ctx, src)
		if err = s.recoverable(ctx, s.Name(), err); err != nil {
			return err
		}
	}

	return nil
}

func (s *Styles) compile(ctx context.Context, src string) error {
	dest, err := s.output(src)
	if err != nil {
		return err
	}

	absSrc := s.abs(src)
	css, err := s.Compiler.Compile(ctx, CompileRequest{
		Source:    absSrc,
		LoadPaths: []string{filepath.Dir(absSrc)},
		SourceMap: !s.Mode.IsProduction(),
	})
	if err != nil {
		return eris.Wrapf(err, "failed to compile %s", src)
	}

	opts := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    engines(s.Targets),
		Sourcefile: src,
		LogLevel:   api.LogLevelSilent,
	}

	if s.Mode.IsProduction() {
		opts.MinifyWhitespace = true
		opts.MinifySyntax = true
		opts.MinifyIdentifiers = true
	} else {
		opts.Sourcemap = api.SourceMapExternal
		opts.SourcesContent = api.SourcesContentInclude
	}

	result := api.Transform(string(css), opts)
	if err := messagesToError("failed to process "+src, result.Errors); err != nil {
		return err
	}

	code := result.Code
	if !s.Mode.IsProduction() {
		mapName := path.Base(dest) + ".map"
		if err := writeFile(s.abs(dest+".map"), result.Map); err != nil {
			return err
		}
		code = append(code, []byte("/*# sourceMappingURL="+mapName+" */\n")...)
	}

	logging.Log(ctx).Debug().Str("path", dest).Msgf("Wrote %s (%d bytes)", dest, len(code))
	return writeFile(s.abs(dest), code)
}
