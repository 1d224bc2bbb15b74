package adapters

import (
	"context"
	"path"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/logging"
)

// Scripts bundles a single entry point and everything it imports into one minified file
type Scripts struct {
	Options
	// Entry is the root-relative entry script
	Entry string
	// Dest is the root-relative output file
	Dest    string
	Targets []config.Target
}

func (s *Scripts) Name() string { return "scripts" }

func (s *Scripts) Outputs() ([]string, error) {
	result := []string{s.Dest}
	if !s.Mode.IsProduction() {
		result = append(result, s.Dest+".map")
	}
	return result, nil
}

func (s *Scripts) Run(ctx context.Context) error {
	matches, err := s.expand([]string{s.Entry})
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		logging.Log(ctx).Debug().Msgf("%s not found, nothing to bundle", s.Entry)
		return nil
	}

	return s.recoverable(ctx, s.Name(), s.bundle(ctx))
}

func (s *Scripts) bundle(ctx context.Context) error {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return eris.Wrap(err, "failed to resolve project root")
	}

	opts := api.BuildOptions{
		AbsWorkingDir:     root,
		EntryPoints:       []string{filepath.Join(root, filepath.FromSlash(s.Entry))},
		Outfile:           filepath.Join(root, filepath.FromSlash(s.Dest)),
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		Target:            api.ES2015,
		Engines:           engines(s.Targets),
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	}

	if !s.Mode.IsProduction() {
		opts.Sourcemap = api.SourceMapLinked
	}

	result := api.Build(opts)
	if err := messagesToError("failed to bundle "+s.Entry, result.Errors); err != nil {
		return err
	}

	for _, msg := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		logging.Log(ctx).Warn().Msg(msg)
	}

	for _, file := range result.OutputFiles {
		rel, err := filepath.Rel(root, file.Path)
		if err != nil {
			return eris.Wrapf(err, "unexpected output %s", file.Path)
		}

		logging.Log(ctx).Debug().Str("path", rel).Msgf("Wrote %s (%d bytes)", path.Base(file.Path), len(file.Contents))
		if err := writeFile(file.Path, file.Contents); err != nil {
			return err
		}
	}

	return nil
}
