package adapters

import (
	"context"

	"github.com/ngld/assetpipe/pkg/shell"
)

// StyleCompiler turns an extended-syntax stylesheet into plain CSS
type StyleCompiler interface {
	Compile(ctx context.Context, req CompileRequest) ([]byte, error)
}

// CompileRequest describes a single stylesheet compilation
type CompileRequest struct {
	// Source is the absolute path of the stylesheet
	Source    string
	LoadPaths []string
	// SourceMap requests that the compiler embeds its source map in the output
	SourceMap bool
}

// DartSass runs the sass executable
type DartSass struct {
	Binary string
}

func (d DartSass) Compile(ctx context.Context, req CompileRequest) ([]byte, error) {
	binary := d.Binary
	if binary == "" {
		binary = "sass"
	}

	args := []string{binary, "--style=expanded", "--no-charset"}
	for _, dir := range req.LoadPaths {
		args = append(args, "--load-path="+dir)
	}

	if req.SourceMap {
		args = append(args, "--embed-source-map", "--embed-sources")
	} else {
		args = append(args, "--no-source-map")
	}
	args = append(args, req.Source)

	res, err := shell.Run(ctx, shell.Command{Args: args})
	if err != nil {
		return nil, err
	}

	return res.Stdout, nil
}
