package adapters

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Copy copies the matched files byte for byte
type Copy struct {
	Options
	FileSet
	Task string
}

func (c *Copy) Name() string {
	if c.Task != "" {
		return c.Task
	}
	return "copy"
}

func (c *Copy) Outputs() ([]string, error) {
	matches, err := c.expand(c.Patterns)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(matches))
	for _, src := range matches {
		dest, err := c.target(src)
		if err != nil {
			return nil, err
		}
		result = append(result, dest)
	}
	return result, nil
}

func (c *Copy) Run(ctx context.Context) error {
	matches, err := c.expand(c.Patterns)
	if err != nil {
		return err
	}

	for _, src := range matches {
		dest, err := c.target(src)
		if err != nil {
			return err
		}

		if err := copyFile(c.abs(src), c.abs(dest)); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create directory for %s", dest)
	}

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to copy %s to %s", src, dest)
	}

	return eris.Wrapf(out.Close(), "failed to write %s", dest)
}
