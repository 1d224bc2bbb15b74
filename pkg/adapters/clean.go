package adapters

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

// Clean removes every entry inside Dir. The directory itself is kept.
type Clean struct {
	Options
	Dir string
}

func (c *Clean) Name() string { return "clean" }

func (c *Clean) Outputs() ([]string, error) {
	return []string{c.Dir}, nil
}

func (c *Clean) Run(ctx context.Context) error {
	dir := c.abs(c.Dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil
		}
		return eris.Wrapf(err, "failed to list %s", dir)
	}

	for _, entry := range entries {
		item := filepath.Join(dir, entry.Name())
		logging.Log(ctx).Debug().Str("path", item).Msgf("Removing %s", item)

		if err := os.RemoveAll(item); err != nil {
			return eris.Wrapf(err, "could not delete %s", item)
		}
	}

	return nil
}
