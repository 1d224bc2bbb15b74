package rev

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

// HashLength is the number of hex digits embedded in a hashed file name
const HashLength = 10

// Extensions lists the file types which are renamed by the hash step
var Extensions = map[string]bool{
	".css":   true,
	".js":    true,
	".svg":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".woff2": true,
	".woff":  true,
}

// HashedName inserts the hash before the extension: css/main.min.css becomes css/main.min-<hash>.css
func HashedName(name string, content []byte) string {
	sum := md5.Sum(content)
	digest := hex.EncodeToString(sum[:])[:HashLength]

	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + digest + ext
}

// Hash renames every static asset below dist and persists the resulting manifest
func Hash(ctx context.Context, dist string) (Manifest, error) {
	files := []string{}
	err := filepath.WalkDir(dist, func(item string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.Type().IsRegular() && Extensions[strings.ToLower(filepath.Ext(item))] {
			files = append(files, item)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to scan %s", dist)
	}

	manifest := Manifest{}
	for _, item := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(dist, item)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve %s", item)
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(item)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read %s", rel)
		}

		hashed := HashedName(rel, content)
		if err := os.WriteFile(filepath.Join(dist, filepath.FromSlash(hashed)), content, 0o644); err != nil {
			return nil, eris.Wrapf(err, "failed to write %s", hashed)
		}

		if err := os.Remove(item); err != nil {
			return nil, eris.Wrapf(err, "failed to remove %s", rel)
		}

		logging.Log(ctx).Debug().Str("path", hashed).Msgf("%s -> %s", rel, hashed)
		manifest[rel] = hashed
	}

	if err := manifest.Save(dist); err != nil {
		return nil, err
	}

	logging.Log(ctx).Info().Msgf("Hashed %d files", len(manifest))
	return manifest, nil
}
