// Package rev implements cache busting. The hash step renames static assets to include a content hash and
// records the renames in a manifest, the rewrite step updates references to the renamed files.
package rev

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// ManifestName is the file the manifest is persisted to, relative to the output directory
const ManifestName = "rev.json"

// ErrManifestMissing is returned by the rewrite step if the hash step didn't run before
var ErrManifestMissing = eris.New("revision manifest not found")

// Manifest maps original output paths to their hashed names. Both are slash-separated and relative to
// the output directory.
type Manifest map[string]string

// Keys returns the original paths, longest first
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Save writes the manifest to the given output directory
func (m Manifest) Save(dist string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode manifest")
	}
	data = append(data, '\n')

	dest := filepath.Join(dist, ManifestName)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write %s", dest)
	}
	return nil
}

// LoadManifest reads the manifest from the given output directory
func LoadManifest(dist string) (Manifest, error) {
	src := filepath.Join(dist, ManifestName)
	data, err := os.ReadFile(src)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrManifestMissing, "%s does not exist", src)
		}
		return nil, eris.Wrapf(err, "failed to read %s", src)
	}

	manifest := Manifest{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", src)
	}
	return manifest, nil
}
