package rev

import (
	"bytes"
	"path"
	"sort"
	"strings"
)

type replacement struct {
	from []byte
	to   []byte
}

// Replacer swaps references to manifest keys for their hashed names. A reference has to be delimited by
// characters that can't be part of a path so that other.css doesn't match in another.css.
type Replacer struct {
	// candidates are grouped by their first byte, longest first
	candidates map[byte][]replacement
}

// NewReplacer builds the replacements for a file in dir (relative to the output directory).
// References may be root-relative (css/main.css), absolute (/css/main.css) or relative to dir, with or
// without a leading ./.
func NewReplacer(manifest Manifest, dir string) *Replacer {
	r := &Replacer{candidates: map[byte][]replacement{}}
	seen := map[string]bool{}

	add := func(from, to string) {
		if from == "" || seen[from] {
			return
		}
		seen[from] = true
		r.candidates[from[0]] = append(r.candidates[from[0]], replacement{from: []byte(from), to: []byte(to)})
	}

	for _, key := range manifest.Keys() {
		value := manifest[key]
		add(key, value)
		add("/"+key, "/"+value)
		relKey, relValue := relativePath(dir, key), relativePath(dir, value)
		add(relKey, relValue)
		if !strings.HasPrefix(relKey, "../") {
			add("./"+relKey, "./"+relValue)
		}
	}

	for _, list := range r.candidates {
		sort.SliceStable(list, func(i, j int) bool {
			return len(list[i].from) > len(list[j].from)
		})
	}

	return r
}

func isPathChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '.' || c == '_' || c == '-' || c == '/' || c == '~'
}

// Replace returns data with every delimited reference replaced and whether anything changed
func (r *Replacer) Replace(data []byte) ([]byte, bool) {
	var out bytes.Buffer
	last := 0
	changed := false

	for i := 0; i < len(data); i++ {
		list, ok := r.candidates[data[i]]
		if !ok || (i > 0 && isPathChar(data[i-1])) {
			continue
		}

		for _, candidate := range list {
			end := i + len(candidate.from)
			if !bytes.HasPrefix(data[i:], candidate.from) || (end < len(data) && isPathChar(data[end])) {
				continue
			}

			out.Write(data[last:i])
			out.Write(candidate.to)
			last = end
			i = end - 1
			changed = true
			break
		}
	}

	if !changed {
		return data, false
	}

	out.Write(data[last:])
	return out.Bytes(), true
}

// relativePath returns target relative to dir; both are relative to the same root
func relativePath(dir, target string) string {
	dir = path.Clean(dir)
	if dir == "." || dir == "" {
		return target
	}

	dirParts := splitPath(dir)
	targetParts := splitPath(path.Clean(target))

	common := 0
	for common < len(dirParts) && common < len(targetParts)-1 && dirParts[common] == targetParts[common] {
		common++
	}

	parts := []string{}
	for range dirParts[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, targetParts[common:]...)

	return path.Join(parts...)
}

func splitPath(p string) []string {
	return strings.Split(p, "/")
}
