// Package glob resolves shell-style file patterns (including ** and {a,b}) relative to a project root.
package glob

import (
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

func shellReadDir(path string) ([]os.FileInfo, error) {
	if path == "" {
		path = "."
	}

	return ioutil.ReadDir(path)
}

// Expand resolves the given patterns relative to base and returns the matching regular files as
// slash-separated paths relative to base. Patterns that match nothing are skipped. The result is sorted
// and free of duplicates.
func Expand(base string, patterns ...string) ([]string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", base)
	}

	// Only the pattern goes through the parser; the base is handed over as the working directory so
	// shell characters in project paths stay literal.
	cfg := expand.Config{
		Env:      expand.ListEnviron("PWD=" + absBase),
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	parser := syntax.NewParser()
	seen := map[string]bool{}
	result := []string{}

	for _, item := range patterns {
		words := make([]*syntax.Word, 0)
		err := parser.Words(strings.NewReader(quoteSpaces(filepath.ToSlash(item))), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse pattern %s", item)
		}

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// If a pattern didn't match anything, it's returned as a result. Skip those results.
			if HasMeta(match) {
				continue
			}

			full := filepath.FromSlash(match)
			if !filepath.IsAbs(full) {
				full = filepath.Join(absBase, full)
			}

			info, err := os.Stat(full)
			if err != nil {
				if eris.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, eris.Wrapf(err, "failed to check %s", match)
			}

			if info.IsDir() {
				continue
			}

			rel, err := filepath.Rel(absBase, full)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to relate %s to %s", match, base)
			}

			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				seen[rel] = true
				result = append(result, rel)
			}
		}
	}

	sort.Strings(result)
	return result, nil
}

// Match reports whether the slash-separated path name matches pattern.
func Match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// MatchAny reports whether name matches at least one of the patterns.
func MatchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if Match(pattern, name) {
			return true
		}
	}
	return false
}

// Base returns the static directory prefix of pattern, i.e. every path element before the first one
// containing a meta character. For "src/scss/*.scss" this is "src/scss".
func Base(pattern string) string {
	pattern = path.Clean(filepath.ToSlash(pattern))
	parts := strings.Split(pattern, "/")

	static := make([]string, 0, len(parts))
	for idx, part := range parts {
		if HasMeta(part) {
			break
		}

		// the last element of a pattern without meta characters is the file itself
		if idx == len(parts)-1 {
			break
		}
		static = append(static, part)
	}

	if len(static) == 0 {
		return "."
	}
	return strings.Join(static, "/")
}

// HasMeta reports whether s contains any glob meta characters.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func quoteSpaces(pattern string) string {
	return strings.ReplaceAll(pattern, " ", `\ `)
}
