package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

const includeDirective = "@include("

var includeVarPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// IncludeError describes a directive that could not be expanded
type IncludeError struct {
	// File is the root-relative file containing the directive
	File string
	// Chain lists the files that were being expanded, outermost first
	Chain  []string
	Reason string
}

func (e *IncludeError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("%s: %s (included from %s)", e.File, e.Reason, strings.Join(e.Chain[:len(e.Chain)-1], " -> "))
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// HTMLInclude expands @include('partial.html', {"var": "value"}) directives. Paths are resolved
// relative to the including file and variables are referenced as @var inside the partial.
type HTMLInclude struct {
	Options
	FileSet
}

func (h *HTMLInclude) Name() string { return "html" }

func (h *HTMLInclude) Outputs() ([]string, error) {
	matches, err := h.expand(h.Patterns)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(matches))
	for _, src := range matches {
		dest, err := h.target(src)
		if err != nil {
			return nil, err
		}
		result = append(result, dest)
	}

	return result, nil
}

func (h *HTMLInclude) Run(ctx context.Context) error {
	matches, err := h.expand(h.Patterns)
	if err != nil {
		return err
	}

	for _, src := range matches {
		dest, err := h.target(src)
		if err != nil {
			return err
		}

		content, err := h.render(src, nil, nil)
		if err != nil {
			if err = h.recoverable(ctx, h.Name(), err); err != nil {
				return err
			}
			continue
		}

		logging.Log(ctx).Debug().Str("path", dest).Msgf("Writing %s", dest)
		if err = writeFile(h.abs(dest), content); err != nil {
			return err
		}
	}

	return nil
}

func (h *HTMLInclude) render(file string, vars map[string]any, chain []string) ([]byte, error) {
	for _, parent := range chain {
		if parent == file {
			return nil, &IncludeError{
				File:   chain[len(chain)-1],
				Chain:  chain,
				Reason: "include cycle through " + file,
			}
		}
	}
	chain = append(chain, file)

	data, err := os.ReadFile(h.abs(file))
	if err != nil {
		if os.IsNotExist(err) && len(chain) > 1 {
			return nil, &IncludeError{
				File:   chain[len(chain)-2],
				Chain:  chain[:len(chain)-1],
				Reason: "missing partial " + file,
			}
		}
		return nil, eris.Wrapf(err, "failed to read %s", file)
	}

	if len(vars) > 0 {
		data = substituteVars(data, vars)
	}

	var out bytes.Buffer
	for {
		pos := bytes.Index(data, []byte(includeDirective))
		if pos < 0 {
			out.Write(data)
			break
		}

		out.Write(data[:pos])
		target, local, length, err := parseInclude(data[pos+len(includeDirective):])
		if err != nil {
			return nil, &IncludeError{File: file, Chain: chain, Reason: err.Error()}
		}

		merged := make(map[string]any, len(vars)+len(local))
		for k, v := range vars {
			merged[k] = v
		}
		for k, v := range local {
			merged[k] = v
		}

		included, err := h.render(path.Join(path.Dir(file), target), merged, chain)
		if err != nil {
			return nil, err
		}

		out.Write(included)
		data = data[pos+len(includeDirective)+length:]
	}

	return out.Bytes(), nil
}

// parseInclude reads the arguments of a directive up to and including the closing parenthesis
// and returns the number of bytes consumed.
func parseInclude(data []byte) (string, map[string]any, int, error) {
	pos := skipSpace(data, 0)
	if pos >= len(data) || (data[pos] != '\'' && data[pos] != '"') {
		return "", nil, 0, eris.New("expected a quoted path after @include(")
	}

	quote := data[pos]
	end := bytes.IndexByte(data[pos+1:], quote)
	if end < 0 {
		return "", nil, 0, eris.New("unterminated path in @include")
	}
	target := string(data[pos+1 : pos+1+end])
	pos = skipSpace(data, pos+end+2)

	var vars map[string]any
	if pos < len(data) && data[pos] == ',' {
		pos = skipSpace(data, pos+1)

		decoder := json.NewDecoder(bytes.NewReader(data[pos:]))
		if err := decoder.Decode(&vars); err != nil {
			return "", nil, 0, eris.Wrap(err, "invalid variables in @include")
		}
		pos = skipSpace(data, pos+int(decoder.InputOffset()))
	}

	if pos >= len(data) || data[pos] != ')' {
		return "", nil, 0, eris.New("missing ) after @include")
	}

	return target, vars, pos + 1, nil
}

func skipSpace(data []byte, pos int) int {
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\t' || data[pos] == '\n' || data[pos] == '\r') {
		pos++
	}
	return pos
}

func substituteVars(data []byte, vars map[string]any) []byte {
	return includeVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		value, ok := vars[string(match[1:])]
		if !ok {
			return match
		}

		switch v := value.(type) {
		case string:
			return []byte(v)
		case nil:
			return nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return match
			}
			return encoded
		}
	})
}
