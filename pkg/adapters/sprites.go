package adapters

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/logging"
)

const spriteStyle = `<style>:root>svg{display:none}:root>svg:target{display:block}</style>`

// Sprites minifies every icon and stacks them into a single SVG. Each icon is addressable as
// sprite.svg#<file name without extension>.
type Sprites struct {
	Options
	Patterns []string
	// Dest is the root-relative sprite file
	Dest string
}

func (s *Sprites) Name() string { return "svg-sprites" }

func (s *Sprites) Outputs() ([]string, error) {
	return []string{s.Dest}, nil
}

type spriteIcon struct {
	id      string
	attrs   []xml.Attr
	content []byte
}

func (s *Sprites) Run(ctx context.Context) error {
	matches, err := s.expand(s.Patterns)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		return nil
	}

	icons := make([]spriteIcon, 0, len(matches))
	seen := map[string]string{}
	for _, src := range matches {
		id := strings.TrimSuffix(path.Base(src), path.Ext(src))
		if other, ok := seen[id]; ok {
			return eris.Errorf("%s and %s would both use the id %s", other, src, id)
		}
		seen[id] = src

		data, err := os.ReadFile(s.abs(src))
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", src)
		}

		data, err = minifySVG(data)
		if err != nil {
			return eris.Wrapf(err, "failed to minify %s", src)
		}

		icon, err := parseIcon(id, data)
		if err != nil {
			return eris.Wrapf(err, "failed to parse %s", src)
		}

		icons = append(icons, icon)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
	buf.WriteString(spriteStyle)
	for _, icon := range icons {
		buf.WriteString("<svg")
		for _, attr := range icon.attrs {
			writeAttr(&buf, attr.Name.Local, attr.Value)
		}
		writeAttr(&buf, "id", icon.id)
		buf.WriteString(">")
		buf.Write(icon.content)
		buf.WriteString("</svg>")
	}
	buf.WriteString("</svg>")

	logging.Log(ctx).Debug().Str("path", s.Dest).Msgf("Stacked %d icons into %s", len(icons), s.Dest)
	return writeFile(s.abs(s.Dest), buf.Bytes())
}

// keptAttrs are copied from an icon's root element to its nested <svg>
var keptAttrs = map[string]bool{
	"viewBox":             true,
	"preserveAspectRatio": true,
	"fill":                true,
	"stroke":              true,
	"stroke-width":        true,
	"stroke-linecap":      true,
	"stroke-linejoin":     true,
}

func parseIcon(id string, data []byte) (spriteIcon, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return spriteIcon{}, eris.New("no <svg> element found")
		}
		if err != nil {
			return spriteIcon{}, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local != "svg" {
			return spriteIcon{}, eris.Errorf("expected <svg> root element but found <%s>", start.Name.Local)
		}

		icon := spriteIcon{id: id}
		for _, attr := range start.Attr {
			if attr.Name.Space == "" && keptAttrs[attr.Name.Local] {
				icon.attrs = append(icon.attrs, attr)
			}
		}

		offset := int(decoder.InputOffset())
		end := bytes.LastIndex(data, []byte("</svg>"))
		if end > offset {
			icon.content = bytes.TrimSpace(data[offset:end])
		}

		return icon, nil
	}
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteString(" " + name + `="`)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}
