package adapters

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"
)

const svgMime = "image/svg+xml"

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc(svgMime, svg.Minify)
	return m
}

func minifySVG(data []byte) ([]byte, error) {
	return minifier.Bytes(svgMime, data)
}
