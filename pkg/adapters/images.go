package adapters

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"

	"github.com/ngld/assetpipe/pkg/logging"
)

// Images optimizes raster and vector images. Images whose output is newer than the source are skipped.
type Images struct {
	Options
	FileSet
	JPEGQuality int
	// Progress enables a progress bar written to ProgressOut
	Progress    bool
	ProgressOut io.Writer
}

func (i *Images) Name() string { return "images" }

func (i *Images) Outputs() ([]string, error) {
	matches, err := i.expand(i.Patterns)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(matches))
	for _, src := range matches {
		dest, err := i.target(src)
		if err != nil {
			return nil, err
		}
		result = append(result, dest)
	}
	return result, nil
}

func (i *Images) progressBar(length int) *progressbar.ProgressBar {
	if !i.Progress || i.ProgressOut == nil {
		return progressbar.NewOptions(length, progressbar.OptionSetVisibility(false))
	}

	out := i.ProgressOut
	return progressbar.NewOptions(length,
		progressbar.OptionSetDescription("Optimizing images"),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}

func (i *Images) Run(ctx context.Context) error {
	matches, err := i.expand(i.Patterns)
	if err != nil {
		return err
	}

	bar := i.progressBar(len(matches))
	defer bar.Finish()

	optimized := 0
	for _, src := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		dest, err := i.target(src)
		if err != nil {
			return err
		}

		newer, err := isNewer(i.abs(dest), i.abs(src))
		if err != nil {
			return err
		}

		if newer {
			logging.Log(ctx).Debug().Str("path", src).Msgf("%s is up to date", dest)
		} else {
			err = i.optimize(ctx, src, dest)
			if err = i.recoverable(ctx, i.Name(), err); err != nil {
				return err
			}
			optimized++
		}

		_ = bar.Add(1)
	}

	logging.Log(ctx).Debug().Msgf("optimized %d of %d images", optimized, len(matches))
	return nil
}

// isNewer reports whether dest exists and was modified after src
func isNewer(dest, src string) (bool, error) {
	destInfo, err := os.Stat(dest)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "failed to check output %s", dest)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, eris.Wrapf(err, "failed to check input %s", src)
	}

	return destInfo.ModTime().After(srcInfo.ModTime()), nil
}

func (i *Images) optimize(ctx context.Context, src, dest string) error {
	original, err := os.ReadFile(i.abs(src))
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", src)
	}

	var result []byte
	switch strings.ToLower(path.Ext(src)) {
	case ".png":
		result, err = optimizePNG(original)
	case ".jpg", ".jpeg":
		result, err = optimizeJPEG(original, i.JPEGQuality)
	case ".svg":
		result, err = minifySVG(original)
	default:
		result = original
	}
	if err != nil {
		return eris.Wrapf(err, "failed to optimize %s", src)
	}

	if len(result) >= len(original) {
		result = original
	}

	logging.Log(ctx).Debug().Str("path", src).Msgf("%s: %d -> %d bytes", src, len(original), len(result))
	return writeFile(i.abs(dest), result)
}

func optimizePNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optimizeJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if quality <= 0 {
		quality = 90
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
