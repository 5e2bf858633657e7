package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/weathertiles/core/internal/resample"
)

// Encode rasterizes style over grid (and, for WindBarbs, the accompanying v
// component) and PNG-encodes the result. compression mirrors the teacher's
// png_compression config string (default/speed/best/none).
func Encode(style Style, grid, secondary *resample.ResampledGrid, compression string) ([]byte, error) {
	img, err := Dispatch(style, grid, secondary)
	if err != nil {
		return nil, err
	}
	return encodePNG(img, compression)
}

// Dispatch rasterizes style over the resampled grid(s), one pixel pass per
// build (spec.md §9 forbids re-dispatching per pixel).
func Dispatch(style Style, grid, secondary *resample.ResampledGrid) (*image.NRGBA, error) {
	switch {
	case style.Gradient != nil:
		return RenderGradient(grid, style.Gradient), nil
	case style.Isolines != nil:
		return RenderIsolines(grid, style.Isolines), nil
	case style.WindBarbs != nil:
		if secondary == nil {
			return nil, fmt.Errorf("render: wind barbs require both u and v resampled grids")
		}
		return RenderWindBarbs(grid, secondary, style.WindBarbs), nil
	default:
		return nil, fmt.Errorf("render: style has no variant set")
	}
}

func encodePNG(img image.Image, compression string) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	switch strings.ToLower(strings.TrimSpace(compression)) {
	case "", "default":
		enc.CompressionLevel = png.DefaultCompression
	case "speed", "fast", "best-speed":
		enc.CompressionLevel = png.BestSpeed
	case "best", "best-compression":
		enc.CompressionLevel = png.BestCompression
	case "none", "no", "nocompression", "no-compression":
		enc.CompressionLevel = png.NoCompression
	default:
		enc.CompressionLevel = png.DefaultCompression
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
