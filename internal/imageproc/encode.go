package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/median"
)

const (
	// LosslessQualityThreshold is the PNG quality at and above which pixels
	// are kept exactly and only container compression changes.
	LosslessQualityThreshold = 75

	defaultJPEGQuality = 90
	maxQuality         = 100
)

// ClampQuality maps a requested quality into [1, 100]. Zero means unset
// and is returned unchanged.
func ClampQuality(q int) int {
	switch {
	case q == 0:
		return 0
	case q < 0:
		return 1
	case q > maxQuality:
		return maxQuality
	default:
		return q
	}
}

// outputFormat picks the encoding for a variant. GIF cannot carry a
// quality so an explicit quality forces JPEG.
func outputFormat(src Format, quality int) Format {
	if src == FormatGIF && quality > 0 {
		return FormatJPEG
	}
	return src
}

func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		if quality <= 0 {
			quality = defaultJPEGQuality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		switch {
		case quality <= 0:
			err = imaging.Encode(&buf, img, imaging.PNG)
		case quality < LosslessQualityThreshold:
			err = encodeQuantizedPNG(&buf, img, quality)
		default:
			err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
		}
	case FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImageFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// paletteSize scales the PNG palette with quality: quality just below the
// lossless threshold keeps the full 256 colors.
func paletteSize(quality int) int {
	n := quality * 256 / LosslessQualityThreshold
	return min(max(n, 2), 256)
}

func encodeQuantizedPNG(buf *bytes.Buffer, img image.Image, quality int) error {
	n := paletteSize(quality)
	palette := median.Quantizer(n).Quantize(make(color.Palette, 0, n), img)
	bounds := img.Bounds()
	paletted := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(buf, paletted)
}

const (
	denoiseSigma = 0.5
	sharpenSigma = 0.5
)

// finish applies the fixed post-processing run whenever a variant was
// resized or re-encoded at an explicit quality: a light denoise, then
// sharpening. Both steps return NRGBA, so every input color model leaves
// here normalized.
func finish(img image.Image) image.Image {
	return imaging.Sharpen(imaging.Blur(img, denoiseSigma), sharpenSigma)
}
