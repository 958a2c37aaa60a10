// Package imageproc normalizes images at ingest and derives resized,
// re-encoded and watermarked variants at serve time.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"filevault/internal/config"
	"filevault/internal/models"
)

// Options configures a Processor.
type Options struct {
	RotateEXIF        bool
	StripEXIF         bool
	MaxSize           models.Box
	MaxCrop           models.Box
	IngestJPEGQuality int
	Watermark         WatermarkOptions
}

// OptionsFromConfig builds processor options, loading the watermark
// overlay when a path is configured.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	opts := Options{
		RotateEXIF:        cfg.Images.RotateEXIF,
		StripEXIF:         cfg.Images.StripEXIF,
		MaxSize:           models.Box{Width: cfg.Images.MaxWidth, Height: cfg.Images.MaxHeight},
		MaxCrop:           models.Box{Width: cfg.Images.MaxCropWidth, Height: cfg.Images.MaxCropHeight},
		IngestJPEGQuality: cfg.Images.IngestJPEGQuality,
		Watermark: WatermarkOptions{
			MinWidth:      cfg.Watermark.MinWidth,
			MinHeight:     cfg.Watermark.MinHeight,
			RelativeWidth: cfg.Watermark.RelativeWidth,
			MinSize:       cfg.Watermark.MinSize,
			Margin:        cfg.Watermark.Margin,
		},
	}
	if cfg.Watermark.Path != "" {
		overlay, err := LoadOverlay(cfg.Watermark.Path)
		if err != nil {
			return Options{}, err
		}
		opts.Watermark.Overlay = overlay
	}
	return opts, nil
}

// Processor runs the ingest and variant pipelines.
type Processor struct {
	opts   Options
	logger *slog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{opts: opts, logger: logger.With("component", "imageproc")}
}

// MaxCrop returns the largest box a variant may request.
func (p *Processor) MaxCrop() models.Box {
	return p.opts.MaxCrop
}

// IngestResult is the canonical stored form of an uploaded image.
type IngestResult struct {
	Data        []byte
	Format      Format
	ContentType string
	Width       int
	Height      int
}

// Ingest turns uploaded bytes into the form that is stored: upright
// pixels, metadata stripped and size capped as configured. Orientation is
// applied here only; the stored bytes no longer carry the tag.
func (p *Processor) Ingest(data []byte) (IngestResult, error) {
	info, err := Probe(data)
	if err != nil {
		return IngestResult{}, err
	}

	orientation := 1
	if p.opts.RotateEXIF && info.Format == FormatJPEG {
		orientation = Orientation(data)
	}
	rotate := orientation == 3 || orientation == 6 || orientation == 8

	upright := info.Size
	if orientation == 6 || orientation == 8 {
		upright = models.Box{Width: info.Size.Height, Height: info.Size.Width}
	}
	ceiling := p.ceiling(upright)
	shrink := ceiling != upright

	if !rotate && !shrink {
		out := data
		if p.opts.StripEXIF {
			if out, err = StripMetadata(data, info.Format); err != nil {
				return IngestResult{}, err
			}
		}
		return IngestResult{
			Data:        out,
			Format:      info.Format,
			ContentType: info.Format.ContentType(),
			Width:       info.Size.Width,
			Height:      info.Size.Height,
		}, nil
	}

	img, err := decode(data)
	if err != nil {
		return IngestResult{}, err
	}
	if rotate {
		img, _ = orient(img, orientation)
	}
	if shrink {
		img = imaging.Resize(img, ceiling.Width, ceiling.Height, imaging.Lanczos)
	}

	quality := 0
	if info.Format == FormatJPEG {
		quality = p.opts.IngestJPEGQuality
	}
	out, err := encode(img, info.Format, quality)
	if err != nil {
		return IngestResult{}, err
	}
	bounds := img.Bounds()
	p.logger.Debug("image normalized", "orientation", orientation, "from", info.Size.String(), "to", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()))
	return IngestResult{
		Data:        out,
		Format:      info.Format,
		ContentType: info.Format.ContentType(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// ceiling returns size fitted inside the configured maximum, never
// enlarged. A zero max dimension is unbounded.
func (p *Processor) ceiling(size models.Box) models.Box {
	maxBox := p.opts.MaxSize
	if maxBox.Width <= 0 && maxBox.Height <= 0 {
		return size
	}
	if maxBox.Width <= 0 {
		maxBox.Width = size.Width
	}
	if maxBox.Height <= 0 {
		maxBox.Height = size.Height
	}
	fitted, err := PlanDimensions(size, maxBox, false, false)
	if err != nil {
		return size
	}
	return fitted
}

// VariantRequest asks for a derived rendition of a stored image.
type VariantRequest struct {
	Source      []byte
	Box         models.Box
	Crop        bool
	Quality     int
	NoWatermark bool
}

// VariantResult is an encoded rendition.
type VariantResult struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// CheckBox validates a requested box against the configured crop limit.
func (p *Processor) CheckBox(box models.Box) error {
	maxCrop := p.opts.MaxCrop
	if box.Width < 1 || box.Height < 1 || box.Width > maxCrop.Width || box.Height > maxCrop.Height {
		return fmt.Errorf("%w: %s exceeds %s", ErrDimensionsOutOfRange, box, maxCrop)
	}
	return nil
}

// Variant derives a rendition of req.Source. When nothing needs to change
// the source bytes are returned untouched.
func (p *Processor) Variant(req VariantRequest) (VariantResult, error) {
	if !req.Box.IsZero() {
		if err := p.CheckBox(req.Box); err != nil {
			return VariantResult{}, err
		}
	}

	info, err := Probe(req.Source)
	if err != nil {
		return VariantResult{}, err
	}
	natural := info.Size
	quality := ClampQuality(req.Quality)

	target := natural
	if !req.Box.IsZero() {
		if target, err = PlanDimensions(natural, req.Box, req.Crop, false); err != nil {
			return VariantResult{}, err
		}
	}
	resize := target != natural

	eligible := natural
	if resize {
		eligible = req.Box
	}
	watermark := p.opts.Watermark.Enabled() && !req.NoWatermark && p.opts.Watermark.Eligible(eligible)

	if !resize && quality == 0 && !watermark {
		return VariantResult{
			Data:        req.Source,
			ContentType: info.Format.ContentType(),
			Width:       natural.Width,
			Height:      natural.Height,
		}, nil
	}

	img, err := decode(req.Source)
	if err != nil {
		return VariantResult{}, err
	}
	if resize {
		if req.Crop {
			img = imaging.Fill(img, target.Width, target.Height, imaging.Center, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, target.Width, target.Height, imaging.Lanczos)
		}
	}
	if resize || quality > 0 {
		img = finish(img)
	}
	if watermark {
		img = p.opts.Watermark.composite(img, eligible)
	}

	format := outputFormat(info.Format, quality)
	data, err := encode(img, format, quality)
	if err != nil {
		return VariantResult{}, err
	}
	bounds := img.Bounds()
	return VariantResult{
		Data:        data,
		ContentType: format.ContentType(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return img, nil
}
