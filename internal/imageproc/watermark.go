package imageproc

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"filevault/internal/models"
)

// WatermarkFunc composites a watermark onto img. eligible is the size used
// for the eligibility decision, not necessarily the size of img.
type WatermarkFunc func(img image.Image, eligible models.Box) image.Image

// WatermarkOptions configures serve-time watermarking. Watermarking is off
// when neither Overlay nor Apply is set.
type WatermarkOptions struct {
	Overlay       image.Image
	Apply         WatermarkFunc
	MinWidth      int
	MinHeight     int
	RelativeWidth float64
	MinSize       int
	Margin        int
}

// Enabled reports whether a watermark source is configured.
func (o WatermarkOptions) Enabled() bool {
	return o.Overlay != nil || o.Apply != nil
}

// Eligible reports whether an image of the given size gets a watermark.
// Only images below the threshold in both dimensions are skipped.
func (o WatermarkOptions) Eligible(size models.Box) bool {
	return size.Width >= o.MinWidth || size.Height >= o.MinHeight
}

func (o WatermarkOptions) composite(img image.Image, eligible models.Box) image.Image {
	if o.Apply != nil {
		return o.Apply(img, eligible)
	}
	return o.overlayBottomCenter(img)
}

// overlayBottomCenter scales the overlay to a share of the target width and
// places it centered along the bottom edge.
func (o WatermarkOptions) overlayBottomCenter(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	markWidth := int(o.RelativeWidth * float64(w))
	markWidth = max(markWidth, o.MinSize)
	markWidth = min(markWidth, w)
	if markWidth < 1 {
		return img
	}
	mark := imaging.Resize(o.Overlay, markWidth, 0, imaging.Lanczos)

	mb := mark.Bounds()
	x := (w - mb.Dx()) / 2
	y := max(h-mb.Dy()-o.Margin, 0)
	return imaging.Overlay(img, mark, image.Pt(bounds.Min.X+x, bounds.Min.Y+y), 1.0)
}

// LoadOverlay reads the watermark overlay image from path.
func LoadOverlay(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load watermark overlay %s: %w", path, err)
	}
	return img, nil
}
