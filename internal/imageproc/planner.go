package imageproc

import (
	"fmt"
	"math"

	"filevault/internal/models"
)

// PlanDimensions returns the exact output size for resizing src into box.
//
// With crop the output is the box itself. Without crop the aspect ratio is
// kept and the binding side is the one the box constrains more; equal
// ratios bind on width. Unless enlarge is set, a source that already fits
// the box is returned unchanged.
func PlanDimensions(src, box models.Box, crop, enlarge bool) (models.Box, error) {
	if box.Width < 1 || box.Height < 1 {
		return models.Box{}, fmt.Errorf("%w: box %s", ErrDimensionsOutOfRange, box)
	}
	if crop {
		return box, nil
	}
	if src.Width < 1 || src.Height < 1 {
		return models.Box{}, ErrDimensionsUnavailable
	}
	if !enlarge && box.Width >= src.Width && box.Height >= src.Height {
		return src, nil
	}

	sw, sh := int64(src.Width), int64(src.Height)
	rw, rh := int64(box.Width), int64(box.Height)
	// rh/rw >= sh/sw, cross-multiplied to stay in integers.
	if rh*sw >= sh*rw {
		return models.Box{Width: box.Width, Height: roundHalfUp(float64(sh*rw) / float64(sw))}, nil
	}
	return models.Box{Width: roundHalfUp(float64(sw*rh) / float64(sh)), Height: box.Height}, nil
}

func roundHalfUp(v float64) int {
	return max(int(math.Floor(v+0.5)), 1)
}
