package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/processing"
	"github.com/menta2k/declutter/pkg/types"
)

// ThumbnailCropper cuts per-item thumbnails out of the analyzed image
type ThumbnailCropper struct {
	config CropConfig
}

// CropConfig holds configuration for thumbnail cropping
type CropConfig struct {
	// PaddingRatio grows the item region by this fraction of its size per side
	PaddingRatio float64
	// MaxSize bounds the longer thumbnail side in pixels, 0 keeps the crop size
	MaxSize        int
	AllowUpscaling bool
}

// New creates a new ThumbnailCropper with default configuration
func New() *ThumbnailCropper {
	return &ThumbnailCropper{
		config: CropConfig{
			PaddingRatio:   0.1,
			MaxSize:        256,
			AllowUpscaling: false,
		},
	}
}

// NewWithConfig creates a new ThumbnailCropper with custom configuration
func NewWithConfig(config CropConfig) *ThumbnailCropper {
	return &ThumbnailCropper{config: config}
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image image.Image
	// Region is the padded normalized rectangle that was cut
	Region types.Box
	// Approximate is set when the region came from a location bucket
	Approximate bool
}

// Crop cuts the item's region out of img. img must be the image instance the
// model analyzed so the normalized coordinates line up.
func (c *ThumbnailCropper) Crop(img image.Image, item types.DetectedItem) (CropResult, error) {
	if img == nil {
		return CropResult{}, fmt.Errorf("no source image for %q", item.Label)
	}
	region, ok := geometry.RegionFor(item)
	if !ok {
		return CropResult{}, fmt.Errorf("item %q has no region", item.Label)
	}
	region = geometry.Pad(region, c.config.PaddingRatio)

	cropped, err := processing.CropImageToBox(img, region)
	if err != nil {
		return CropResult{}, fmt.Errorf("crop %q: %w", item.Label, err)
	}

	return CropResult{
		Image:       c.scale(cropped),
		Region:      region,
		Approximate: item.BoundingBox == nil,
	}, nil
}

// Attach sets the thumbnail of every item it can crop and returns how many
// were cropped. Failures are logged and leave the thumbnail nil.
func (c *ThumbnailCropper) Attach(img image.Image, items []types.DetectedItem) int {
	n := 0
	for i := range items {
		res, err := c.Crop(img, items[i])
		if err != nil {
			log.Warn().Err(err).Str("id", items[i].ID).Msg("thumbnail skipped")
			continue
		}
		items[i].Thumbnail = res.Image
		n++
	}
	return n
}

func (c *ThumbnailCropper) scale(img image.Image) image.Image {
	max := c.config.MaxSize
	if max <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		if !c.config.AllowUpscaling {
			return img
		}
		if w >= h {
			return imaging.Resize(img, max, 0, imaging.Lanczos)
		}
		return imaging.Resize(img, 0, max, imaging.Lanczos)
	}
	return imaging.Fit(img, max, max, imaging.Lanczos)
}
