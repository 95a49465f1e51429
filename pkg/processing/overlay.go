package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/types"
)

const gridOpacity = 0.6

var (
	gridBlue  = color.NRGBA{0, 122, 255, 255}
	labelBack = color.NRGBA{255, 255, 255, 200}
)

// Outline colors per category in detection overlays
var categoryColors = map[types.Category]color.NRGBA{
	types.CategoryClothing:       {0, 122, 255, 255},
	types.CategoryElectronics:    {175, 82, 222, 255},
	types.CategoryBooks:          {255, 149, 0, 255},
	types.CategoryPapers:         {142, 142, 147, 255},
	types.CategoryPersonalCare:   {255, 45, 85, 255},
	types.CategoryFood:           {52, 199, 89, 255},
	types.CategoryTrash:          {255, 59, 48, 255},
	types.CategoryBedding:        {88, 86, 214, 255},
	types.CategoryFurniture:      {162, 132, 94, 255},
	types.CategoryDecor:          {255, 204, 0, 255},
	types.CategoryToys:           {0, 199, 190, 255},
	types.CategoryOfficeSupplies: {50, 173, 230, 255},
	types.CategoryDishes:         {48, 176, 199, 255},
	types.CategoryOther:          {120, 120, 120, 255},
}

// DrawGrid returns a copy of img with a labeled grid blended on top. Cell
// labels (A1, B1, ...) are drawn at each cell center.
func DrawGrid(img image.Image, grid geometry.Grid) image.Image {
	base := imaging.Clone(img)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	layer := image.NewNRGBA(image.Rect(0, 0, w, h))
	stroke := int(math.Max(2, 0.002*float64(minInt(w, h))))

	for col := 0; col <= grid.Columns; col++ {
		x := int(float64(col) * float64(w) / float64(grid.Columns))
		for s := 0; s < stroke; s++ {
			drawVLine(layer, x-stroke/2+s, 0, h, gridBlue)
		}
	}
	for row := 0; row <= grid.Rows; row++ {
		y := int(float64(row) * float64(h) / float64(grid.Rows))
		for s := 0; s < stroke; s++ {
			drawHLine(layer, y-stroke/2+s, 0, w, gridBlue)
		}
	}

	face := basicfont.Face7x13
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Columns; col++ {
			label := grid.CellID(col, row)
			cx := int((float64(col) + 0.5) * float64(w) / float64(grid.Columns))
			cy := int((float64(row) + 0.5) * float64(h) / float64(grid.Rows))
			drawLabel(layer, face, label, cx, cy, gridBlue)
		}
	}

	return imaging.Overlay(base, layer, image.Pt(0, 0), gridOpacity)
}

// CreateDetectionOverlay draws every item's region on a copy of img, colored
// by category. Items without a box use their location bucket rectangle.
func CreateDetectionOverlay(img image.Image, items []types.DetectedItem) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	for _, item := range items {
		region, ok := geometry.RegionFor(item)
		if !ok {
			continue
		}
		c, ok := categoryColors[item.Category]
		if !ok {
			c = categoryColors[types.CategoryOther]
		}
		if item.BoundingBox == nil {
			// approximate regions get a thinner outline
			drawBox(nrgba, region, w, h, c, maxInt(1, stroke/2))
		} else {
			drawBox(nrgba, region, w, h, c, stroke)
		}
		x0, y0, _, _ := boxToPixels(region, w, h)
		drawTag(nrgba, basicfont.Face7x13, item.Label, x0+stroke, y0+stroke, c)
	}
	return nrgba
}

// drawLabel centers text on (cx, cy) over a light backing
func drawLabel(dst *image.NRGBA, face font.Face, text string, cx, cy int, c color.NRGBA) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	x := cx - width/2
	y := cy - height/2
	fillRect(dst, image.Rect(x-2, y-1, x+width+2, y+height+1), labelBack)
	d.Dot = fixed.P(x, y+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

// drawTag writes text with its top-left corner at (x, y)
func drawTag(dst *image.NRGBA, face font.Face, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.White), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	fillRect(dst, image.Rect(x, y, x+width+4, y+height+2), c)
	d.Dot = fixed.P(x+2, y+1+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		drawHLine(img, y, r.Min.X, r.Max.X, c)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func drawBox(img *image.NRGBA, box types.Box, w, h int, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
