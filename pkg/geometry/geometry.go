// Package geometry converts between the three spatial encodings a vision
// model may answer with (grid cells, location buckets, normalized boxes) and
// measures how much two boxes overlap.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/types"
)

// ErrInvalidCell is returned for malformed or out of range cell identifiers
var ErrInvalidCell = errors.New("invalid grid cell")

const (
	bucketSize  = 0.12
	bucketInset = 0.08
)

// Grid describes the labeled overlay drawn on images sent to the model.
// Columns are lettered from A, rows are numbered from 1.
type Grid struct {
	Columns int `yaml:"columns" json:"columns"`
	Rows    int `yaml:"rows" json:"rows"`
}

var rangeSpaces = strings.NewReplacer(" - ", "-", " -", "-", "- ", "-")

// DefaultGrid is the 5x5 grid (A1..E5)
var DefaultGrid = Grid{Columns: 5, Rows: 5}

// Valid reports whether the grid can be addressed with single letters
func (g Grid) Valid() bool {
	return g.Columns > 0 && g.Columns <= 26 && g.Rows > 0
}

// CellID returns the identifier for a zero-based column and row
func (g Grid) CellID(col, row int) string {
	return fmt.Sprintf("%c%d", rune('A'+col), row+1)
}

// Cells returns every cell id row by row
func (g Grid) Cells() []string {
	out := make([]string, 0, g.Columns*g.Rows)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Columns; col++ {
			out = append(out, g.CellID(col, row))
		}
	}
	return out
}

// CellToBox parses an identifier such as "B3" and returns the normalized
// rectangle covering exactly that cell.
func (g Grid) CellToBox(cellID string) (types.Box, error) {
	id := strings.ToUpper(strings.TrimSpace(cellID))
	if len(id) < 2 {
		return types.Box{}, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
	}
	letter := id[0]
	if letter < 'A' || letter > 'Z' {
		return types.Box{}, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
	}
	digits := id[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return types.Box{}, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil {
		return types.Box{}, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
	}
	col := int(letter - 'A')
	row--
	if col >= g.Columns || row < 0 || row >= g.Rows {
		return types.Box{}, fmt.Errorf("%w: %q outside %dx%d grid", ErrInvalidCell, cellID, g.Columns, g.Rows)
	}

	cw := 1 / float64(g.Columns)
	ch := 1 / float64(g.Rows)
	return types.Box{
		X: float64(col) * cw,
		Y: float64(row) * ch,
		W: cw,
		H: ch,
	}, nil
}

// ParseCellRange accepts a single cell ("B2") or two cells joined by a hyphen
// ("B2-C3"). A range yields one rectangle, the envelope of both cells.
// Unparseable input yields an empty slice and is logged.
func (g Grid) ParseCellRange(s string) []types.Box {
	s = strings.ReplaceAll(strings.TrimSpace(s), "–", "-")
	parts := strings.Split(s, "-")

	switch len(parts) {
	case 1:
		box, err := g.CellToBox(parts[0])
		if err != nil {
			log.Warn().Err(err).Str("range", s).Msg("grid cell rejected")
			return nil
		}
		return []types.Box{box}
	case 2:
		start, err := g.CellToBox(parts[0])
		if err != nil {
			log.Warn().Err(err).Str("range", s).Msg("grid range rejected")
			return nil
		}
		end, err := g.CellToBox(parts[1])
		if err != nil {
			log.Warn().Err(err).Str("range", s).Msg("grid range rejected")
			return nil
		}
		return []types.Box{Union(start, end)}
	}

	log.Warn().Str("range", s).Msg("unrecognized grid range format")
	return nil
}

// ParseCells resolves a list of cell specs (single cells, ranges, or comma
// separated lists of either) into the envelope of every valid cell. The
// boolean is false when nothing could be parsed.
func (g Grid) ParseCells(specs ...string) (types.Box, bool) {
	var out types.Box
	found := false
	for _, spec := range specs {
		spec = rangeSpaces.Replace(spec)
		for _, token := range strings.FieldsFunc(spec, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '/'
		}) {
			for _, box := range g.ParseCellRange(token) {
				if !found {
					out = box
					found = true
					continue
				}
				out = Union(out, box)
			}
		}
	}
	return out, found
}

// BoxToCell maps a rectangle's midpoint to the cell containing it
func (g Grid) BoxToCell(box types.Box) string {
	cx, cy := box.Center()
	col := int(math.Floor(clamp(cx, 0, 1) * float64(g.Columns)))
	row := int(math.Floor(clamp(cy, 0, 1) * float64(g.Rows)))
	if col >= g.Columns {
		col = g.Columns - 1
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	return g.CellID(col, row)
}

// LocationBucketToBox maps a bucket to a small fixed rectangle inset from the
// relevant edges. Unknown buckets map to the center rectangle.
func LocationBucketToBox(bucket types.LocationBucket) types.Box {
	var x, y float64
	switch bucket {
	case types.BucketTopLeft, types.BucketCenterLeft, types.BucketBottomLeft:
		x = bucketInset
	case types.BucketTopRight, types.BucketCenterRight, types.BucketBottomRight:
		x = 1 - bucketInset - bucketSize
	default:
		x = 0.5 - bucketSize/2
	}
	switch bucket {
	case types.BucketTopLeft, types.BucketTopCenter, types.BucketTopRight:
		y = bucketInset
	case types.BucketBottomLeft, types.BucketBottomCenter, types.BucketBottomRight:
		y = 1 - bucketInset - bucketSize
	default:
		y = 0.5 - bucketSize/2
	}
	return types.Box{X: x, Y: y, W: bucketSize, H: bucketSize}
}

// BucketForBox derives the location bucket whose third of the image contains
// the box midpoint.
func BucketForBox(box types.Box) types.LocationBucket {
	cx, cy := box.Center()
	col := third(cx)
	row := third(cy)
	return types.LocationBuckets[row*3+col]
}

// RegionFor returns the item's bounding box, or the approximate rectangle of
// its location bucket. The boolean is false when the item has neither.
func RegionFor(item types.DetectedItem) (types.Box, bool) {
	if item.BoundingBox != nil && !item.BoundingBox.Empty() {
		return *item.BoundingBox, true
	}
	if item.LocationBucket != "" {
		return LocationBucketToBox(item.LocationBucket), true
	}
	return types.Box{}, false
}

// OverlapRatio is the intersection area divided by the smaller of the two
// areas. It is symmetric, bounded to [0,1], 0 for disjoint boxes and 1 when
// one box lies inside the other.
func OverlapRatio(a, b types.Box) float64 {
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.Right(), b.Right())
	y1 := math.Min(a.Bottom(), b.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	minArea := math.Min(a.Area(), b.Area())
	if minArea <= 0 {
		return 0
	}
	return clamp((x1-x0)*(y1-y0)/minArea, 0, 1)
}

// Union returns the smallest box containing both a and b
func Union(a, b types.Box) types.Box {
	x0 := math.Min(a.X, b.X)
	y0 := math.Min(a.Y, b.Y)
	x1 := math.Max(a.Right(), b.Right())
	y1 := math.Max(a.Bottom(), b.Bottom())
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether inner lies entirely within outer
func Contains(outer, inner types.Box) bool {
	const eps = 1e-9
	return inner.X >= outer.X-eps && inner.Y >= outer.Y-eps &&
		inner.Right() <= outer.Right()+eps && inner.Bottom() <= outer.Bottom()+eps
}

// Clamp keeps a box inside the unit square, shrinking it at the far edges
func Clamp(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// Pad grows a box by ratio of its own size on every side, then clamps
func Pad(b types.Box, ratio float64) types.Box {
	if ratio <= 0 {
		return Clamp(b)
	}
	dx := b.W * ratio
	dy := b.H * ratio
	x0 := clamp(b.X-dx, 0, 1)
	y0 := clamp(b.Y-dy, 0, 1)
	x1 := clamp(b.Right()+dx, 0, 1)
	y1 := clamp(b.Bottom()+dy, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func third(v float64) int {
	switch {
	case v < 1.0/3:
		return 0
	case v < 2.0/3:
		return 1
	default:
		return 2
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
