package types

import (
	"image"
	"strings"
)

// Box represents a normalized bounding box with coordinates in [0,1] range,
// origin at the top-left corner of the analyzed image.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Right returns the x coordinate of the right edge
func (b Box) Right() float64 { return b.X + b.W }

// Bottom returns the y coordinate of the bottom edge
func (b Box) Bottom() float64 { return b.Y + b.H }

// Center returns the midpoint of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area is computed from the edges so that a box contained in another yields
// exactly the same intersection area.
func (b Box) Area() float64 {
	w := b.Right() - b.X
	h := b.Bottom() - b.Y
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box covers no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Category is the closed set of item categories. Values outside the set are
// decoded as CategoryOther.
type Category string

const (
	CategoryClothing       Category = "clothing"
	CategoryElectronics    Category = "electronics"
	CategoryBooks          Category = "books"
	CategoryPapers         Category = "papers"
	CategoryPersonalCare   Category = "personal_care"
	CategoryFood           Category = "food"
	CategoryTrash          Category = "trash"
	CategoryBedding        Category = "bedding"
	CategoryFurniture      Category = "furniture"
	CategoryDecor          Category = "decor"
	CategoryToys           Category = "toys"
	CategoryOfficeSupplies Category = "office_supplies"
	CategoryDishes         Category = "dishes"
	CategoryOther          Category = "other"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryClothing,
	CategoryElectronics,
	CategoryBooks,
	CategoryPapers,
	CategoryPersonalCare,
	CategoryFood,
	CategoryTrash,
	CategoryBedding,
	CategoryFurniture,
	CategoryDecor,
	CategoryToys,
	CategoryOfficeSupplies,
	CategoryDishes,
	CategoryOther,
}

var categoryNames = map[Category]string{
	CategoryClothing:       "Clothing",
	CategoryElectronics:    "Electronics",
	CategoryBooks:          "Books",
	CategoryPapers:         "Papers",
	CategoryPersonalCare:   "Personal Care",
	CategoryFood:           "Food & Drink",
	CategoryTrash:          "Trash",
	CategoryBedding:        "Bedding",
	CategoryFurniture:      "Furniture",
	CategoryDecor:          "Decorations",
	CategoryToys:           "Toys & Games",
	CategoryOfficeSupplies: "Office Supplies",
	CategoryDishes:         "Dishes",
	CategoryOther:          "Miscellaneous",
}

// ParseCategory maps free text onto the closed category set. Matching is
// case-insensitive and treats spaces and hyphens as underscores.
func ParseCategory(s string) Category {
	c := Category(normalizeToken(s, "_"))
	if _, ok := categoryNames[c]; ok {
		return c
	}
	return CategoryOther
}

// Valid reports whether c is a member of the closed set
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the human readable category name
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryOther]
}

// UnmarshalText decodes defensively, coercing unknown values to CategoryOther
func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}

// LocationBucket is one of nine coarse positions forming a 3x3 grid
type LocationBucket string

const (
	BucketTopLeft      LocationBucket = "top-left"
	BucketTopCenter    LocationBucket = "top-center"
	BucketTopRight     LocationBucket = "top-right"
	BucketCenterLeft   LocationBucket = "center-left"
	BucketCenter       LocationBucket = "center"
	BucketCenterRight  LocationBucket = "center-right"
	BucketBottomLeft   LocationBucket = "bottom-left"
	BucketBottomCenter LocationBucket = "bottom-center"
	BucketBottomRight  LocationBucket = "bottom-right"
)

// LocationBuckets lists the buckets row by row
var LocationBuckets = []LocationBucket{
	BucketTopLeft, BucketTopCenter, BucketTopRight,
	BucketCenterLeft, BucketCenter, BucketCenterRight,
	BucketBottomLeft, BucketBottomCenter, BucketBottomRight,
}

// ParseLocationBucket accepts spellings such as "Top Left", "top_left" or
// "middle-right". The second return value is false for unknown input.
func ParseLocationBucket(s string) (LocationBucket, bool) {
	n := normalizeToken(s, "-")
	n = strings.ReplaceAll(n, "middle", "center")
	n = strings.ReplaceAll(n, "centre", "center")
	switch n {
	case "left":
		n = string(BucketCenterLeft)
	case "right":
		n = string(BucketCenterRight)
	case "top":
		n = string(BucketTopCenter)
	case "bottom":
		n = string(BucketBottomCenter)
	}
	for _, b := range LocationBuckets {
		if string(b) == n {
			return b, true
		}
	}
	return "", false
}

// StorageType classifies a storage area
type StorageType string

const (
	StorageCloset  StorageType = "closet"
	StorageDrawer  StorageType = "drawer"
	StorageShelf   StorageType = "shelf"
	StorageDesk    StorageType = "desk"
	StorageCabinet StorageType = "cabinet"
	StorageBin     StorageType = "bin"
	StorageFloor   StorageType = "floor"
	StorageOther   StorageType = "other"
)

var storageTypes = []StorageType{
	StorageCloset, StorageDrawer, StorageShelf, StorageDesk,
	StorageCabinet, StorageBin, StorageFloor, StorageOther,
}

// ParseStorageType maps free text to a StorageType, defaulting to StorageOther
func ParseStorageType(s string) StorageType {
	n := StorageType(normalizeToken(s, "_"))
	for _, t := range storageTypes {
		if t == n {
			return t
		}
	}
	return StorageOther
}

// UnmarshalText decodes defensively, coercing unknown values to StorageOther
func (t *StorageType) UnmarshalText(text []byte) error {
	*t = ParseStorageType(string(text))
	return nil
}

// StorageArea is an organizational destination identified in the room
type StorageArea struct {
	Name     string      `json:"name"`
	Type     StorageType `json:"type"`
	Location string      `json:"location"`
}

// DetectedItem is a single reconciled detection
type DetectedItem struct {
	ID               string         `json:"id"`
	Label            string         `json:"label"`
	Category         Category       `json:"category"`
	Brand            string         `json:"brand,omitempty"`
	Confidence       float64        `json:"confidence"`
	LocationBucket   LocationBucket `json:"location,omitempty"`
	BoundingBox      *Box           `json:"bounding_box,omitempty"`
	SuggestedStorage string         `json:"suggested_storage"`
	PhotoIndex       int            `json:"photo_index"`
	Pass             int            `json:"pass"`

	// Thumbnail is cropped from the image that was sent to the model
	Thumbnail image.Image `json:"-"`
}

// PassReport summarizes one executed pass
type PassReport struct {
	Photo  int    `json:"photo"`
	Pass   int    `json:"pass"`
	Name   string `json:"name"`
	Parsed int    `json:"parsed"`
	Added  int    `json:"added"`
}

// ComprehensiveResult is the immutable output of a full analysis run
type ComprehensiveResult struct {
	Items                   []DetectedItem `json:"items"`
	StorageAreas            []StorageArea  `json:"storage_areas"`
	OrganizationSuggestions []string       `json:"organization_suggestions"`
	OverallConfidence       float64        `json:"overall_confidence"`
	TotalItemsFound         int            `json:"total_items_found"`
	ProcessingTimeSeconds   float64        `json:"processing_time_seconds"`
	Passes                  []PassReport   `json:"passes"`

	// Photos holds, per photo index, the image instance the model analyzed
	Photos []image.Image `json:"-"`
}

func normalizeToken(s, sep string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", sep, "_", sep, "-", sep).Replace(s)
	for strings.Contains(s, sep+sep) {
		s = strings.ReplaceAll(s, sep+sep, sep)
	}
	return s
}
