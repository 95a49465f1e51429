package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"clothing":        CategoryClothing,
		"Clothing":        CategoryClothing,
		" personal care ": CategoryPersonalCare,
		"office-supplies": CategoryOfficeSupplies,
		"OFFICE_SUPPLIES": CategoryOfficeSupplies,
		"clothes":         CategoryOther,
		"":                CategoryOther,
		"spaceship":       CategoryOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseCategory(in), "input %q", in)
	}
}

func TestCategoryDisplayName(t *testing.T) {
	assert.Equal(t, "Food & Drink", CategoryFood.DisplayName())
	assert.Equal(t, "Miscellaneous", CategoryOther.DisplayName())
	assert.Equal(t, "Miscellaneous", Category("bogus").DisplayName())
	for _, c := range Categories {
		assert.True(t, c.Valid())
		assert.NotEmpty(t, c.DisplayName())
	}
}

func TestCategoryUnmarshalCoercesUnknown(t *testing.T) {
	var item DetectedItem
	require.NoError(t, json.Unmarshal([]byte(`{"label":"lamp","category":"lighting"}`), &item))
	assert.Equal(t, CategoryOther, item.Category)

	require.NoError(t, json.Unmarshal([]byte(`{"label":"mug","category":"Dishes"}`), &item))
	assert.Equal(t, CategoryDishes, item.Category)
}

func TestParseLocationBucket(t *testing.T) {
	cases := map[string]LocationBucket{
		"top-left":      BucketTopLeft,
		"Top Left":      BucketTopLeft,
		"bottom_right":  BucketBottomRight,
		"middle":        BucketCenter,
		"middle-left":   BucketCenterLeft,
		"CENTER":        BucketCenter,
		"bottom":        BucketBottomCenter,
		"right":         BucketCenterRight,
		"centre-right":  BucketCenterRight,
		"bottom-center": BucketBottomCenter,
	}
	for in, want := range cases {
		got, ok := ParseLocationBucket(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, ok := ParseLocationBucket("under the bed")
	assert.False(t, ok)
}

func TestParseStorageType(t *testing.T) {
	assert.Equal(t, StorageCloset, ParseStorageType("Closet"))
	assert.Equal(t, StorageBin, ParseStorageType(" bin "))
	assert.Equal(t, StorageOther, ParseStorageType("wardrobe"))
}

func TestBoxGeometry(t *testing.T) {
	b := Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}
	cx, cy := b.Center()
	assert.InDelta(t, 0.25, cx, 1e-9)
	assert.InDelta(t, 0.4, cy, 1e-9)
	assert.InDelta(t, 0.12, b.Area(), 1e-9)
	assert.False(t, b.Empty())
	assert.True(t, Box{X: 0.5, Y: 0.5}.Empty())
	assert.Zero(t, Box{X: 0.5, Y: 0.5, W: -0.1, H: 0.1}.Area())
}

func TestDetectedItemJSONOmitsThumbnail(t *testing.T) {
	item := DetectedItem{ID: "1", Label: "sock", Category: CategoryClothing, BoundingBox: &Box{W: 0.1, H: 0.1}}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Thumbnail")
	assert.Contains(t, string(data), `"bounding_box"`)
}
