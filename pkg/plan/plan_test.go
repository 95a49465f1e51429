package plan

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/declutter/pkg/types"
)

func item(label string, c types.Category) types.DetectedItem {
	return types.DetectedItem{ID: label, Label: label, Category: c}
}

func TestBuildGroupsByCategory(t *testing.T) {
	result := &types.ComprehensiveResult{Items: []types.DetectedItem{
		item("mug", types.CategoryDishes),
		item("shirt", types.CategoryClothing),
		item("socks", types.CategoryClothing),
		item("jeans", types.CategoryClothing),
		item("book", types.CategoryBooks),
	}}

	p := Build(result)
	require.Len(t, p.Tasks, 3)
	assert.Equal(t, 5, p.TotalItems)

	assert.Equal(t, "Organize Clothing", p.Tasks[0].Title)
	assert.Equal(t, []string{"shirt", "socks", "jeans"}, p.Tasks[0].Items)
	assert.Equal(t, 6, p.Tasks[0].EstimatedMinutes)

	// equal counts keep enumeration order: books before dishes
	assert.Equal(t, types.CategoryBooks.DisplayName(), p.Tasks[1].Category)
	assert.Equal(t, types.CategoryDishes.DisplayName(), p.Tasks[2].Category)
	assert.Equal(t, 3, p.Tasks[1].EstimatedMinutes)

	assert.Equal(t, 12, p.EstimatedMinutes)
	assert.Equal(t, CategoryCount{Name: "Clothing", ItemCount: 3}, p.Categories[0])
	assert.NotEqual(t, p.Tasks[0].ID, p.Tasks[1].ID)
}

func TestBuildWithoutItems(t *testing.T) {
	for _, result := range []*types.ComprehensiveResult{nil, {}} {
		p := Build(result)
		require.Len(t, p.Tasks, 1)
		assert.Equal(t, "Manual Room Check", p.Tasks[0].Title)
		assert.Len(t, p.Tasks[0].Items, 3)
		assert.Equal(t, GeneralCategory, p.Tasks[0].Category)
		assert.Equal(t, 10, p.EstimatedMinutes)
		assert.Zero(t, p.TotalItems)
	}
}

func TestManualItem(t *testing.T) {
	it := ManualItem("old charger", types.CategoryElectronics)
	assert.Equal(t, 1.0, it.Confidence)
	assert.Equal(t, -1, it.PhotoIndex)
	assert.NotEmpty(t, it.ID)
	assert.Nil(t, it.BoundingBox)

	assert.Equal(t, types.CategoryOther, ManualItem("thing", types.Category("gizmo")).Category)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(&types.ComprehensiveResult{Items: []types.DetectedItem{item("towel", types.CategoryBedding)}}).Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "1 items")
	assert.Contains(t, out, "1. Organize Bedding (3 min)")
	assert.Contains(t, out, "   - towel\n")
}
