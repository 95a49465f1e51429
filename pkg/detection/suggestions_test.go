package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/declutter/pkg/types"
)

func itemsOf(c types.Category, n int) []types.DetectedItem {
	items := make([]types.DetectedItem, n)
	for i := range items {
		items[i] = types.DetectedItem{Label: "x", Category: c}
	}
	return items
}

func TestSuggestionsAlwaysEndWithGeneralHints(t *testing.T) {
	assert.Equal(t, generalSuggestions, Suggestions(nil))

	got := Suggestions(itemsOf(types.CategoryClothing, 3))
	assert.Equal(t, generalSuggestions, got)
}

func TestSuggestionsGatedByCounts(t *testing.T) {
	items := append(itemsOf(types.CategoryClothing, 6), itemsOf(types.CategoryTrash, 2)...)
	got := Suggestions(items)

	require.Len(t, got, 4)
	assert.Contains(t, got[0], "trash")
	assert.Contains(t, got[0], "2 trash items")
	assert.Contains(t, got[1], "6 clothing items")
	assert.Equal(t, generalSuggestions, got[2:])
}

func TestMeanConfidence(t *testing.T) {
	assert.Zero(t, MeanConfidence(nil))

	items := []types.DetectedItem{{Confidence: 0.2}, {Confidence: 0.4}, {Confidence: 0.6}}
	assert.InDelta(t, 0.4, MeanConfidence(items), 1e-9)
}

func TestCountByCategory(t *testing.T) {
	counts := CountByCategory(append(itemsOf(types.CategoryBooks, 2), itemsOf(types.CategoryToys, 1)...))
	assert.Equal(t, 2, counts[types.CategoryBooks])
	assert.Equal(t, 1, counts[types.CategoryToys])
	assert.Zero(t, counts[types.CategoryFood])
}
