package detection

import (
	"fmt"

	"github.com/menta2k/declutter/pkg/types"
)

// suggestionRule unlocks a hint once a category count passes min
type suggestionRule struct {
	category types.Category
	min      int
	format   string
}

// Ordered by how much a first pass through the room benefits from them
var suggestionRules = []suggestionRule{
	{types.CategoryTrash, 1, "Start with the trash: bag up the %d trash items first for a quick win."},
	{types.CategoryDishes, 1, "Take the %d dishes back to the kitchen before anything else piles on them."},
	{types.CategoryFood, 1, "Clear the %d food items now so nothing spoils."},
	{types.CategoryClothing, 6, "You have %d clothing items out. Sort them into clean, laundry and donate piles."},
	{types.CategoryPapers, 4, "Gather the %d loose papers into one stack and sort them in a single sitting."},
	{types.CategoryBooks, 4, "Shelve the %d books together, upright and spines out."},
	{types.CategoryElectronics, 3, "Group the %d electronics near an outlet and coil their cables."},
	{types.CategoryToys, 6, "Drop the %d toys into one bin and sort them later."},
}

var generalSuggestions = []string{
	"Work through one area at a time, starting from the top and ending with the floor.",
	"Set a 15 minute timer and take a short break when it rings.",
}

// Suggestions returns the organization hints for items. Category hints come
// first, gated by item counts; the general hints always close the list.
func Suggestions(items []types.DetectedItem) []string {
	counts := CountByCategory(items)

	var out []string
	for _, rule := range suggestionRules {
		if n := counts[rule.category]; n >= rule.min {
			out = append(out, fmt.Sprintf(rule.format, n))
		}
	}
	return append(out, generalSuggestions...)
}

// CountByCategory tallies items per category
func CountByCategory(items []types.DetectedItem) map[types.Category]int {
	counts := make(map[types.Category]int)
	for _, item := range items {
		counts[item.Category]++
	}
	return counts
}

// MeanConfidence averages item confidence, 0 for no items
func MeanConfidence(items []types.DetectedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Confidence
	}
	return sum / float64(len(items))
}
