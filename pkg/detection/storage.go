package detection

import (
	"strings"

	"github.com/menta2k/declutter/pkg/types"
)

// areaMatch selects a storage area by type and, when keyword is set, by a
// keyword in its name or location
type areaMatch struct {
	kind    types.StorageType
	keyword string
}

type storageRule struct {
	prefer   []areaMatch
	fallback string
	// fixed ignores the room's storage areas entirely
	fixed string
}

var storageRules = map[types.Category]storageRule{
	types.CategoryClothing: {
		prefer:   []areaMatch{{kind: types.StorageCloset}, {kind: types.StorageDrawer, keyword: "dress"}},
		fallback: "Closet or dresser",
	},
	types.CategoryTrash:     {fixed: "Trash bin"},
	types.CategoryFurniture: {fixed: "Keep in place and clear its surface"},
	types.CategoryFood:      {fixed: "Kitchen"},
	types.CategoryDishes:    {fixed: "Kitchen sink"},
	types.CategoryBooks: {
		prefer:   []areaMatch{{kind: types.StorageShelf}},
		fallback: "Bookshelf",
	},
	types.CategoryPapers: {
		prefer:   []areaMatch{{kind: types.StorageDesk}, {kind: types.StorageCabinet}, {kind: types.StorageDrawer}},
		fallback: "Desk drawer or file folder",
	},
	types.CategoryOfficeSupplies: {
		prefer:   []areaMatch{{kind: types.StorageDesk}, {kind: types.StorageDrawer}},
		fallback: "Desk drawer",
	},
	types.CategoryElectronics: {
		prefer:   []areaMatch{{kind: types.StorageDesk}, {kind: types.StorageShelf}},
		fallback: "Desk or charging station",
	},
	types.CategoryPersonalCare: {
		prefer:   []areaMatch{{kind: types.StorageCabinet}, {kind: types.StorageDrawer}},
		fallback: "Bathroom cabinet",
	},
	types.CategoryBedding: {
		prefer:   []areaMatch{{kind: types.StorageCloset, keyword: "linen"}, {kind: types.StorageCloset}},
		fallback: "Bed or linen closet",
	},
	types.CategoryDecor: {
		prefer:   []areaMatch{{kind: types.StorageShelf}},
		fallback: "Shelf or display surface",
	},
	types.CategoryToys: {
		prefer:   []areaMatch{{kind: types.StorageBin}, {kind: types.StorageShelf}},
		fallback: "Toy bin",
	},
	types.CategoryOther: {
		prefer:   []areaMatch{{kind: types.StorageBin}, {kind: types.StorageCabinet}},
		fallback: "Storage bin",
	},
}

// SuggestStorage picks where an item of category c should go. Matches are
// tried in rule order and, within a rule, in area order; the first area
// found wins.
func SuggestStorage(c types.Category, areas []types.StorageArea) string {
	rule, ok := storageRules[c]
	if !ok {
		rule = storageRules[types.CategoryOther]
	}
	if rule.fixed != "" {
		return rule.fixed
	}
	for _, m := range rule.prefer {
		for _, area := range areas {
			if m.matches(area) {
				return area.Name
			}
		}
	}
	return rule.fallback
}

func (m areaMatch) matches(area types.StorageArea) bool {
	if area.Type != m.kind {
		return false
	}
	if m.keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(area.Name), m.keyword) ||
		strings.Contains(strings.ToLower(area.Location), m.keyword)
}

// AssignStorage sets SuggestedStorage on every item in place
func AssignStorage(items []types.DetectedItem, areas []types.StorageArea) {
	for i := range items {
		items[i].SuggestedStorage = SuggestStorage(items[i].Category, areas)
	}
}

// UniqueAreas drops storage areas whose name repeats an earlier one, ignoring
// case and surrounding space
func UniqueAreas(areas []types.StorageArea) []types.StorageArea {
	seen := make(map[string]bool, len(areas))
	out := make([]types.StorageArea, 0, len(areas))
	for _, area := range areas {
		key := strings.ToLower(strings.TrimSpace(area.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, area)
	}
	return out
}
