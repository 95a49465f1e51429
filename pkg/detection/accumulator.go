package detection

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/types"
)

// DefaultOverlapThreshold is the overlap ratio two regions must exceed to be
// treated as the same item
const DefaultOverlapThreshold = 0.5

// Nouns models use when they cannot name a thing precisely
// genericNouns maps each generic noun form to its singular stem
var genericNouns = map[string]string{
	"item":    "item",
	"items":   "item",
	"object":  "object",
	"objects": "object",
	"thing":   "thing",
	"things":  "thing",
	"stuff":   "stuff",
}

// Accumulator holds the deduplicated items of one photo in discovery order
type Accumulator struct {
	threshold float64
	items     []types.DetectedItem
}

// NewAccumulator returns an empty accumulator. A threshold outside (0,1)
// falls back to DefaultOverlapThreshold.
func NewAccumulator(threshold float64) *Accumulator {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultOverlapThreshold
	}
	return &Accumulator{threshold: threshold}
}

// Merge inserts every item that does not duplicate one already held and
// returns how many were added. The first-seen item of a duplicate pair wins.
func (a *Accumulator) Merge(items []types.DetectedItem) int {
	added := 0
	for _, item := range items {
		if dup, ok := a.find(item); ok {
			log.Debug().
				Str("label", item.Label).
				Str("kept", dup.Label).
				Int("pass", item.Pass).
				Msg("dropping duplicate")
			continue
		}
		a.items = append(a.items, item)
		added++
	}
	return added
}

func (a *Accumulator) find(item types.DetectedItem) (types.DetectedItem, bool) {
	for _, held := range a.items {
		if IsDuplicate(held, item, a.threshold) {
			return held, true
		}
	}
	return types.DetectedItem{}, false
}

// Items returns a copy of the held items
func (a *Accumulator) Items() []types.DetectedItem {
	out := make([]types.DetectedItem, len(a.items))
	copy(out, a.items)
	return out
}

// Labels returns the held labels in discovery order
func (a *Accumulator) Labels() []string {
	labels := make([]string, 0, len(a.items))
	for _, item := range a.items {
		labels = append(labels, item.Label)
	}
	return labels
}

// Len returns the number of held items
func (a *Accumulator) Len() int {
	return len(a.items)
}

// IsDuplicate reports whether a and b describe the same physical item: their
// regions overlap by more than threshold and their labels are similar. Items
// without a box are compared through their location bucket rectangle.
func IsDuplicate(a, b types.DetectedItem, threshold float64) bool {
	ra, ok := geometry.RegionFor(a)
	if !ok {
		return false
	}
	rb, ok := geometry.RegionFor(b)
	if !ok {
		return false
	}
	if geometry.OverlapRatio(ra, rb) <= threshold {
		return false
	}
	return SimilarLabels(a.Label, b.Label)
}

// SimilarLabels matches labels that are equal ignoring case, where one
// contains the other, or that share a generic noun such as "item".
func SimilarLabels(a, b string) bool {
	na, nb := normalizeLabel(a), normalizeLabel(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	stems := map[string]bool{}
	for _, w := range strings.Fields(na) {
		if stem, ok := genericNouns[w]; ok {
			stems[stem] = true
		}
	}
	for _, w := range strings.Fields(nb) {
		if stem, ok := genericNouns[w]; ok && stems[stem] {
			return true
		}
	}
	return false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ',', '.', '(', ')', '"', '\'':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
