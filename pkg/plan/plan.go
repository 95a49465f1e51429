package plan

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/menta2k/declutter/pkg/types"
)

// GeneralCategory names tasks that are not tied to a detected category
const GeneralCategory = "General"

// Task is one step of the cleaning plan, covering a single category
type Task struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Items            []string `json:"items"`
	ItemIDs          []string `json:"item_ids,omitempty"`
	Category         string   `json:"category"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// CategoryCount is a category and how many items it holds
type CategoryCount struct {
	Name      string `json:"name"`
	ItemCount int    `json:"item_count"`
}

// Plan is the task list built from an analysis
type Plan struct {
	Tasks            []Task          `json:"tasks"`
	TotalItems       int             `json:"total_items"`
	EstimatedMinutes int             `json:"estimated_minutes"`
	Categories       []CategoryCount `json:"categories"`
}

// Build groups the result's items by category, largest group first. Ties
// keep the category enumeration order. An empty result yields a single
// manual check task.
func Build(result *types.ComprehensiveResult) *Plan {
	if result == nil || len(result.Items) == 0 {
		return manualPlan()
	}

	groups := make(map[types.Category][]types.DetectedItem)
	for _, item := range result.Items {
		groups[item.Category] = append(groups[item.Category], item)
	}

	order := make([]types.Category, 0, len(groups))
	for _, c := range types.Categories {
		if len(groups[c]) > 0 {
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(groups[order[i]]) > len(groups[order[j]])
	})

	p := &Plan{TotalItems: len(result.Items)}
	for _, c := range order {
		items := groups[c]
		task := Task{
			ID:               uuid.NewString(),
			Title:            "Organize " + c.DisplayName(),
			Category:         c.DisplayName(),
			EstimatedMinutes: max(3, 2*len(items)),
		}
		for _, item := range items {
			task.Items = append(task.Items, item.Label)
			task.ItemIDs = append(task.ItemIDs, item.ID)
		}
		p.Tasks = append(p.Tasks, task)
		p.EstimatedMinutes += task.EstimatedMinutes
		p.Categories = append(p.Categories, CategoryCount{Name: c.DisplayName(), ItemCount: len(items)})
	}
	return p
}

func manualPlan() *Plan {
	return &Plan{
		Tasks: []Task{{
			ID:    uuid.NewString(),
			Title: "Manual Room Check",
			Items: []string{
				"Look around for items to organize",
				"Check surfaces for clutter",
				"Identify things out of place",
			},
			Category:         GeneralCategory,
			EstimatedMinutes: 10,
		}},
		EstimatedMinutes: 10,
		Categories:       []CategoryCount{{Name: GeneralCategory}},
	}
}

// ManualItem creates an item the user added by hand. It has full
// confidence, no photo and no region.
func ManualItem(label string, category types.Category) types.DetectedItem {
	if !category.Valid() {
		category = types.CategoryOther
	}
	return types.DetectedItem{
		ID:         uuid.NewString(),
		Label:      label,
		Category:   category,
		Confidence: 1,
		PhotoIndex: -1,
	}
}

// Write renders the plan as plain text
func (p *Plan) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Cleaning plan: %d items, about %d minutes\n", p.TotalItems, p.EstimatedMinutes); err != nil {
		return err
	}
	for i, task := range p.Tasks {
		if _, err := fmt.Fprintf(w, "\n%d. %s (%d min)\n", i+1, task.Title, task.EstimatedMinutes); err != nil {
			return err
		}
		for _, item := range task.Items {
			if _, err := fmt.Fprintf(w, "   - %s\n", item); err != nil {
				return err
			}
		}
	}
	return nil
}
