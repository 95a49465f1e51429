// Package prompt builds the per-pass instructions sent to the vision model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/types"
)

// maxListed caps how many already-found labels are repeated back to the model
const maxListed = 60

// Pass describes the focus of one detection pass
type Pass struct {
	Name  string
	Focus string
}

// FourPass narrows from an overview down to small, partially hidden items
var FourPass = []Pass{
	{
		Name: "Scanning large items",
		Focus: `
			Detect ALL visible objects in this messy room image. Focus on large and obvious items.
			Include furniture, electronics, clothing piles, and any prominent objects.
		`,
	},
	{
		Name: "Checking floor areas",
		Focus: `
			Focus ONLY on items on the floor or ground level. Look for:
			- Items scattered on the floor
			- Objects under furniture
			- Things in corners
			- Small items like coins, pens, cables
			- Trash and wrappers on the ground
		`,
	},
	{
		Name: "Analyzing surfaces",
		Focus: `
			Focus ONLY on items on surfaces (desks, tables, shelves, bed). Look for:
			- Items in stacks or piles
			- Objects on top of other objects
			- Things on windowsills, nightstands
			- Papers, books, dishes on surfaces
			Identify EACH item in a stack separately.
		`,
	},
	{
		Name: "Finding small details",
		Focus: `
			Focus on SMALL and PARTIALLY VISIBLE items that might have been missed:
			- Cables and chargers
			- Pens, pencils, markers
			- Small personal items
			- Items partially hidden by other objects
			- Things in shadows or poor lighting
		`,
	},
}

// TwoPass is the simplified variant: an overview, then everything small or hidden
var TwoPass = []Pass{
	FourPass[0],
	{
		Name: "Finding missed items",
		Focus: `
			Look again for items that are easy to miss: things on the floor, items on
			surfaces and in stacks, small objects like cables, pens and wrappers, and
			anything partially hidden or in shadow. Identify EACH item in a stack separately.
		`,
	},
}

// PromptSpec bundles the instruction for one pass with the response schema
// the model is asked to follow.
type PromptSpec struct {
	Pass         int
	Total        int
	Name         string
	Instruction  string
	AlreadyFound []string
	Schema       string
}

// Text renders the full prompt sent with the image
func (s PromptSpec) Text() string {
	var b strings.Builder
	b.WriteString(s.Instruction)
	if len(s.AlreadyFound) > 0 {
		b.WriteString("\n\nThese items were ALREADY FOUND in earlier passes. Do NOT list them again:\n")
		for _, label := range s.AlreadyFound {
			b.WriteString("- ")
			b.WriteString(label)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n")
	b.WriteString(s.Schema)
	return strings.TrimSpace(b.String())
}

// Generator produces prompts for a fixed sequence of passes
type Generator struct {
	passes []Pass
	schema string
}

// NewGenerator creates a generator over passes; an empty list selects
// FourPass. overlay states whether the image carries the labeled grid.
func NewGenerator(passes []Pass, grid geometry.Grid, overlay bool) *Generator {
	if len(passes) == 0 {
		passes = FourPass
	}
	if !grid.Valid() {
		grid = geometry.DefaultGrid
	}
	return &Generator{passes: passes, schema: schema(grid, overlay)}
}

// ForCount returns the pass list for a configured pass count (2 or 4)
func ForCount(n int) []Pass {
	if n == 2 {
		return TwoPass
	}
	return FourPass
}

// Count returns the number of passes
func (g *Generator) Count() int {
	return len(g.passes)
}

// PromptFor builds the prompt for the 1-based passIndex. Indices outside the
// configured range are clamped. From the second pass on, already found labels
// are listed so the model does not repeat them.
func (g *Generator) PromptFor(passIndex int, alreadyFound []string) PromptSpec {
	if passIndex < 1 {
		passIndex = 1
	}
	if passIndex > len(g.passes) {
		passIndex = len(g.passes)
	}
	pass := g.passes[passIndex-1]

	spec := PromptSpec{
		Pass:        passIndex,
		Total:       len(g.passes),
		Name:        pass.Name,
		Instruction: strings.TrimSpace(dedent.Dedent(pass.Focus)),
		Schema:      g.schema,
	}
	if passIndex > 1 {
		spec.AlreadyFound = uniqueLabels(alreadyFound, maxListed)
	}
	return spec
}

func uniqueLabels(labels []string, limit int) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out
}

func schema(grid geometry.Grid, overlay bool) string {
	categories := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		categories[i] = string(c)
	}
	buckets := make([]string, len(types.LocationBuckets))
	for i, b := range types.LocationBuckets {
		buckets[i] = string(b)
	}
	last := grid.CellID(grid.Columns-1, grid.Rows-1)

	intro := "The image has a %dx%d grid overlay with cells labeled A1 to %s"
	if !overlay {
		intro = "Imagine a %dx%d grid over the image with cells labeled A1 to %s"
	}
	intro = fmt.Sprintf(intro, grid.Columns, grid.Rows, last)

	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(`
		%s
		(letters are columns from left to right, numbers are rows from top to bottom).

		Return JSON only, with this structure:
		{
		  "items": [
		    {
		      "label": "specific descriptive name, e.g. red Nike shoe",
		      "category": "%s",
		      "brand": "brand name or null",
		      "confidence": 0.0,
		      "grid_cells": "cell or range of cells covering the item, e.g. B2 or B2-C3",
		      "location": "%s",
		      "bounding_box": {"x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0}
		    }
		  ],
		  "storage_areas": [
		    {"name": "wooden dresser", "type": "closet|drawer|shelf|desk|cabinet|bin|floor|other", "location": "left wall"}
		  ]
		}

		RULES
		- bounding_box values are fractions of the image size in [0,1], origin at the top-left corner.
		- Always give grid_cells; give bounding_box only when you are confident about the exact extent.
		- Be specific with labels (not just "item" or "object").
		- Be exhaustive and detect EVERY item you can see in your focus area.
	`)), intro, strings.Join(categories, "|"), strings.Join(buckets, "|"))
}
