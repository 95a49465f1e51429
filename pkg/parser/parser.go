// Package parser turns free-text vision model replies into detection records.
// It never fails: a reply without usable JSON contributes no items.
package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/types"
)

var (
	reFence    = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

var (
	itemKeys    = []string{"items", "objects"}
	storageKeys = []string{"storage_areas", "storageAreas"}
	boxKeys     = []string{"bounding_box", "boundingBox", "box", "bbox"}
	cellKeys    = []string{"grid_cells", "gridCells", "grid_location", "cells"}
	locationKey = []string{"location", "position"}
)

// Response is everything usable in one model reply
type Response struct {
	Items        []types.DetectedItem
	StorageAreas []types.StorageArea
}

// Parser maps loosely-typed JSON into detection records
type Parser struct {
	grid  geometry.Grid
	newID func() string
}

// New creates a parser resolving grid cells against grid
func New(grid geometry.Grid) *Parser {
	if !grid.Valid() {
		grid = geometry.DefaultGrid
	}
	return &Parser{grid: grid, newID: uuid.NewString}
}

// Parse returns the items found in raw, each tagged with pass
func (p *Parser) Parse(raw string, pass int) []types.DetectedItem {
	return p.ParseResponse(raw, pass).Items
}

// ParseResponse returns the items and storage areas found in raw
func (p *Parser) ParseResponse(raw string, pass int) Response {
	payload, ok := ExtractJSON(raw)
	if !ok {
		log.Warn().Int("pass", pass).Int("length", len(raw)).Msg("no parseable JSON in model response")
		return Response{}
	}

	var resp Response
	rawItems := firstList(payload, itemKeys)
	for i, v := range rawItems {
		fields, ok := v.(map[string]any)
		if !ok {
			log.Debug().Int("pass", pass).Int("index", i).Msg("skipping non-object item")
			continue
		}
		item, ok := p.parseItem(fields, pass)
		if !ok {
			continue
		}
		resp.Items = append(resp.Items, item)
	}

	for _, v := range firstList(payload, storageKeys) {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(fields, "name")
		if name == "" {
			continue
		}
		resp.StorageAreas = append(resp.StorageAreas, types.StorageArea{
			Name:     name,
			Type:     types.ParseStorageType(stringField(fields, "type")),
			Location: stringField(fields, "location"),
		})
	}

	log.Debug().
		Int("pass", pass).
		Int("raw_items", len(rawItems)).
		Int("items", len(resp.Items)).
		Int("storage_areas", len(resp.StorageAreas)).
		Msg("parsed model response")
	return resp
}

func (p *Parser) parseItem(fields map[string]any, pass int) (types.DetectedItem, bool) {
	label := stringField(fields, "label")
	if label == "" {
		log.Debug().Int("pass", pass).Msg("skipping item without label")
		return types.DetectedItem{}, false
	}

	item := types.DetectedItem{
		Label:      label,
		Category:   types.ParseCategory(stringField(fields, "category")),
		Brand:      cleanBrand(stringField(fields, "brand")),
		Confidence: confidence(fields["confidence"]),
		Pass:       pass,
	}

	if box, ok := p.resolveBox(fields); ok {
		item.BoundingBox = &box
	}
	for _, key := range locationKey {
		if bucket, ok := types.ParseLocationBucket(stringField(fields, key)); ok {
			item.LocationBucket = bucket
			break
		}
	}
	if item.LocationBucket == "" && item.BoundingBox != nil {
		item.LocationBucket = geometry.BucketForBox(*item.BoundingBox)
	}

	if item.BoundingBox == nil && item.LocationBucket == "" {
		log.Debug().Int("pass", pass).Str("label", label).Msg("skipping item without location")
		return types.DetectedItem{}, false
	}

	item.ID = p.newID()
	return item, true
}

// resolveBox prefers an explicit box and falls back to grid cells
func (p *Parser) resolveBox(fields map[string]any) (types.Box, bool) {
	for _, key := range boxKeys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		if box, ok := parseBox(v); ok {
			return box, true
		}
		log.Debug().Str("key", key).Interface("value", v).Msg("unusable bounding box")
	}

	for _, key := range cellKeys {
		switch v := fields[key].(type) {
		case string:
			if box, ok := p.grid.ParseCells(v); ok {
				return box, true
			}
		case []any:
			specs := make([]string, 0, len(v))
			for _, s := range v {
				if str, ok := s.(string); ok {
					specs = append(specs, str)
				}
			}
			if box, ok := p.grid.ParseCells(specs...); ok {
				return box, true
			}
		}
	}
	return types.Box{}, false
}

// parseBox accepts {x,y,width,height}, {x,y,w,h} or [x,y,w,h]. Values above 1
// are read as percentages.
func parseBox(v any) (types.Box, bool) {
	var vals [4]float64
	switch b := v.(type) {
	case map[string]any:
		keys := [4][]string{{"x", "left"}, {"y", "top"}, {"width", "w"}, {"height", "h"}}
		for i, names := range keys {
			found := false
			for _, name := range names {
				if f, ok := number(b[name]); ok {
					vals[i] = f
					found = true
					break
				}
			}
			if !found {
				return types.Box{}, false
			}
		}
	case []any:
		if len(b) != 4 {
			return types.Box{}, false
		}
		for i := range b {
			f, ok := number(b[i])
			if !ok {
				return types.Box{}, false
			}
			vals[i] = f
		}
	default:
		return types.Box{}, false
	}

	box := types.Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if box.X > 1 || box.Y > 1 || box.W > 1 || box.H > 1 {
		box = types.Box{X: box.X / 100, Y: box.Y / 100, W: box.W / 100, H: box.H / 100}
	}
	box = geometry.Clamp(box)
	if box.Empty() {
		return types.Box{}, false
	}
	return box, true
}

// ExtractJSON locates a JSON payload in free text: first inside a fenced code
// block, then between the first '{' and the last '}'. Model quirks such as
// comments and trailing commas are stripped as a last attempt. A top-level
// array is returned as {"items": [...]}.
func ExtractJSON(raw string) (map[string]any, bool) {
	var candidates []string
	for _, m := range reFence.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	object := slice(raw, "{", "}")
	array := slice(raw, "[", "]")
	// a bare top-level array starts before its first object
	if array != "" && (object == "" || strings.Index(raw, "[") < strings.Index(raw, "{")) {
		candidates = append(candidates, array, object)
	} else {
		candidates = append(candidates, object, array)
	}

	for _, c := range candidates {
		if payload, ok := decode(c); ok {
			return payload, true
		}
	}
	for _, c := range candidates {
		if payload, ok := decode(sanitize(c)); ok {
			return payload, true
		}
	}
	return nil, false
}

func slice(raw, left, right string) string {
	start := strings.Index(raw, left)
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(raw, right)
	if end <= start {
		return ""
	}
	return raw[start : end+1]
}

func decode(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		return map[string]any{itemKeys[0]: t}, true
	}
	return nil, false
}

// sanitize removes comments and trailing commas that models like to emit
func sanitize(s string) string {
	s = reBlock.ReplaceAllString(s, "")
	s = reLine.ReplaceAllString(s, "")
	s = reTrailing.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

func firstList(payload map[string]any, keys []string) []any {
	for _, k := range keys {
		if list, ok := payload[k].([]any); ok {
			return list
		}
	}
	return nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

// number reads a JSON number or numeric string. NaN and infinities are
// rejected.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func confidence(v any) float64 {
	f, ok := number(v)
	if !ok || f < 0 {
		return 0
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	if f > 1 {
		return 1
	}
	return f
}

func cleanBrand(s string) string {
	switch strings.ToLower(s) {
	case "null", "none", "unknown", "n/a":
		return ""
	}
	return s
}
