package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/cropper"
	"github.com/menta2k/declutter/pkg/geometry"
	"github.com/menta2k/declutter/pkg/parser"
	"github.com/menta2k/declutter/pkg/prompt"
	"github.com/menta2k/declutter/pkg/types"
)

// Config controls pacing and deduplication of a run
type Config struct {
	// PassDelay is the pause between two passes over the same photo
	PassDelay time.Duration
	// PhotoDelay is the pause before moving on to the next photo
	PhotoDelay       time.Duration
	OverlapThreshold float64
	Thumbnails       bool
}

// DefaultConfig waits one second between calls
func DefaultConfig() Config {
	return Config{
		PassDelay:        time.Second,
		PhotoDelay:       time.Second,
		OverlapThreshold: DefaultOverlapThreshold,
		Thumbnails:       true,
	}
}

// Reconciler runs every pass over every photo and folds the answers into one
// deduplicated result. Photos and passes run strictly one after another so
// only one request is ever in flight.
type Reconciler struct {
	client  client.VisionClient
	prompts *prompt.Generator
	parser  *parser.Parser
	cropper *cropper.ThumbnailCropper
	config  Config
}

// NewReconciler wires a reconciler. A nil generator, parser or cropper gets
// the default 4-pass, 5x5 grid setup.
func NewReconciler(vc client.VisionClient, prompts *prompt.Generator, p *parser.Parser, c *cropper.ThumbnailCropper, config Config) *Reconciler {
	if prompts == nil {
		prompts = prompt.NewGenerator(prompt.FourPass, geometry.DefaultGrid, true)
	}
	if p == nil {
		p = parser.New(geometry.DefaultGrid)
	}
	if c == nil {
		c = cropper.New()
	}
	return &Reconciler{
		client:  vc,
		prompts: prompts,
		parser:  p,
		cropper: c,
		config:  config,
	}
}

// photoResult is what one photo contributes to the run
type photoResult struct {
	items   []types.DetectedItem
	areas   []types.StorageArea
	sent    image.Image
	reports []types.PassReport
}

// Analyze detects the items in photos. Any client error, cancellation
// included, aborts the whole run and no partial result is returned. Responses
// that cannot be parsed only cost their pass.
func (r *Reconciler) Analyze(ctx context.Context, photos []image.Image) (*types.ComprehensiveResult, error) {
	start := time.Now()
	result := &types.ComprehensiveResult{
		Items:        []types.DetectedItem{},
		StorageAreas: []types.StorageArea{},
		Passes:       []types.PassReport{},
		Photos:       make([]image.Image, len(photos)),
	}

	var areas []types.StorageArea
	for i, photo := range photos {
		if i > 0 {
			if err := sleep(ctx, r.config.PhotoDelay); err != nil {
				return nil, err
			}
		}

		pr, err := r.analyzePhoto(ctx, i, photo)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, pr.items...)
		result.Passes = append(result.Passes, pr.reports...)
		result.Photos[i] = pr.sent
		areas = append(areas, pr.areas...)
	}

	result.StorageAreas = UniqueAreas(areas)
	AssignStorage(result.Items, result.StorageAreas)
	result.OrganizationSuggestions = Suggestions(result.Items)
	result.OverallConfidence = MeanConfidence(result.Items)
	result.TotalItemsFound = len(result.Items)
	result.ProcessingTimeSeconds = time.Since(start).Seconds()

	log.Info().
		Int("photos", len(photos)).
		Int("items", result.TotalItemsFound).
		Int("storage_areas", len(result.StorageAreas)).
		Float64("confidence", result.OverallConfidence).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return result, nil
}

func (r *Reconciler) analyzePhoto(ctx context.Context, index int, photo image.Image) (*photoResult, error) {
	if photo == nil {
		return nil, fmt.Errorf("photo %d: nil image", index)
	}

	acc := NewAccumulator(r.config.OverlapThreshold)
	pr := &photoResult{}

	for pass := 1; pass <= r.prompts.Count(); pass++ {
		if pass > 1 {
			if err := sleep(ctx, r.config.PassDelay); err != nil {
				return nil, err
			}
		}

		spec := r.prompts.PromptFor(pass, acc.Labels())
		log.Debug().Int("photo", index).Int("pass", pass).Str("name", spec.Name).Msg("running pass")

		resp, err := r.client.Analyze(ctx, photo, spec.Text())
		if err == nil && resp == nil {
			err = client.NewError("vision", client.KindMalformedResponse, errors.New("no response"))
		}
		if err != nil {
			return nil, fmt.Errorf("photo %d pass %d: %w", index, pass, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pr.sent == nil && resp.Sent != nil {
			pr.sent = resp.Sent
		}

		parsed := r.parser.ParseResponse(resp.Text, pass)
		for i := range parsed.Items {
			parsed.Items[i].PhotoIndex = index
		}
		added := acc.Merge(parsed.Items)
		pr.areas = append(pr.areas, parsed.StorageAreas...)
		pr.reports = append(pr.reports, types.PassReport{
			Photo:  index,
			Pass:   pass,
			Name:   spec.Name,
			Parsed: len(parsed.Items),
			Added:  added,
		})

		log.Debug().
			Int("photo", index).
			Int("pass", pass).
			Int("parsed", len(parsed.Items)).
			Int("added", added).
			Int64("tokens", resp.Usage.TotalTokens).
			Msg("pass complete")
	}

	if pr.sent == nil {
		pr.sent = photo
	}
	pr.items = acc.Items()
	if r.config.Thumbnails {
		// crop from the transmitted image so normalized coordinates line up
		r.cropper.Attach(pr.sent, pr.items)
	}
	return pr, nil
}

// sleep waits for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
