// Package declutter finds the clutter in room photos and turns it into an
// organizing plan.
//
// Every photo is sent to a vision model several times, each pass with a
// narrower focus and the list of labels found so far. The answers are parsed
// defensively, reconciled into one deduplicated item list, given a storage
// destination and summarized as suggestions.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/declutter"
//	)
//
//	func main() {
//		cfg := declutter.DefaultConfig()
//		cfg.ApplyEnv()
//
//		a, err := declutter.New(context.Background(), cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer a.Close()
//
//		result, err := a.AnalyzeSources(context.Background(), []string{"room.jpg"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, item := range result.Items {
//			fmt.Printf("%s -> %s\n", item.Label, item.SuggestedStorage)
//		}
//	}
//
// The package consists of these main components:
//
//  1. Prompts (pkg/prompt): per-pass instructions and the response schema
//  2. Backends (pkg/openai, pkg/ollama, pkg/llamacpp, pkg/gemini): model clients
//  3. Parser (pkg/parser): tolerant extraction of items from model text
//  4. Detection (pkg/detection): the multi-pass reconciler, storage and suggestions
//  5. Cropper (pkg/cropper): item thumbnails cut from the analyzed image
//  6. Plan (pkg/plan): category tasks for the organizing session
package declutter

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/declutter/internal/config"
	"github.com/menta2k/declutter/internal/utils"
	"github.com/menta2k/declutter/pkg/cache"
	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/cropper"
	"github.com/menta2k/declutter/pkg/detection"
	"github.com/menta2k/declutter/pkg/gemini"
	"github.com/menta2k/declutter/pkg/llamacpp"
	"github.com/menta2k/declutter/pkg/ollama"
	"github.com/menta2k/declutter/pkg/openai"
	"github.com/menta2k/declutter/pkg/parser"
	"github.com/menta2k/declutter/pkg/plan"
	"github.com/menta2k/declutter/pkg/processing"
	"github.com/menta2k/declutter/pkg/prompt"
	"github.com/menta2k/declutter/pkg/types"
)

// Version of the declutter library
const Version = "1.0.0"

// MinImageSize is the smallest side, in pixels, a photo may have
const MinImageSize = 64

// maxLoaders bounds concurrent photo downloads
const maxLoaders = 4

// Config is the full analyzer configuration
type Config = config.Config

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return config.Default()
}

// Analyzer provides a high-level interface for room analysis
type Analyzer struct {
	config     *Config
	processor  *processing.Processor
	client     client.VisionClient
	reconciler *detection.Reconciler
	store      *cache.Store
}

// New creates an Analyzer for the backend selected in cfg. Environment
// overrides are not applied here, call cfg.ApplyEnv first when wanted.
func New(ctx context.Context, cfg *Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	processor := newProcessor(cfg)
	vc, err := newBackend(ctx, cfg, processor)
	if err != nil {
		return nil, err
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		if err := utils.EnsureDir(filepath.Dir(cfg.Cache.Path)); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		store, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		vc = cache.New(vc, cacheNamespace(cfg), store)
	}

	a := build(vc, cfg, processor)
	a.store = store
	return a, nil
}

// NewWithClient creates an Analyzer around an existing vision client. The
// backend settings in cfg are ignored.
func NewWithClient(vc client.VisionClient, cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return build(vc, cfg, newProcessor(cfg))
}

func build(vc client.VisionClient, cfg *Config, processor *processing.Processor) *Analyzer {
	prompts := prompt.NewGenerator(prompt.ForCount(cfg.Detection.Passes), cfg.Grid, cfg.Image.GridOverlay)
	thumbs := cropper.NewWithConfig(cropper.CropConfig{
		PaddingRatio:   cfg.Cropper.PaddingRatio,
		MaxSize:        cfg.Cropper.ThumbnailSize,
		AllowUpscaling: cfg.Cropper.AllowUpscaling,
	})
	reconciler := detection.NewReconciler(vc, prompts, parser.New(cfg.Grid), thumbs, detection.Config{
		PassDelay:        cfg.Detection.PassDelay,
		PhotoDelay:       cfg.Detection.PhotoDelay,
		OverlapThreshold: cfg.Detection.OverlapThreshold,
		Thumbnails:       cfg.Detection.Thumbnails,
	})
	return &Analyzer{
		config:     cfg,
		processor:  processor,
		client:     vc,
		reconciler: reconciler,
	}
}

func newProcessor(cfg *Config) *processing.Processor {
	return processing.NewProcessor(processing.Options{
		MaxDimension: cfg.Image.MaxDimension,
		JPEGQuality:  cfg.Image.JPEGQuality,
		GridOverlay:  cfg.Image.GridOverlay,
		Grid:         cfg.Grid,
	})
}

// newBackend builds the vision client named by cfg.Backend.Type
func newBackend(ctx context.Context, cfg *Config, processor *processing.Processor) (client.VisionClient, error) {
	b := cfg.Backend
	switch b.Type {
	case config.BackendOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      b.APIKey,
			BaseURL:     b.URL,
			Model:       b.Model,
			Temperature: float32(b.Temperature),
			MaxTokens:   b.MaxTokens,
			Detail:      b.Detail,
			Timeout:     b.Timeout,
		}, processor), nil
	case config.BackendOllama:
		return ollama.NewClient(cfg.BackendURL(), b.Model, b.Temperature, processor)
	case config.BackendLlamaCpp:
		return llamacpp.NewClient(llamacpp.ClientOpts{
			BaseURL:     cfg.BackendURL(),
			APIKey:      b.APIKey,
			Model:       b.Model,
			Temperature: b.Temperature,
			MaxTokens:   b.MaxTokens,
			Timeout:     b.Timeout,
		}, processor), nil
	case config.BackendGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:      b.APIKey,
			Model:       b.Model,
			Temperature: float32(b.Temperature),
			MaxTokens:   int32(b.MaxTokens),
			BaseURL:     b.URL,
		}, processor)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", b.Type)
	}
}

// cacheNamespace keys cached answers by everything that changes them besides
// the prompt and the pixels
func cacheNamespace(cfg *Config) string {
	return fmt.Sprintf("%s/%s/%d/%t", cfg.Backend.Type, cfg.Backend.Model,
		cfg.Image.MaxDimension, cfg.Image.GridOverlay)
}

// Config returns the configuration the analyzer was built with
func (a *Analyzer) Config() *Config {
	return a.config
}

// Processor returns the image processor shared with the backend
func (a *Analyzer) Processor() *processing.Processor {
	return a.processor
}

// LoadPhotos loads every source, file path or URL, keeping the input order
func (a *Analyzer) LoadPhotos(ctx context.Context, sources []string) ([]image.Image, error) {
	photos := make([]image.Image, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLoaders)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := a.processor.LoadImageSmart(src)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", src, err)
			}
			photos[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return photos, nil
}

// Analyze runs the multi-pass detection over photos
func (a *Analyzer) Analyze(ctx context.Context, photos []image.Image) (*types.ComprehensiveResult, error) {
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photos to analyze")
	}
	for i, photo := range photos {
		if err := processing.ValidateImage(photo, MinImageSize); err != nil {
			return nil, fmt.Errorf("photo %d: %w", i, err)
		}
	}
	log.Info().
		Int("photos", len(photos)).
		Str("backend", a.config.Backend.Type).
		Int("passes", a.config.Detection.Passes).
		Msg("Starting room analysis")
	return a.reconciler.Analyze(ctx, photos)
}

// AnalyzeSources loads the sources and analyzes them
func (a *Analyzer) AnalyzeSources(ctx context.Context, sources []string) (*types.ComprehensiveResult, error) {
	photos, err := a.LoadPhotos(ctx, sources)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, photos)
}

// Plan groups a result into organizing tasks
func (a *Analyzer) Plan(result *types.ComprehensiveResult) *plan.Plan {
	return plan.Build(result)
}

// Close releases the response cache, if any
func (a *Analyzer) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
