package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/declutter"
	"github.com/menta2k/declutter/internal/config"
	"github.com/menta2k/declutter/internal/utils"
	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/plan"
	"github.com/menta2k/declutter/pkg/processing"
	"github.com/menta2k/declutter/pkg/types"
)

// inputList collects repeated -in flags
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	inputs       inputList
	outDir       string
	configPath   string
	envPath      string
	backend      string
	model        string
	url          string
	passes       int
	noGrid       bool
	cache        bool
	thumbs       bool
	debugOverlay bool
	debug        bool
}

func main() {
	var opts options
	flag.Var(&opts.inputs, "in", "input photo path, directory or URL (repeatable, comma separated)")
	flag.StringVar(&opts.outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/declutter/config.yaml)")
	flag.StringVar(&opts.envPath, "env", "", "env file with API keys (default ~/.config/declutter/config.env)")
	flag.StringVar(&opts.backend, "backend", "", "backend to use: openai|ollama|llamacpp|gemini")
	flag.StringVar(&opts.model, "model", "", "model name (default depends on backend)")
	flag.StringVar(&opts.url, "url", "", "server URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.IntVar(&opts.passes, "passes", 0, "detection passes per photo: 2 or 4")
	flag.BoolVar(&opts.noGrid, "no-grid", false, "send photos without the grid overlay")
	flag.BoolVar(&opts.cache, "cache", false, "cache model replies on disk")
	flag.BoolVar(&opts.thumbs, "thumbs", true, "write a thumbnail per detected item")
	flag.BoolVar(&opts.debugOverlay, "debug-overlay", false, "write detection overlay images")
	flag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flag.Parse()

	setupLogging(opts.debug)

	if len(opts.inputs) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s -in photo.jpg [-in dir/] [-backend openai|ollama|llamacpp|gemini] [-out outdir]\n",
			filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		fmt.Fprintln(os.Stderr, client.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	if opts.envPath != "" {
		if !utils.FileExists(opts.envPath) {
			return nil, fmt.Errorf("env file not found: %s", opts.envPath)
		}
		config.LoadEnvFile(opts.envPath)
	} else {
		config.LoadEnvFile()
	}

	path := opts.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg := config.Default()
	if utils.FileExists(path) {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Debug().Str("path", path).Msg("Loaded config")
	} else if opts.configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg.ApplyEnv()
	if opts.backend != "" {
		cfg.SetBackend(opts.backend)
		cfg.LoadAPIKey()
	}
	if opts.model != "" {
		cfg.Backend.Model = opts.model
	}
	if opts.url != "" {
		cfg.Backend.URL = opts.url
	}
	if opts.passes != 0 {
		cfg.Detection.Passes = opts.passes
	}
	if opts.noGrid {
		cfg.Image.GridOverlay = false
	}
	if opts.cache {
		cfg.Cache.Enabled = true
	}
	if !opts.thumbs {
		cfg.Detection.Thumbnails = false
	}
	if opts.debugOverlay {
		cfg.Output.DebugOverlay = true
	}
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	sources, err := utils.ExpandInputs(opts.inputs)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no images found in %s", opts.inputs.String())
	}
	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		return err
	}

	analyzer, err := declutter.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	log.Info().
		Int("photos", len(sources)).
		Str("backend", cfg.Backend.Type).
		Str("model", cfg.Backend.Model).
		Msg("Loading photos")
	photos, err := analyzer.LoadPhotos(ctx, sources)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, photos)
	if err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(cfg.Output.Dir, "result.json"), result); err != nil {
		return err
	}
	if err := writeImages(ctx, analyzer.Processor(), cfg, result); err != nil {
		return err
	}

	p := analyzer.Plan(result)
	if err := writeJSON(filepath.Join(cfg.Output.Dir, "plan.json"), p); err != nil {
		return err
	}
	printSummary(result, p)
	return nil
}

func writeJSON(path string, v any) error {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, js, 0o644); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Wrote file")
	return nil
}

// writeImages saves thumbnails and optional overlays concurrently
func writeImages(ctx context.Context, processor *processing.Processor, cfg *config.Config, result *types.ComprehensiveResult) error {
	out := cfg.Output
	if cfg.Detection.Thumbnails {
		if err := utils.EnsureDir(filepath.Join(out.Dir, "thumbs")); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, item := range result.Items {
		if item.Thumbnail == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := utils.ThumbnailFilename(out.Dir, item.PhotoIndex, item.Label, item.ID, out.Format)
			if err := processor.SaveImage(item.Thumbnail, path, out.Format, out.Quality, false); err != nil {
				return fmt.Errorf("save %s failed: %w", path, err)
			}
			log.Debug().Str("path", path).Msg("Wrote thumbnail")
			return nil
		})
	}

	if out.DebugOverlay {
		for i, sent := range result.Photos {
			if sent == nil {
				continue
			}
			g.Go(func() error {
				var items []types.DetectedItem
				for _, item := range result.Items {
					if item.PhotoIndex == i {
						items = append(items, item)
					}
				}
				overlay := processing.CreateDetectionOverlay(sent, items)
				path := filepath.Join(out.Dir, fmt.Sprintf("overlay_%03d.png", i))
				if err := processor.SaveImage(overlay, path, "png", 0, false); err != nil {
					return fmt.Errorf("debug overlay save failed: %w", err)
				}
				log.Info().Str("path", path).Msg("Wrote overlay")
				return nil
			})
		}
	}
	return g.Wait()
}

func printSummary(result *types.ComprehensiveResult, p *plan.Plan) {
	fmt.Printf("\nFound %d items (confidence %.0f%%) in %.1fs\n",
		result.TotalItemsFound, result.OverallConfidence*100, result.ProcessingTimeSeconds)
	for _, item := range result.Items {
		fmt.Printf("  [%d] %-30s %-16s -> %s\n", item.PhotoIndex, item.Label, item.Category, item.SuggestedStorage)
	}

	fmt.Println()
	if err := p.Write(os.Stdout); err != nil {
		log.Warn().Err(err).Msg("Failed to print plan")
	}

	if len(result.OrganizationSuggestions) > 0 {
		fmt.Println("\nSuggestions:")
		for _, s := range result.OrganizationSuggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}
