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

	"deckforge/cache"
	"deckforge/config"
	"deckforge/deck"
	"deckforge/export"
	"deckforge/pipeline"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "provenance" {
		os.Exit(runProvenance(args[1:]))
	}
	os.Exit(runGenerate(args))
}

func defaultConfigPath() string {
	return filepath.Join(config.DefaultCacheDir(), "config.json")
}

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("deckforge", flag.ExitOnError)
	outlinePath := fs.String("outline", "", "outline JSON file (required)")
	cfgPath := fs.String("config", defaultConfigPath(), "configuration file")
	format := fs.String("format", string(deck.FormatNativeSlides), "output format: native_slides, pdf, stitched_images")
	outPath := fs.String("out", "", "output file (default: outline name with the format's extension)")
	name := fs.String("name", "", "override the company name from the outline")
	preferred := fs.String("provider", "", "preferred provider id (auto, openai, anthropic, gemini)")
	noImages := fs.Bool("no-images", false, "skip photographic visuals; charts still render")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	jsonOut := fs.Bool("json", false, "print the run result as JSON")
	fs.Parse(args)

	if *outlinePath == "" {
		fmt.Fprintln(os.Stderr, "deckforge: -outline is required")
		fs.Usage()
		return 2
	}
	artifactFormat, err := parseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 2
	}

	data, err := os.ReadFile(*outlinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	outline, err := deck.ParseOutline(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	if *name != "" {
		if outline.Profile == nil {
			outline.Profile = deck.CompanyProfile{}
		}
		outline.Profile["company_name"] = *name
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	if *preferred != "" {
		cfg.ProviderPreference = *preferred
	}
	if *noImages {
		cfg.IncludeImages = false
	}

	out := *outPath
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(*outlinePath), filepath.Ext(*outlinePath))
		out = base + export.ExtensionFor(artifactFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp()
	if err := app.Startup(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	req := pipeline.Request{
		Outline: outline,
		Format:  artifactFormat,
		OutPath: out,
	}
	if !*quiet && !*jsonOut {
		req.Progress = func(u pipeline.ProgressUpdate) {
			fmt.Printf("[%3d%%] %d/%d %-8s %s\n", u.Progress, u.Step, u.Total, u.Stage, u.Message)
		}
	}

	res, err := app.GeneratePresentation(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}

	if *jsonOut {
		encoded, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
			return 1
		}
		fmt.Println(string(encoded))
		return 0
	}

	fmt.Printf("\nWrote %s (%d slides, run %s)\n", res.Artifact.FilePath, res.Artifact.SlideCount, res.RunID)
	for _, rec := range res.Provenance {
		fmt.Printf("  slide %d: %s, %s\n", rec.SlideNumber, rec.LayoutType, describeAsset(rec))
	}
	return 0
}

func parseFormat(s string) (deck.ArtifactFormat, error) {
	switch deck.ArtifactFormat(s) {
	case deck.FormatNativeSlides, deck.FormatPDF, deck.FormatStitchedImages:
		return deck.ArtifactFormat(s), nil
	}
	return "", fmt.Errorf("unknown format %q (want native_slides, pdf, or stitched_images)", s)
}

func describeAsset(rec deck.SlideProvenance) string {
	if rec.AssetKind == "" {
		return "text only"
	}
	desc := fmt.Sprintf("%s from %s", rec.AssetKind, rec.AssetProvider)
	if rec.CacheHit {
		desc += " (cached)"
	}
	return desc
}

func runProvenance(args []string) int {
	fs := flag.NewFlagSet("deckforge provenance", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath(), "configuration file")
	runID := fs.String("run", "", "show the slides of one run")
	limit := fs.Int("limit", 20, "number of runs to list")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	store, err := cache.OpenProvenance(pipeline.ProvenancePath(cfg), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: open run database: %v\n", err)
		return 1
	}
	defer store.Close()

	if *runID != "" {
		slides, err := store.RunSlides(*runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
			return 1
		}
		if len(slides) == 0 {
			fmt.Printf("no slides recorded for run %s\n", *runID)
			return 0
		}
		for _, rec := range slides {
			enhanced := rec.EnhancedBy
			if enhanced == "" {
				enhanced = "none"
			}
			fmt.Printf("slide %d: layout=%s enhanced_by=%s asset=%s\n",
				rec.SlideNumber, rec.LayoutType, enhanced, describeAsset(rec))
		}
		return 0
	}

	runs, err := store.ListRuns(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deckforge: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-15s %2d slides  %s\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04"), r.Format, r.SlideCount, r.FilePath)
	}
	return 0
}
