package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"deckforge/brand"
	"deckforge/deck"
)

// ArtifactIOError marks the one failure class assembly cannot absorb:
// the finished document could not be produced or written. Callers treat
// it as fatal for the run.
type ArtifactIOError struct {
	Path string
	Err  error
}

func (e *ArtifactIOError) Error() string {
	return fmt.Sprintf("artifact write failed for %s: %v", e.Path, e.Err)
}

func (e *ArtifactIOError) Unwrap() error {
	return e.Err
}

// Page is one slide ready for rendering: content, layout verdict, the
// attached asset record, and the asset bytes already loaded from the
// cache. Image is nil when the slide renders text only; MimeType is
// sniffed from the bytes, never trusted from the provider.
type Page struct {
	Content  deck.SlideContent
	Layout   deck.LayoutDecision
	Asset    *deck.GeneratedAsset
	Image    []byte
	MimeType string
}

// fullBleed reports whether this page bypasses the layout grid and paints
// its synthesized image edge to edge.
func (p Page) fullBleed() bool {
	return p.Asset != nil && p.Asset.Kind == deck.AssetFullSlideImage && len(p.Image) > 0
}

// hasInlineImage reports whether the page places a chart or photo inside
// the layout's visual column.
func (p Page) hasInlineImage() bool {
	return !p.fullBleed() && len(p.Image) > 0 && p.Layout.Config.VisualRatio > 0
}

// Assembler turns prepared slides into the final presentation file. Each
// page independently picks its strategy: full-bleed for synthesized
// images, template-driven native layout for everything else.
type Assembler struct {
	tpl    brand.Template
	kit    brand.Kit
	logger func(string)

	logo     []byte
	logoMime string
}

// NewAssembler creates an artifact assembler for one template and brand.
func NewAssembler(tpl brand.Template, kit brand.Kit, logger func(string)) *Assembler {
	return &Assembler{tpl: tpl, kit: kit, logger: logger}
}

func (a *Assembler) log(msg string) {
	if a.logger != nil {
		a.logger(msg)
	}
}

// Assemble renders every slide into the requested format and writes the
// document to outPath atomically. The output has one page per slide in
// slide-number order. Any error returned is an *ArtifactIOError.
func (a *Assembler) Assemble(ctx context.Context, slides []deck.Slide, profile deck.CompanyProfile, format deck.ArtifactFormat, outPath string) (*deck.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ArtifactIOError{Path: outPath, Err: err}
	}
	deck.SortPrepared(slides)
	pages := a.loadPages(slides)

	a.logo, a.logoMime = nil, ""
	if logo, mime, err := a.kit.LoadLogo(); err != nil {
		a.log(fmt.Sprintf("[ASSEMBLE] Logo unusable (%v), continuing without it", err))
	} else if logo != nil && mime != "image/png" && mime != "image/jpeg" {
		a.log(fmt.Sprintf("[ASSEMBLE] Logo format %q not embeddable, continuing without it", mime))
	} else {
		a.logo, a.logoMime = logo, mime
	}

	var data []byte
	var err error
	switch format {
	case deck.FormatNativeSlides:
		data, err = a.buildPPTX(pages, profile)
	case deck.FormatPDF:
		data, err = a.buildPDF(pages, profile)
	case deck.FormatStitchedImages:
		data, err = a.buildStitched(pages, profile)
		if err != nil {
			// The stitched renderer needs a system TTF font; the grid
			// renderer carries its own and keeps the one-page-per-slide
			// guarantee.
			a.log(fmt.Sprintf("[ASSEMBLE] Stitched renderer failed (%v), falling back to grid PDF", err))
			data, err = a.buildPDF(pages, profile)
		}
	default:
		err = fmt.Errorf("unknown artifact format %q", format)
	}
	if err != nil {
		return nil, &ArtifactIOError{Path: outPath, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &ArtifactIOError{Path: outPath, Err: err}
	}
	if err := writeAtomic(outPath, data); err != nil {
		return nil, &ArtifactIOError{Path: outPath, Err: err}
	}

	a.log(fmt.Sprintf("[ASSEMBLE] Wrote %s artifact with %d slides to %s (%d bytes)", format, len(pages), outPath, len(data)))
	return &deck.Artifact{
		Format:     format,
		FilePath:   outPath,
		SlideCount: len(pages),
	}, nil
}

// loadPages reads each slide's asset bytes from the cache. A missing,
// unreadable, or non-embeddable asset file downgrades that slide to
// text-only rendering, it never fails the assembly.
func (a *Assembler) loadPages(slides []deck.Slide) []Page {
	pages := make([]Page, len(slides))
	for i, s := range slides {
		pages[i] = Page{Content: s.Content, Layout: s.Layout, Asset: s.Asset}
		if s.Asset == nil || s.Asset.Path == "" {
			continue
		}
		data, err := os.ReadFile(s.Asset.Path)
		if err != nil {
			a.log(fmt.Sprintf("[ASSEMBLE] Slide %d: asset unreadable (%v), rendering text only", s.Content.SlideNumber, err))
			pages[i].Asset = nil
			continue
		}
		mime := brand.SniffImageMime(data)
		if mime != "image/png" && mime != "image/jpeg" {
			// The document writers embed PNG and JPEG only.
			a.log(fmt.Sprintf("[ASSEMBLE] Slide %d: asset format %q not embeddable, rendering text only", s.Content.SlideNumber, mime))
			pages[i].Asset = nil
			continue
		}
		pages[i].Image = data
		pages[i].MimeType = mime
	}
	return pages
}

// writeAtomic writes via a temp file in the target directory plus rename
// so a crashed run never leaves a half-written artifact behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".deck-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// logoFit scales the loaded logo into a bounding box, preserving its
// intrinsic aspect ratio. Units follow the caller's box.
func (a *Assembler) logoFit(maxW, maxH float64) (float64, float64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.logo))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return maxH, maxH
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	w, h := maxH*ratio, maxH
	if w > maxW {
		w, h = maxW, maxW/ratio
	}
	return w, h
}

// ExtensionFor returns the file extension for an artifact format.
func ExtensionFor(format deck.ArtifactFormat) string {
	if format == deck.FormatNativeSlides {
		return ".pptx"
	}
	return ".pdf"
}
