package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/signintech/gopdf"

	"deckforge/deck"
)

// Stitched geometry: each page is a true 16:9 slide frame in points,
// 1 point = 1/72 inch.
const (
	stitchPageW    = 960.0
	stitchPageH    = 540.0
	stitchFontName = "deck"
)

// Candidate TTF locations, tried in order after the brand kit's own
// font. gopdf embeds no font of its own.
var stitchFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
}

// findFontPath returns the first readable TTF candidate, or "".
func (a *Assembler) findFontPath() string {
	candidates := stitchFontPaths
	if a.kit.FontPath != "" {
		candidates = append([]string{a.kit.FontPath}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// buildStitched renders the deck as sequential 16:9 slide frames with
// gopdf. It fails when no TTF font is available; the caller falls back
// to the grid renderer.
func (a *Assembler) buildStitched(pages []Page, profile deck.CompanyProfile) ([]byte, error) {
	fontPath := a.findFontPath()
	if fontPath == "" {
		return nil, errors.New("no TTF font found on this system")
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: stitchPageW, H: stitchPageH}})

	if err := pdf.AddTTFFont(stitchFontName, fontPath); err != nil {
		return nil, fmt.Errorf("load font %s: %w", fontPath, err)
	}
	// Same face registered for the bold style; setFont falls back to
	// regular when this fails.
	pdf.AddTTFFontWithOption(stitchFontName, fontPath, gopdf.TtfOption{Style: gopdf.Bold})

	for _, pg := range pages {
		pdf.AddPage()
		if pg.fullBleed() {
			if err := a.stitchFullBleed(&pdf, pg); err != nil {
				return nil, err
			}
			continue
		}
		if err := a.stitchNative(&pdf, pg); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write stitched pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func setFont(pdf *gopdf.GoPdf, bold bool, size int) {
	style := ""
	if bold {
		style = "B"
	}
	if err := pdf.SetFont(stitchFontName, style, size); err != nil && bold {
		pdf.SetFont(stitchFontName, "", size)
	}
}

func (a *Assembler) stitchFullBleed(pdf *gopdf.GoPdf, pg Page) error {
	holder, err := gopdf.ImageHolderByBytes(pg.Image)
	if err != nil {
		return fmt.Errorf("slide %d image: %w", pg.Content.SlideNumber, err)
	}
	return pdf.ImageByHolder(holder, 0, 0, &gopdf.Rect{W: stitchPageW, H: stitchPageH})
}

func (a *Assembler) stitchNative(pdf *gopdf.GoPdf, pg Page) error {
	margin := a.tpl.Margin * 72
	accentH := a.tpl.AccentBar * 72
	pr, pgr, pb := a.kit.PrimaryRGB()

	if pg.Layout.Config.Centered {
		return a.stitchCentered(pdf, pg, margin, accentH)
	}

	if accentH > 0 {
		pdf.SetFillColor(pr, pgr, pb)
		pdf.RectFromUpperLeftWithStyle(0, 0, stitchPageW, accentH, "F")
	}

	cfg := pg.Layout.Config
	contentW := stitchPageW - 2*margin
	titleH := cfg.TitleRatio * stitchPageH

	setFont(pdf, true, a.tpl.HeadingSize)
	pdf.SetTextColor(pr, pgr, pb)
	pdf.SetX(margin)
	pdf.SetY(margin + accentH + float64(a.tpl.HeadingSize)*0.4)
	pdf.Cell(nil, pg.Content.Title)

	bodyTop := margin + titleH + 12
	bodyH := stitchPageH - bodyTop - margin

	textX := margin
	textW := contentW
	if pg.hasInlineImage() {
		textW = cfg.BodyRatio * contentW
		visualW := contentW - textW - 16
		visualX := margin + textW + 16
		if !cfg.VisualRight {
			visualX = margin
			textX = margin + visualW + 16
		}
		holder, err := gopdf.ImageHolderByBytes(pg.Image)
		if err != nil {
			return fmt.Errorf("slide %d image: %w", pg.Content.SlideNumber, err)
		}
		if err := pdf.ImageByHolder(holder, visualX, bodyTop, &gopdf.Rect{W: visualW, H: bodyH}); err != nil {
			return err
		}
	}

	setFont(pdf, false, a.tpl.BodySize)
	pdf.SetTextColor(51, 65, 85)
	lineH := float64(a.tpl.BodySize) * 1.45
	budget := stitchCharBudget(textW, a.tpl.BodySize)
	y := bodyTop + float64(a.tpl.BodySize)

	writeLine := func(x float64, s string) {
		if y > stitchPageH-margin {
			return
		}
		pdf.SetX(x)
		pdf.SetY(y)
		pdf.Cell(nil, s)
		y += lineH
	}

	for _, ln := range wrapText(pg.Content.BodyText, budget) {
		writeLine(textX, ln)
	}
	if pg.Content.BodyText != "" && len(pg.Content.KeyPoints) > 0 {
		y += lineH * 0.5
	}
	for _, point := range pg.Content.KeyPoints {
		for j, ln := range wrapText(point, budget-2) {
			if j == 0 {
				writeLine(textX, "• "+ln)
			} else {
				writeLine(textX+14, ln)
			}
		}
	}
	return nil
}

// stitchCentered draws the cover slide: title and subtitle centered by
// measured width, accent strip along the foot.
func (a *Assembler) stitchCentered(pdf *gopdf.GoPdf, pg Page, margin, accentH float64) error {
	pr, pgr, pb := a.kit.PrimaryRGB()
	sr, sgr, sb := a.kit.SecondaryRGB()

	if a.logo != nil {
		w, h := a.logoFit(160, 48)
		if holder, err := gopdf.ImageHolderByBytes(a.logo); err == nil {
			pdf.ImageByHolder(holder, (stitchPageW-w)/2, 56, &gopdf.Rect{W: w, H: h})
		}
	}

	setFont(pdf, true, a.tpl.TitleSize)
	pdf.SetTextColor(pr, pgr, pb)
	centerLine(pdf, pg.Content.Title, stitchPageH*0.38)

	if pg.Content.BodyText != "" {
		setFont(pdf, false, a.tpl.SubtitleSize)
		pdf.SetTextColor(100, 116, 139)
		lineH := float64(a.tpl.SubtitleSize) * 1.5
		y := stitchPageH * 0.52
		budget := stitchCharBudget(stitchPageW-2*margin-80, a.tpl.SubtitleSize)
		for _, ln := range wrapText(pg.Content.BodyText, budget) {
			centerLine(pdf, ln, y)
			y += lineH
		}
	}

	if len(pg.Content.KeyPoints) > 0 {
		setFont(pdf, false, a.tpl.SmallSize)
		pdf.SetTextColor(100, 116, 139)
		centerLine(pdf, strings.Join(pg.Content.KeyPoints, "  ·  "), stitchPageH*0.78)
	}

	if accentH > 0 {
		pdf.SetFillColor(sr, sgr, sb)
		pdf.RectFromUpperLeftWithStyle(0, stitchPageH-accentH, stitchPageW, accentH, "F")
	}
	return nil
}

func centerLine(pdf *gopdf.GoPdf, s string, y float64) {
	w, err := pdf.MeasureTextWidth(s)
	if err != nil {
		w = float64(len(s)) * 6
	}
	pdf.SetX((stitchPageW - w) / 2)
	pdf.SetY(y)
	pdf.Cell(nil, s)
}

// stitchCharBudget estimates how many characters fit in width points at
// the given font size, erring short so lines never overrun.
func stitchCharBudget(width float64, size int) int {
	n := int(width / (0.52 * float64(size)))
	if n < 12 {
		n = 12
	}
	return n
}
