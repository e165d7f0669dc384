package export

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"deckforge/deck"
)

// Grid PDF geometry, A4 landscape in millimeters. The footer space stays
// clear of maroto's auto page-break margin so a slide never spills onto
// a second page.
const (
	pdfPageW       = 297.0
	pdfPageH       = 210.0
	pdfFooterSpace = 22.0
	gridCols       = 12
)

var (
	pdfBodyColor     = props.Color{Red: 51, Green: 65, Blue: 85}
	pdfSubtitleColor = props.Color{Red: 100, Green: 116, Blue: 139}
)

// buildPDF renders the deck with maroto: one explicit page per slide,
// Arial throughout for Unicode coverage.
func (a *Assembler) buildPDF(pages []Page, profile deck.CompanyProfile) ([]byte, error) {
	margin := a.tpl.Margin * 25.4
	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageSize(pagesize.A4).
		WithLeftMargin(margin).
		WithTopMargin(margin).
		WithRightMargin(margin).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Arial,
			Size:   float64(a.tpl.BodySize),
		}).
		Build()

	m := maroto.New(cfg)
	for _, pg := range pages {
		m.AddPages(a.pdfPage(pg, margin))
	}

	document, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return document.GetBytes(), nil
}

func (a *Assembler) pdfPage(pg Page, margin float64) core.Page {
	usableW := pdfPageW - 2*margin
	usableH := pdfPageH - margin - pdfFooterSpace
	out := page.New()
	switch {
	case pg.fullBleed():
		out.Add(row.New(usableH).Add(
			col.New(gridCols).Add(
				image.NewFromBytes(pg.Image, pdfExtension(pg.MimeType), props.Rect{
					Center:  true,
					Percent: 100,
				}),
			),
		))
	case pg.Layout.Config.Centered:
		a.pdfCentered(out, pg, usableW, usableH)
	default:
		a.pdfNative(out, pg, usableW, usableH)
	}
	return out
}

// pdfCentered lays out a cover-style slide: vertical breathing room, big
// centered title, subtitle lines, key points in one caption row.
func (a *Assembler) pdfCentered(out core.Page, pg Page, usableW, usableH float64) {
	r, g, b := a.kit.PrimaryRGB()
	if a.logo != nil {
		out.Add(row.New(usableH * 0.1))
		out.Add(row.New(14).Add(
			col.New(gridCols).Add(
				image.NewFromBytes(a.logo, pdfExtension(a.logoMime), props.Rect{
					Center:  true,
					Percent: 100,
				}),
			),
		))
		out.Add(row.New(usableH * 0.08))
	} else {
		out.Add(row.New(usableH * 0.24))
	}
	out.Add(row.New(2.3 * ptToMM(a.tpl.TitleSize)).Add(
		col.New(gridCols).Add(
			text.New(pg.Content.Title, props.Text{
				Size:  float64(a.tpl.TitleSize),
				Style: fontstyle.Bold,
				Align: align.Center,
				Color: &props.Color{Red: r, Green: g, Blue: b},
			}),
		),
	))

	if pg.Content.BodyText != "" {
		lineH := lineHeight(a.tpl.SubtitleSize)
		lines := wrapText(pg.Content.BodyText, charsPerLine(usableW*0.8, a.tpl.SubtitleSize))
		comps := make([]core.Component, 0, len(lines))
		for i, ln := range lines {
			comps = append(comps, text.New(ln, props.Text{
				Size:  float64(a.tpl.SubtitleSize),
				Top:   float64(i) * lineH,
				Align: align.Center,
				Color: &pdfSubtitleColor,
			}))
		}
		out.Add(row.New(float64(len(lines))*lineH + 4).Add(
			col.New(gridCols).Add(comps...),
		))
	}

	if len(pg.Content.KeyPoints) > 0 {
		out.Add(row.New(4))
		out.Add(row.New(1.8 * ptToMM(a.tpl.SmallSize)).Add(
			col.New(gridCols).Add(
				text.New(strings.Join(pg.Content.KeyPoints, "  ·  "), props.Text{
					Size:  float64(a.tpl.SmallSize),
					Align: align.Center,
					Color: &pdfSubtitleColor,
				}),
			),
		))
	}
}

// pdfNative lays out a content slide on the column grid: heading row,
// divider, then body text beside the chart or photo.
func (a *Assembler) pdfNative(out core.Page, pg Page, usableW, usableH float64) {
	cfg := pg.Layout.Config
	r, g, b := a.kit.PrimaryRGB()

	titleH := cfg.TitleRatio * usableH
	if floor := 1.7 * ptToMM(a.tpl.HeadingSize); titleH < floor {
		titleH = floor
	}
	out.Add(row.New(titleH).Add(
		col.New(gridCols).Add(
			text.New(pg.Content.Title, props.Text{
				Size:  float64(a.tpl.HeadingSize),
				Style: fontstyle.Bold,
				Color: &props.Color{Red: r, Green: g, Blue: b},
			}),
		),
	))
	if a.tpl.AccentBar > 0 {
		out.Add(row.New(2).Add(
			col.New(gridCols).Add(
				line.New(props.Line{
					Color:       &props.Color{Red: r, Green: g, Blue: b},
					Thickness:   0.8,
					SizePercent: 100,
				}),
			),
		))
	}

	contentH := usableH - titleH - 6
	textCols := gridCols
	if pg.hasInlineImage() {
		textCols = int(cfg.BodyRatio*gridCols + 0.5)
		if textCols < 4 {
			textCols = 4
		}
		if textCols > gridCols-3 {
			textCols = gridCols - 3
		}
	}

	textColW := usableW * float64(textCols) / gridCols
	lines := a.bodyLines(pg.Content, textColW-4)
	lineH := lineHeight(a.tpl.BodySize)
	if limit := int(contentH / lineH); limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	comps := make([]core.Component, 0, len(lines))
	for i, ln := range lines {
		if ln == "" {
			continue
		}
		comps = append(comps, text.New(ln, props.Text{
			Size:  float64(a.tpl.BodySize),
			Top:   float64(i) * lineH,
			Color: &pdfBodyColor,
		}))
	}
	textCol := col.New(textCols).Add(comps...)

	contentRow := row.New(contentH)
	if pg.hasInlineImage() {
		imgCol := col.New(gridCols - textCols).Add(
			image.NewFromBytes(pg.Image, pdfExtension(pg.MimeType), props.Rect{
				Center:  true,
				Percent: 100,
			}),
		)
		if cfg.VisualRight {
			contentRow.Add(textCol, imgCol)
		} else {
			contentRow.Add(imgCol, textCol)
		}
	} else {
		contentRow.Add(textCol)
	}
	out.Add(contentRow)
}

// bodyLines pre-wraps body text and bullets to the column's character
// budget so each rendered line gets an exact vertical offset.
func (a *Assembler) bodyLines(content deck.SlideContent, widthMM float64) []string {
	budget := charsPerLine(widthMM, a.tpl.BodySize)
	lines := wrapText(content.BodyText, budget)
	if len(lines) > 0 && len(content.KeyPoints) > 0 {
		lines = append(lines, "")
	}
	for _, point := range content.KeyPoints {
		for j, ln := range wrapText(point, budget-2) {
			if j == 0 {
				lines = append(lines, "• "+ln)
			} else {
				lines = append(lines, "   "+ln)
			}
		}
	}
	return lines
}

func pdfExtension(mime string) extension.Type {
	if mime == "image/jpeg" {
		return extension.Jpg
	}
	return extension.Png
}

// Approximate Arial metrics, points to millimeters. The wrap budget
// underestimates line capacity so a pre-wrapped line never rewraps.
func ptToMM(size int) float64 {
	return float64(size) * 0.3528
}

func lineHeight(size int) float64 {
	return ptToMM(size) * 1.35
}

func charsPerLine(widthMM float64, size int) int {
	n := int(widthMM / (0.22 * float64(size)))
	if n < 12 {
		n = 12
	}
	return n
}
