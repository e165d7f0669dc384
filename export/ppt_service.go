package export

import (
	"bytes"
	"fmt"
	"strings"

	ppt "github.com/VantageDataChat/GoPPT"

	"deckforge/deck"
)

// Slide geometry, 16:9 widescreen.
const (
	emuPerInch    = 914400
	slideWidthIn  = 10.0
	slideHeightIn = 5.625
	columnGapIn   = 0.2
)

// Neutral text colors shared by content slides (AARRGGBB).
const (
	pptBodyColor     = "FF334155"
	pptSubtitleColor = "FF64748B"
)

func emu(inches float64) int64 {
	return int64(inches * emuPerInch)
}

func solidFill(argb string) *ppt.Fill {
	return ppt.NewFill().SetSolid(ppt.NewColor(argb))
}

func alignCenter(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalCenter))
}

// buildPPTX renders the deck as a native PowerPoint document: one slide
// per page, full-bleed for synthesized images, layout-grid text and
// visuals for the rest.
func (a *Assembler) buildPPTX(pages []Page, profile deck.CompanyProfile) ([]byte, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = deckTitle(pages, profile)
	p.GetDocumentProperties().Creator = "deckforge"

	for i, page := range pages {
		slide := p.GetActiveSlide()
		if i > 0 {
			slide = p.CreateSlide()
		}
		if page.fullBleed() {
			a.pptFullBleed(slide, page)
		} else {
			a.pptNative(slide, page)
		}
	}

	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("create pptx writer: %w", err)
	}
	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pptx: %w", err)
	}
	return buf.Bytes(), nil
}

// pptFullBleed paints the synthesized image edge to edge.
func (a *Assembler) pptFullBleed(slide *ppt.Slide, page Page) {
	img := slide.CreateDrawingShape()
	img.SetImageData(page.Image, page.MimeType)
	img.SetOffsetX(0).SetOffsetY(0)
	img.SetWidth(emu(slideWidthIn)).SetHeight(emu(slideHeightIn))
}

// pptNative places title, body, bullets, and the optional chart or photo
// according to the layout config ratios.
func (a *Assembler) pptNative(slide *ppt.Slide, page Page) {
	if a.tpl.AccentBar > 0 {
		bar := slide.CreateRichTextShape()
		bar.SetOffsetX(0).SetOffsetY(0)
		bar.SetWidth(emu(slideWidthIn)).SetHeight(emu(a.tpl.AccentBar))
		bar.SetFill(solidFill(a.kit.PrimaryARGB()))
	}

	if page.Layout.Config.Centered {
		a.pptCentered(slide, page)
		return
	}

	cfg := page.Layout.Config
	margin := a.tpl.Margin
	contentW := slideWidthIn - 2*margin
	titleH := cfg.TitleRatio * slideHeightIn

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(emu(margin)).SetOffsetY(emu(margin))
	titleShape.SetWidth(emu(contentW)).SetHeight(emu(titleH))
	tr := titleShape.CreateTextRun(page.Content.Title)
	tr.GetFont().SetSize(a.tpl.HeadingSize).SetBold(true).SetColor(ppt.NewColor(a.kit.PrimaryARGB()))

	bodyTop := margin + titleH + 0.1
	bodyH := slideHeightIn - bodyTop - margin

	textX := margin
	textW := contentW
	if page.hasInlineImage() {
		textW = cfg.BodyRatio * contentW
		visualW := contentW - textW - columnGapIn
		visualX := margin + textW + columnGapIn
		if !cfg.VisualRight {
			visualX = margin
			textX = margin + visualW + columnGapIn
		}
		img := slide.CreateDrawingShape()
		img.SetImageData(page.Image, page.MimeType)
		img.SetOffsetX(emu(visualX)).SetOffsetY(emu(bodyTop))
		img.SetWidth(emu(visualW)).SetHeight(emu(bodyH))
	}

	bodyShape := slide.CreateRichTextShape()
	bodyShape.SetOffsetX(emu(textX)).SetOffsetY(emu(bodyTop))
	bodyShape.SetWidth(emu(textW)).SetHeight(emu(bodyH))

	lineBudget := int(textW * 8.5)
	first := true
	addLine := func(text string) {
		if !first {
			bodyShape.CreateParagraph()
		}
		first = false
		run := bodyShape.CreateTextRun(text)
		run.GetFont().SetSize(a.tpl.BodySize).SetColor(ppt.NewColor(pptBodyColor))
	}

	for _, line := range wrapText(page.Content.BodyText, lineBudget) {
		addLine(line)
	}
	for _, point := range page.Content.KeyPoints {
		for j, line := range wrapText(point, lineBudget-2) {
			if j == 0 {
				addLine("• " + line)
			} else {
				addLine("   " + line)
			}
		}
	}
}

// pptCentered renders a cover-style slide: logo, big centered title,
// centered subtitle, accent bar at the foot.
func (a *Assembler) pptCentered(slide *ppt.Slide, page Page) {
	if a.logo != nil {
		w, h := a.logoFit(2.0, 0.6)
		img := slide.CreateDrawingShape()
		img.SetImageData(a.logo, a.logoMime)
		img.SetOffsetX(emu((slideWidthIn - w) / 2)).SetOffsetY(emu(0.8))
		img.SetWidth(emu(w)).SetHeight(emu(h))
	}

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(emu(1.0)).SetOffsetY(emu(1.7))
	titleShape.SetWidth(emu(8.0)).SetHeight(emu(1.2))
	tr := titleShape.CreateTextRun(page.Content.Title)
	tr.GetFont().SetSize(a.tpl.TitleSize).SetBold(true).SetColor(ppt.NewColor(a.kit.PrimaryARGB()))
	alignCenter(titleShape.GetActiveParagraph())

	if page.Content.BodyText != "" {
		sub := slide.CreateRichTextShape()
		sub.SetOffsetX(emu(1.0)).SetOffsetY(emu(3.0))
		sub.SetWidth(emu(8.0)).SetHeight(emu(1.0))
		first := true
		for _, line := range wrapText(page.Content.BodyText, 70) {
			if !first {
				sub.CreateParagraph()
			}
			first = false
			run := sub.CreateTextRun(line)
			run.GetFont().SetSize(a.tpl.SubtitleSize).SetColor(ppt.NewColor(pptSubtitleColor))
			alignCenter(sub.GetActiveParagraph())
		}
	}

	if len(page.Content.KeyPoints) > 0 {
		pts := slide.CreateRichTextShape()
		pts.SetOffsetX(emu(1.0)).SetOffsetY(emu(4.2))
		pts.SetWidth(emu(8.0)).SetHeight(emu(0.5))
		run := pts.CreateTextRun(strings.Join(page.Content.KeyPoints, "  ·  "))
		run.GetFont().SetSize(a.tpl.SmallSize).SetColor(ppt.NewColor(pptSubtitleColor))
		alignCenter(pts.GetActiveParagraph())
	}

	if a.tpl.AccentBar > 0 {
		bar := slide.CreateRichTextShape()
		bar.SetOffsetX(0).SetOffsetY(emu(slideHeightIn - a.tpl.AccentBar))
		bar.SetWidth(emu(slideWidthIn)).SetHeight(emu(a.tpl.AccentBar))
		bar.SetFill(solidFill(a.kit.SecondaryARGB()))
	}
}

// wrapText breaks text into lines of at most maxLen runes, preferring
// space boundaries.
func wrapText(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen < 8 {
		maxLen = 8
	}
	var lines []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			lines = append(lines, string(runes))
			break
		}
		breakPoint := maxLen
		for i := maxLen; i > maxLen/2; i-- {
			if runes[i] == ' ' {
				breakPoint = i
				break
			}
		}
		lines = append(lines, strings.TrimRight(string(runes[:breakPoint]), " "))
		runes = runes[breakPoint:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return lines
}

// deckTitle names the document: the company when known, otherwise the
// cover slide's title.
func deckTitle(pages []Page, profile deck.CompanyProfile) string {
	if name := profile.Get("company_name", "company"); name != "" {
		return name + " Pitch Deck"
	}
	if len(pages) > 0 && pages[0].Content.Title != "" {
		return pages[0].Content.Title
	}
	return "Pitch Deck"
}
