package deck

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LayoutType is the visual treatment chosen for a slide.
type LayoutType string

const (
	LayoutTitle      LayoutType = "title"
	LayoutProblem    LayoutType = "problem"
	LayoutSolution   LayoutType = "solution"
	LayoutData       LayoutType = "data"
	LayoutComparison LayoutType = "comparison"
	LayoutTimeline   LayoutType = "timeline"
	LayoutTeam       LayoutType = "team"
	LayoutFinancials LayoutType = "financials"
	LayoutTraction   LayoutType = "traction"
	LayoutVision     LayoutType = "vision"
	LayoutDefault    LayoutType = "default"
)

// LayoutConfig describes where a layout places text and visuals on the
// page, as fractions of the slide area. Renderers interpret the ratios
// against their own page geometry.
type LayoutConfig struct {
	TitleRatio  float64 `json:"title_ratio"`  // height fraction reserved for the title band
	BodyRatio   float64 `json:"body_ratio"`   // width fraction of the text column
	VisualRatio float64 `json:"visual_ratio"` // width fraction of the chart/image column, 0 = text only
	VisualRight bool    `json:"visual_right"` // visual column sits on the right side
	Centered    bool    `json:"centered"`     // cover-style centered title and body
}

// LayoutDecision is the classifier's verdict for one slide.
type LayoutDecision struct {
	LayoutType LayoutType   `json:"layout_type"`
	Config     LayoutConfig `json:"config"`
}

// SlideContent is one record of the input outline. Stages never mutate a
// slide in place; each stage returns fresh copies so a run can be diffed
// stage by stage.
type SlideContent struct {
	SlideNumber int                `json:"slide_number"`
	Title       string             `json:"title"`
	BodyText    string             `json:"body_text"`
	KeyPoints   []string           `json:"key_points,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Enhanced    bool               `json:"enhanced"`
	EnhancedBy  string             `json:"enhanced_by,omitempty"`
}

// Clone returns a deep copy of the slide.
func (s SlideContent) Clone() SlideContent {
	out := s
	if s.KeyPoints != nil {
		out.KeyPoints = append([]string(nil), s.KeyPoints...)
	}
	if s.Metrics != nil {
		out.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

// CompanyProfile is a free-form mapping of business facts (industry,
// revenue, team, funding ask and so on) used for personalization and for
// deciding whether a chart is meaningful.
type CompanyProfile map[string]string

// Get returns the first non-empty value among the given keys.
func (p CompanyProfile) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// AssetKind identifies what kind of visual was generated for a slide.
type AssetKind string

const (
	AssetChart          AssetKind = "chart"
	AssetInfographic    AssetKind = "infographic"
	AssetStockImage     AssetKind = "stock_image"
	AssetFullSlideImage AssetKind = "synthesized_full_slide_image"
)

// GeneratedAsset is the at-most-one visual attached to a slide. Path
// points into the content-addressed asset cache.
type GeneratedAsset struct {
	Kind           AssetKind `json:"kind"`
	Path           string    `json:"path"`
	MimeType       string    `json:"mime_type"`
	SourceProvider string    `json:"source_provider"`
	ContentHash    string    `json:"content_hash"`
	CacheHit       bool      `json:"cache_hit"`
}

// ProviderStatus classifies the outcome of a provider chain call.
type ProviderStatus string

const (
	StatusSuccess        ProviderStatus = "success"
	StatusQuotaExceeded  ProviderStatus = "quota_exceeded"
	StatusTransientError ProviderStatus = "transient_error"
	StatusPermanentError ProviderStatus = "permanent_error"
)

// ProviderResult is what a gateway operation hands back to a caller.
// Chain exhaustion yields StatusPermanentError with no payload; callers
// treat that as "feature unavailable", never as a fatal error.
type ProviderResult struct {
	Status     ProviderStatus `json:"status"`
	ProviderID string         `json:"provider_id,omitempty"`
	Text       string         `json:"text,omitempty"`
	Payload    []byte         `json:"-"`
	MimeType   string         `json:"mime_type,omitempty"`
	Path       string         `json:"path,omitempty"`
	CacheHit   bool           `json:"cache_hit,omitempty"`
}

// OK reports whether the chain produced a usable result.
func (r ProviderResult) OK() bool {
	return r.Status == StatusSuccess
}

// ArtifactFormat selects the output document type.
type ArtifactFormat string

const (
	FormatNativeSlides   ArtifactFormat = "native_slides"
	FormatStitchedImages ArtifactFormat = "stitched_images"
	FormatPDF            ArtifactFormat = "pdf"
)

// Artifact describes the finished presentation file.
type Artifact struct {
	Format     ArtifactFormat `json:"format"`
	FilePath   string         `json:"file_path"`
	SlideCount int            `json:"slide_count"`
}

// Slide bundles a slide with the layout decision and the at-most-one
// asset attached by the visual stage. Asset == nil renders text only.
type Slide struct {
	Content SlideContent
	Layout  LayoutDecision
	Asset   *GeneratedAsset
}

// SlideProvenance records, per output slide, which stage produced what.
// Returned to the caller after every run for display and debugging.
type SlideProvenance struct {
	SlideNumber   int        `json:"slide_number"`
	LayoutType    LayoutType `json:"layout_type"`
	EnhancedBy    string     `json:"enhanced_by,omitempty"`
	AssetKind     AssetKind  `json:"asset_kind,omitempty"`
	AssetProvider string     `json:"asset_provider,omitempty"`
	CacheHit      bool       `json:"cache_hit"`
}

// Outline is the boundary object handed in by the upstream agent layer:
// the ordered slide records plus the company profile.
type Outline struct {
	Profile CompanyProfile `json:"company_profile"`
	Slides  []SlideContent `json:"slides"`
}

// ParseOutline decodes and validates an outline document.
func ParseOutline(data []byte) (*Outline, error) {
	var o Outline
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse outline: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// Validate checks the invariants the pipeline depends on: a non-empty
// slide list and positive, unique slide numbers.
func (o *Outline) Validate() error {
	if len(o.Slides) == 0 {
		return fmt.Errorf("outline has no slides")
	}
	seen := make(map[int]bool, len(o.Slides))
	for i, s := range o.Slides {
		if s.SlideNumber <= 0 {
			return fmt.Errorf("slide %d: slide_number must be positive, got %d", i+1, s.SlideNumber)
		}
		if seen[s.SlideNumber] {
			return fmt.Errorf("duplicate slide_number %d", s.SlideNumber)
		}
		seen[s.SlideNumber] = true
	}
	return nil
}

// SortSlides orders slides by SlideNumber in place. Output order is
// always slide-number order no matter in which order stages finished.
func SortSlides(slides []SlideContent) {
	sort.Slice(slides, func(i, j int) bool {
		return slides[i].SlideNumber < slides[j].SlideNumber
	})
}

// SortPrepared orders fully prepared slides by SlideNumber in place.
func SortPrepared(slides []Slide) {
	sort.Slice(slides, func(i, j int) bool {
		return slides[i].Content.SlideNumber < slides[j].Content.SlideNumber
	})
}
