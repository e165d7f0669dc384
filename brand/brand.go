package brand

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Template is a named rendering preset: typography sizes and page
// geometry shared by the slide and PDF renderers. Sizes are points,
// lengths are inches.
type Template struct {
	Name         string
	TitleSize    int     // cover slide title
	HeadingSize  int     // content slide heading
	SubtitleSize int     // cover subtitle
	BodySize     int     // body text and bullets
	SmallSize    int     // captions, footers
	AccentBar    float64 // decorative bar height, 0 disables it
	Margin       float64 // page margin
}

// templates in declaration order; "modern" is the default preset.
var templates = []Template{
	{Name: "modern", TitleSize: 36, HeadingSize: 28, SubtitleSize: 20, BodySize: 14, SmallSize: 11, AccentBar: 0.08, Margin: 0.4},
	{Name: "classic", TitleSize: 40, HeadingSize: 30, SubtitleSize: 22, BodySize: 16, SmallSize: 12, AccentBar: 0, Margin: 0.5},
	{Name: "minimal", TitleSize: 32, HeadingSize: 24, SubtitleSize: 18, BodySize: 12, SmallSize: 10, AccentBar: 0.04, Margin: 0.6},
}

// TemplateByName returns the preset for name, or the default preset when
// the name is unknown or empty.
func TemplateByName(name string) Template {
	for _, t := range templates {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return templates[0]
}

// TemplateNames lists the available preset names.
func TemplateNames() []string {
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	return names
}

const (
	defaultPrimary   = "1F3864"
	defaultSecondary = "ED7D31"
)

// Kit carries the brand identity applied on top of a template.
type Kit struct {
	PrimaryColor   string // RRGGBB hex
	SecondaryColor string // RRGGBB hex
	LogoPath       string
	FontPath       string
}

// NewKit builds a kit, normalizing colors and falling back to the
// default palette when a color does not parse.
func NewKit(primary, secondary, logoPath, fontPath string) Kit {
	return Kit{
		PrimaryColor:   normalizeHex(primary, defaultPrimary),
		SecondaryColor: normalizeHex(secondary, defaultSecondary),
		LogoPath:       logoPath,
		FontPath:       fontPath,
	}
}

func normalizeHex(s, fallback string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return fallback
	}
	return strings.ToUpper(s)
}

// PrimaryARGB returns the primary color in the AARRGGBB form slide
// shapes use, fully opaque.
func (k Kit) PrimaryARGB() string {
	return "FF" + k.PrimaryColor
}

// SecondaryARGB returns the secondary color in AARRGGBB form.
func (k Kit) SecondaryARGB() string {
	return "FF" + k.SecondaryColor
}

// PrimaryRGB returns the primary color split into channels.
func (k Kit) PrimaryRGB() (int, int, int) {
	return splitHex(k.PrimaryColor)
}

// SecondaryRGB returns the secondary color split into channels.
func (k Kit) SecondaryRGB() (int, int, int) {
	return splitHex(k.SecondaryColor)
}

func splitHex(hex string) (int, int, int) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		v, _ = strconv.ParseUint(defaultPrimary, 16, 32)
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// LoadLogo reads the configured logo file and sniffs its mime type.
// Returns nil data without error when no logo is configured.
func (k Kit) LoadLogo() ([]byte, string, error) {
	if k.LogoPath == "" {
		return nil, "", nil
	}
	data, err := os.ReadFile(k.LogoPath)
	if err != nil {
		return nil, "", fmt.Errorf("read logo: %w", err)
	}
	mime := SniffImageMime(data)
	if mime == "" {
		return nil, "", fmt.Errorf("logo %s is not a supported image", k.LogoPath)
	}
	return data, mime, nil
}

// SniffImageMime identifies PNG, JPEG, GIF and WebP payloads by their
// magic bytes. Returns "" for anything else.
func SniffImageMime(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "image/gif"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return ""
}
