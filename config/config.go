package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProviderConfig represents one external content provider in the chain
type ProviderConfig struct {
	ID         string `json:"id"`                   // Provider identifier: "openai", "anthropic", "gemini"
	APIKey     string `json:"apiKey"`               // API key for the provider
	BaseURL    string `json:"baseUrl,omitempty"`    // Optional API endpoint override
	Model      string `json:"model,omitempty"`      // Text model name
	ImageModel string `json:"imageModel,omitempty"` // Image model name, empty disables image generation
	MaxTokens  int    `json:"maxTokens,omitempty"`  // Response token budget
}

// StockSourceConfig represents one stock photo source
type StockSourceConfig struct {
	ID     string `json:"id"`               // Source identifier: "openverse", "pexels", "scrape"
	APIKey string `json:"apiKey,omitempty"` // API key where the source needs one
}

// BrandColors holds the two brand accent colors as RRGGBB hex
type BrandColors struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Config structure
type Config struct {
	Template           string              `json:"template"`           // Template preset name
	BrandColors        BrandColors         `json:"brandColors"`        // Brand palette
	LogoPath           string              `json:"logoPath,omitempty"` // Optional logo image file
	FontPath           string              `json:"fontPath,omitempty"` // Optional TTF used for stitched pages
	IncludeImages      bool                `json:"includeImages"`      // Whether photographic visuals are generated
	ProviderPreference string              `json:"providerPreference"` // "auto" or a provider id to move first
	FullRewriteEnabled bool                `json:"fullRewriteEnabled"` // Whole-deck rewrite before per-slide touch-up
	Providers          []ProviderConfig    `json:"providers"`          // Ordered provider chain
	StockSources       []StockSourceConfig `json:"stockSources"`       // Ordered stock photo chain
	CacheDir           string              `json:"cacheDir,omitempty"` // Asset/enhancement cache directory
	MaxInFlight        int                 `json:"maxInFlight"`        // Concurrent external calls
	SlideTimeoutSec    int                 `json:"slideTimeoutSec"`    // Per-slide asset generation timeout
	RetryDelayMs       int                 `json:"retryDelayMs"`       // Backoff before the single transient retry
	MinImageBytes      int                 `json:"minImageBytes"`      // Smallest payload accepted as a real image
	LossBandPercent    float64             `json:"lossBandPercent"`    // Allowed negative band for profitability charts
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Template:           "modern",
		BrandColors:        BrandColors{Primary: "1F3864", Secondary: "ED7D31"},
		IncludeImages:      true,
		ProviderPreference: "auto",
		FullRewriteEnabled: true,
		StockSources: []StockSourceConfig{
			{ID: "openverse"},
			{ID: "scrape"},
		},
		CacheDir:        DefaultCacheDir(),
		MaxInFlight:     3,
		SlideTimeoutSec: 60,
		RetryDelayMs:    2000,
		MinImageBytes:   8192,
		LossBandPercent: 20,
	}
}

// DefaultCacheDir returns ~/.deckforge, falling back to a relative
// directory when the home directory cannot be resolved.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deckforge"
	}
	return filepath.Join(home, ".deckforge")
}

// Load reads a configuration file. A missing file yields the defaults;
// a present but unreadable or malformed file is an error.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize applies defaults for empty fields and clamps out-of-range
// values. Called after every load so the rest of the code never checks.
func (c *Config) Normalize() {
	def := Default()
	if c.Template == "" {
		c.Template = def.Template
	}
	if c.BrandColors.Primary == "" {
		c.BrandColors.Primary = def.BrandColors.Primary
	}
	if c.BrandColors.Secondary == "" {
		c.BrandColors.Secondary = def.BrandColors.Secondary
	}
	if c.ProviderPreference == "" {
		c.ProviderPreference = def.ProviderPreference
	}
	if len(c.StockSources) == 0 {
		c.StockSources = def.StockSources
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = def.MaxInFlight
	}
	if c.SlideTimeoutSec <= 0 {
		c.SlideTimeoutSec = def.SlideTimeoutSec
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = def.RetryDelayMs
	}
	if c.MinImageBytes <= 0 {
		c.MinImageBytes = def.MinImageBytes
	}
	if c.LossBandPercent < 0 {
		c.LossBandPercent = -c.LossBandPercent
	}
	if c.LossBandPercent == 0 {
		c.LossBandPercent = def.LossBandPercent
	}
	for i := range c.Providers {
		if c.Providers[i].MaxTokens <= 0 {
			c.Providers[i].MaxTokens = 4096
		}
	}
}

// knownProviders lists the provider ids the pipeline can construct.
var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// knownStockSources lists the stock photo source ids.
var knownStockSources = map[string]bool{
	"openverse": true,
	"pexels":    true,
	"scrape":    true,
}

// Validate rejects configurations the pipeline cannot honor.
func (c Config) Validate() error {
	for _, p := range c.Providers {
		if !knownProviders[p.ID] {
			return fmt.Errorf("unknown provider id %q", p.ID)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %q has no api key", p.ID)
		}
	}
	for _, s := range c.StockSources {
		if !knownStockSources[s.ID] {
			return fmt.Errorf("unknown stock source id %q", s.ID)
		}
		if s.ID == "pexels" && s.APIKey == "" {
			return fmt.Errorf("stock source %q requires an api key", s.ID)
		}
	}
	if c.ProviderPreference != "auto" && !knownProviders[c.ProviderPreference] {
		return fmt.Errorf("unknown provider preference %q", c.ProviderPreference)
	}
	return nil
}

// ContentHash fingerprints the settings that change generated content.
// It is mixed into every cache key so cached text and assets are reused
// only under the configuration that produced them.
func (c Config) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "template=%s;colors=%s/%s;images=%t;rewrite=%t;pref=%s;band=%g;minbytes=%d;",
		c.Template, c.BrandColors.Primary, c.BrandColors.Secondary,
		c.IncludeImages, c.FullRewriteEnabled, c.ProviderPreference,
		c.LossBandPercent, c.MinImageBytes)
	for _, p := range c.Providers {
		fmt.Fprintf(h, "provider=%s/%s/%s;", p.ID, p.Model, p.ImageModel)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
