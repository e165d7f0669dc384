package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"deckforge/brand"
)

// PhotoSource is one stock photo backend. Fetch returns the raw image
// bytes for the best match of the query.
type PhotoSource interface {
	ID() string
	Fetch(ctx context.Context, query string) (data []byte, mimeType string, err error)
}

const maxPhotoBytes = 16 << 20

func newPhotoClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// getBody performs a GET with browser-like headers and returns the
// response body, converting HTTP failures into typed provider errors.
func getBody(ctx context.Context, client *http.Client, sourceID, rawURL string, headers map[string]string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json,image/webp,*/*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", FromHTTPStatus(sourceID, resp.StatusCode, string(body))
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// OpenverseSource queries the keyless Openverse image API.
type OpenverseSource struct {
	baseURL string
	client  *http.Client
}

func NewOpenverseSource() *OpenverseSource {
	return &OpenverseSource{
		baseURL: "https://api.openverse.org",
		client:  newPhotoClient(),
	}
}

func (s *OpenverseSource) ID() string {
	return "openverse"
}

func (s *OpenverseSource) Fetch(ctx context.Context, query string) ([]byte, string, error) {
	searchURL := fmt.Sprintf("%s/v1/images/?q=%s&page_size=5&license_type=commercial",
		strings.TrimSuffix(s.baseURL, "/"), url.QueryEscape(query))

	body, _, err := getBody(ctx, s.client, s.ID(), searchURL, nil)
	if err != nil {
		return nil, "", err
	}

	var result struct {
		Results []struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, "", fmt.Errorf("failed to decode search response: %v", err)
	}

	for _, hit := range result.Results {
		if hit.URL == "" {
			continue
		}
		data, mimeType, err := getBody(ctx, s.client, s.ID(), hit.URL, nil)
		if err != nil {
			continue
		}
		return data, mimeType, nil
	}
	return nil, "", fmt.Errorf("no usable results for %q", query)
}

// PexelsSource queries the Pexels API; a key is required.
type PexelsSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPexelsSource(apiKey string) *PexelsSource {
	return &PexelsSource{
		apiKey:  apiKey,
		baseURL: "https://api.pexels.com",
		client:  newPhotoClient(),
	}
}

func (s *PexelsSource) ID() string {
	return "pexels"
}

func (s *PexelsSource) Fetch(ctx context.Context, query string) ([]byte, string, error) {
	searchURL := fmt.Sprintf("%s/v1/search?query=%s&per_page=5&orientation=landscape",
		strings.TrimSuffix(s.baseURL, "/"), url.QueryEscape(query))

	body, _, err := getBody(ctx, s.client, s.ID(), searchURL, map[string]string{
		"Authorization": s.apiKey,
	})
	if err != nil {
		return nil, "", err
	}

	var result struct {
		Photos []struct {
			Src struct {
				Original string `json:"original"`
				Large2x  string `json:"large2x"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, "", fmt.Errorf("failed to decode search response: %v", err)
	}

	for _, photo := range result.Photos {
		photoURL := photo.Src.Large2x
		if photoURL == "" {
			photoURL = photo.Src.Original
		}
		if photoURL == "" {
			continue
		}
		data, mimeType, err := getBody(ctx, s.client, s.ID(), photoURL, nil)
		if err != nil {
			continue
		}
		return data, mimeType, nil
	}
	return nil, "", fmt.Errorf("no usable results for %q", query)
}

// ScrapeSource pulls the lead image off a public photo search page.
// Static HTML only; the og:image meta tag is present without script
// execution on the sites this targets.
type ScrapeSource struct {
	pageTemplate string
	client       *http.Client
}

func NewScrapeSource() *ScrapeSource {
	return &ScrapeSource{
		pageTemplate: "https://unsplash.com/s/photos/%s",
		client:       newPhotoClient(),
	}
}

func (s *ScrapeSource) ID() string {
	return "scrape"
}

func (s *ScrapeSource) Fetch(ctx context.Context, query string) ([]byte, string, error) {
	slug := strings.ToLower(strings.TrimSpace(query))
	slug = strings.Join(strings.Fields(slug), "-")
	pageURL := fmt.Sprintf(s.pageTemplate, url.PathEscape(slug))

	body, _, err := getBody(ctx, s.client, s.ID(), pageURL, nil)
	if err != nil {
		return nil, "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %v", err)
	}

	var imageURL string
	if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && content != "" {
		imageURL = content
	}
	if imageURL == "" {
		doc.Find("img[src]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
			src, _ := sel.Attr("src")
			if strings.HasPrefix(src, "https://") && strings.Contains(src, "images.") {
				imageURL = src
				return false
			}
			return true
		})
	}
	if imageURL == "" {
		return nil, "", fmt.Errorf("no image found on search page for %q", query)
	}

	return getBody(ctx, s.client, s.ID(), imageURL, nil)
}

// StockChain tries each photo source in order until one returns a
// payload that actually sniffs as an image of useful size.
type StockChain struct {
	sources  []PhotoSource
	pool     *Pool
	minBytes int
	logger   func(string)
}

func NewStockChain(sources []PhotoSource, pool *Pool, minBytes int, logger func(string)) *StockChain {
	return &StockChain{
		sources:  sources,
		pool:     pool,
		minBytes: minBytes,
		logger:   logger,
	}
}

// Fetch returns the first valid image along with the id of the source
// that produced it.
func (c *StockChain) Fetch(ctx context.Context, query string) (data []byte, mimeType, sourceID string, err error) {
	for _, src := range c.sources {
		if ctx.Err() != nil {
			break
		}
		data, mimeType, err := c.fetchOne(ctx, src, query)
		if err != nil {
			c.log(fmt.Sprintf("[STOCK] Source %s failed for %q: %v", src.ID(), query, err))
			continue
		}
		c.log(fmt.Sprintf("[STOCK] Source %s returned %d bytes for %q", src.ID(), len(data), query))
		return data, mimeType, src.ID(), nil
	}
	return nil, "", "", fmt.Errorf("all stock sources failed for %q", query)
}

func (c *StockChain) fetchOne(ctx context.Context, src PhotoSource, query string) ([]byte, string, error) {
	if err := c.pool.Acquire(ctx); err != nil {
		return nil, "", err
	}
	defer c.pool.Release()

	data, _, err := src.Fetch(ctx, query)
	if err != nil {
		return nil, "", err
	}
	if len(data) < c.minBytes {
		return nil, "", fmt.Errorf("payload too small (%d bytes)", len(data))
	}
	// Trust the bytes, not the transport headers.
	mimeType := brand.SniffImageMime(data)
	if mimeType == "" {
		return nil, "", fmt.Errorf("payload is not an image")
	}
	return data, mimeType, nil
}

func (c *StockChain) log(message string) {
	if c.logger != nil {
		c.logger(message)
	}
}
