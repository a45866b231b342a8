package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Provider names a hosted screenshot API.
type Provider string

// Supported providers.
const (
	ProviderScreenshotAPI Provider = "screenshotapi"
	ProviderScreenshotOne Provider = "screenshotone"
)

const (
	screenshotAPIEndpoint = "https://api.screenshotapi.net/api/v1/screenshot"
	screenshotOneEndpoint = "https://api.screenshotone.com/take"
	browserUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxImageBytes         = 20 << 20
)

// APIConfig configures one hosted provider.
type APIConfig struct {
	Provider Provider
	Key      string
	Timeout  time.Duration
	// Endpoint overrides the provider's base URL.
	Endpoint string
	// Prefix is the blob path prefix for stored images.
	Prefix string
}

// APIStrategy fetches a PNG from a hosted provider and stores it.
type APIStrategy struct {
	cfg    APIConfig
	client *http.Client
	blobs  portfolio.BlobStore
	ids    portfolio.IDGenerator
}

// NewAPIStrategy builds an APIStrategy. A nil client uses a default one.
func NewAPIStrategy(cfg APIConfig, client *http.Client, blobs portfolio.BlobStore, ids portfolio.IDGenerator) (*APIStrategy, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("%s: credential is required", cfg.Provider)
	}
	if blobs == nil || ids == nil {
		return nil, fmt.Errorf("%s: blob store and id generator are required", cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderScreenshotAPI:
		if cfg.Endpoint == "" {
			cfg.Endpoint = screenshotAPIEndpoint
		}
	case ProviderScreenshotOne:
		if cfg.Endpoint == "" {
			cfg.Endpoint = screenshotOneEndpoint
		}
	default:
		return nil, fmt.Errorf("unknown screenshot provider %q", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "screenshots"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &APIStrategy{cfg: cfg, client: client, blobs: blobs, ids: ids}, nil
}

// Name identifies the provider.
func (s *APIStrategy) Name() string {
	return string(s.cfg.Provider)
}

// Attempt requests a 1200x900 PNG of pageURL and uploads it.
func (s *APIStrategy) Attempt(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(pageURL), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed or discarded

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("provider returned non-image content type %q", ct)
	}
	image, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("provider returned empty image")
	}
	if len(image) > maxImageBytes {
		return "", fmt.Errorf("provider image exceeds %d bytes", maxImageBytes)
	}
	return Store(ctx, s.blobs, s.ids, s.cfg.Prefix, image)
}

func (s *APIStrategy) requestURL(pageURL string) string {
	q := url.Values{}
	switch s.cfg.Provider {
	case ProviderScreenshotAPI:
		q.Set("url", pageURL)
		q.Set("token", s.cfg.Key)
		q.Set("width", strconv.Itoa(Width))
		q.Set("height", strconv.Itoa(Height))
		q.Set("format", "png")
		q.Set("full_page", "false")
	case ProviderScreenshotOne:
		q.Set("access_key", s.cfg.Key)
		q.Set("url", pageURL)
		q.Set("viewport_width", strconv.Itoa(Width))
		q.Set("viewport_height", strconv.Itoa(Height))
		q.Set("device_scale_factor", "1")
		q.Set("format", "png")
		q.Set("image_quality", "80")
		q.Set("block_ads", "true")
		q.Set("block_cookie_banners", "true")
		q.Set("delay", "2")
		q.Set("timeout", "10")
	}
	return s.cfg.Endpoint + "?" + q.Encode()
}

// Store uploads a PNG under prefix/<id>.png and returns its durable URL.
func Store(ctx context.Context, blobs portfolio.BlobStore, ids portfolio.IDGenerator, prefix string, image []byte) (string, error) {
	id, err := ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate screenshot id: %w", err)
	}
	path := strings.TrimSuffix(prefix, "/") + "/" + id + ".png"
	location, err := blobs.PutObject(ctx, path, "image/png", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("store screenshot: %w", err)
	}
	return location, nil
}
