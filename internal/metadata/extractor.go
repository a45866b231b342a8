// Package metadata derives a page's title, description, preview image, and
// favicon from its HTML head.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

const defaultTimeout = 15 * time.Second

// Config bounds a single extraction.
type Config struct {
	Timeout time.Duration
}

// Extractor implements portfolio.MetadataExtractor on top of a Fetcher.
type Extractor struct {
	fetcher portfolio.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds an Extractor.
func New(fetcher portfolio.Fetcher, cfg Config, logger *zap.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Extract fetches rawURL and resolves each metadata field by priority.
//
// The returned SiteMetadata is always usable: on failure every field is nil
// except ScreenshotSourceURL, and the error wraps portfolio.ErrUnreachable
// (or portfolio.ErrInvalidInput for a malformed URL). Callers that only want
// best-effort metadata may ignore the error.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (portfolio.SiteMetadata, error) {
	result := portfolio.SiteMetadata{ScreenshotSourceURL: portfolio.Optional(rawURL)}

	base, err := ParsePageURL(rawURL)
	if err != nil {
		metrics.ObserveMetadata("invalid")
		return result, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(fetchCtx, portfolio.FetchRequest{URL: rawURL})
	if err != nil {
		metrics.ObserveMetadata("unreachable")
		e.logger.Warn("metadata fetch failed", zap.String("url", rawURL), zap.Error(err))
		return result, fmt.Errorf("fetch %s: %w: %w", rawURL, portfolio.ErrUnreachable, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		metrics.ObserveMetadata("unreachable")
		e.logger.Warn("metadata parse failed", zap.String("url", rawURL), zap.Error(err))
		return result, fmt.Errorf("parse %s: %w: %w", rawURL, portfolio.ErrUnreachable, err)
	}

	filled := FromDocument(doc, base)
	filled.ScreenshotSourceURL = result.ScreenshotSourceURL
	metrics.ObserveMetadata("ok")
	e.logger.Debug("metadata extracted",
		zap.String("url", rawURL),
		zap.Bool("title", filled.Title != nil),
		zap.Bool("image", filled.Image != nil),
		zap.Duration("duration", resp.Duration),
	)
	return filled, nil
}

// ParsePageURL accepts absolute http(s) URLs only.
func ParsePageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, portfolio.ErrInvalidInput)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute http(s): %w", rawURL, portfolio.ErrInvalidInput)
	}
	return u, nil
}

// FromDocument applies the field resolvers to an already parsed page. Relative
// image and favicon references are resolved against the origin of base.
func FromDocument(doc *goquery.Document, base *url.URL) portfolio.SiteMetadata {
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	meta := portfolio.SiteMetadata{
		Title:       firstOf(doc, titleResolvers),
		Description: firstOf(doc, descriptionResolvers),
	}
	if image := firstOf(doc, imageResolvers); image != nil {
		meta.Image = absolutize(origin, *image)
	}
	favicon := firstOf(doc, faviconResolvers)
	if favicon == nil {
		favicon = portfolio.Optional("/favicon.ico")
	}
	meta.Favicon = absolutize(origin, *favicon)
	return meta
}

func absolutize(origin *url.URL, ref string) *string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	return portfolio.Optional(origin.ResolveReference(parsed).String())
}
