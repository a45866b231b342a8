package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	collyfetcher "github.com/portfolieo/portfolio-api/internal/fetcher/colly"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

type stubFetcher struct {
	body string
	err  error
	got  []string
}

func (s *stubFetcher) Fetch(_ context.Context, req portfolio.FetchRequest) (portfolio.FetchResponse, error) {
	s.got = append(s.got, req.URL)
	if s.err != nil {
		return portfolio.FetchResponse{}, s.err
	}
	return portfolio.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(s.body)}, nil
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFromDocumentFieldPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		html      string
		wantTitle *string
		wantDesc  *string
		wantImage *string
	}{
		{
			name:      "og wins over twitter and title",
			html:      `<head><title>Plain</title><meta name="twitter:title" content="Tweet"><meta property="og:title" content="OG"></head>`,
			wantTitle: portfolio.Optional("OG"),
		},
		{
			name:      "twitter wins over title",
			html:      `<head><title>Plain</title><meta name="twitter:title" content="Tweet"></head>`,
			wantTitle: portfolio.Optional("Tweet"),
		},
		{
			name:      "title element is last resort and trimmed",
			html:      "<head><title>\n  Plain  \n</title></head>",
			wantTitle: portfolio.Optional("Plain"),
		},
		{
			name:      "empty og falls through",
			html:      `<head><meta property="og:title" content="   "><title>Fallback</title></head>`,
			wantTitle: portfolio.Optional("Fallback"),
		},
		{
			name: "nothing present yields nil",
			html: `<html><body><p>hi</p></body></html>`,
		},
		{
			name:     "description order",
			html:     `<head><meta name="description" content="Plain"><meta name="twitter:description" content="Tweet"></head>`,
			wantDesc: portfolio.Optional("Tweet"),
		},
		{
			name:      "twitter image src fallback",
			html:      `<head><meta name="twitter:image:src" content="https://cdn.example/a.png"></head>`,
			wantImage: portfolio.Optional("https://cdn.example/a.png"),
		},
	}

	base := mustURL(t, "https://example.com/blog/post")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			meta := FromDocument(mustDoc(t, tc.html), base)
			assert.Equal(t, tc.wantTitle, meta.Title)
			assert.Equal(t, tc.wantDesc, meta.Description)
			assert.Equal(t, tc.wantImage, meta.Image)
		})
	}
}

func TestFromDocumentResolvesRelativeReferencesAgainstOrigin(t *testing.T) {
	t.Parallel()

	html := `<head>
<meta property="og:image" content="/img/preview.png">
<link rel="shortcut icon" href="static/icon.png">
</head>`
	meta := FromDocument(mustDoc(t, html), mustURL(t, "https://example.com/deep/path/page"))
	assert.Equal(t, "https://example.com/img/preview.png", portfolio.Deref(meta.Image))
	assert.Equal(t, "https://example.com/static/icon.png", portfolio.Deref(meta.Favicon))
}

func TestFromDocumentFaviconPriorityAndDefault(t *testing.T) {
	t.Parallel()

	base := mustURL(t, "http://example.com:8080/x")

	meta := FromDocument(mustDoc(t, `<head><link rel="apple-touch-icon" href="/apple.png"><link rel="icon" href="//cdn.example/i.ico"></head>`), base)
	assert.Equal(t, "http://cdn.example/i.ico", portfolio.Deref(meta.Favicon))

	meta = FromDocument(mustDoc(t, `<head></head>`), base)
	assert.Equal(t, "http://example.com:8080/favicon.ico", portfolio.Deref(meta.Favicon))
}

func TestExtractUnreachableReturnsDegradedResult(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: errors.New("connection refused")}
	ex := New(fetcher, Config{Timeout: time.Second}, zap.NewNop())

	meta, err := ex.Extract(context.Background(), "https://down.example")
	require.ErrorIs(t, err, portfolio.ErrUnreachable)
	assert.Nil(t, meta.Title)
	assert.Nil(t, meta.Description)
	assert.Nil(t, meta.Image)
	assert.Nil(t, meta.Favicon)
	assert.Equal(t, "https://down.example", portfolio.Deref(meta.ScreenshotSourceURL))
}

func TestExtractRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	ex := New(fetcher, Config{}, nil)

	for _, raw := range []string{"", "not a url", "ftp://example.com", "/relative"} {
		_, err := ex.Extract(context.Background(), raw)
		require.ErrorIs(t, err, portfolio.ErrInvalidInput, raw)
	}
	assert.Empty(t, fetcher.got)
}

func TestExtractEndToEndWithCollyFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><head>
<meta property="og:title" content="Example">
<title>Ignored</title>
</head><body></body></html>`))
	}))
	defer srv.Close()

	ex := New(collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}), Config{Timeout: 5 * time.Second}, zap.NewNop())
	meta, err := ex.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Example", portfolio.Deref(meta.Title))
	assert.Nil(t, meta.Description)
	assert.Nil(t, meta.Image)
	assert.Equal(t, srv.URL+"/favicon.ico", portfolio.Deref(meta.Favicon))
	assert.Equal(t, srv.URL, portfolio.Deref(meta.ScreenshotSourceURL))
}

func TestExtractNon2xxIsUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := New(collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}), Config{}, zap.NewNop())
	meta, err := ex.Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, portfolio.ErrUnreachable)
	assert.Nil(t, meta.Title)
}

func TestExtractAcceptsNonAuthoritativeStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Via Proxy"></head></html>`))
	}))
	defer srv.Close()

	ex := New(collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}), Config{Timeout: 5 * time.Second}, zap.NewNop())
	meta, err := ex.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Via Proxy", portfolio.Deref(meta.Title))
}
