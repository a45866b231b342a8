package profile

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URLSet is the sitemap document.
type URLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapURL is one sitemap entry.
type SitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// Sitemap lists the site root and every portfolio that has projects.
func (s *Service) Sitemap(ctx context.Context, baseURL string) (URLSet, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	users, err := s.deps.Users.ListPublishedUsers(ctx)
	if err != nil {
		return URLSet{}, fmt.Errorf("list published users: %w", err)
	}
	set := URLSet{XMLNS: sitemapNS, URLs: make([]SitemapURL, 0, len(users)+1)}
	set.URLs = append(set.URLs, SitemapURL{
		Loc:        baseURL,
		LastMod:    s.deps.Clock.Now().Format(time.RFC3339),
		ChangeFreq: "daily",
		Priority:   1,
	})
	for _, u := range users {
		entry := SitemapURL{
			Loc:        baseURL + "/portfolio/" + u.PortfolioKey(),
			ChangeFreq: "weekly",
			Priority:   0.7,
		}
		if !u.UpdatedAt.IsZero() {
			entry.LastMod = u.UpdatedAt.UTC().Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, entry)
	}
	return set, nil
}
