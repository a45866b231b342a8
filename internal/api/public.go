package api

import (
	"encoding/xml"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metadata"
)

func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Profile.Public(r.Context(), chi.URLParam(r, "slugOrID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) sitemap(w http.ResponseWriter, r *http.Request) {
	set, err := s.deps.Profile.Sitemap(r.Context(), s.opts.PublicBaseURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(set); err != nil {
		s.logger.Error("write sitemap failed", zap.Error(err))
	}
}

func (s *Server) screenshot(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	if _, err := metadata.ParsePageURL(target); err != nil {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if s.deps.ScreenshotLimiter != nil && !s.deps.ScreenshotLimiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	result := s.deps.Screenshots.Capture(r.Context(), target)
	if !result.Placeholder {
		w.Header().Set("Cache-Control", cacheControl(s.opts.RedirectCacheSecs))
		http.Redirect(w, r, result.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Cache-Control", cacheControl(s.opts.PlaceholderCacheSecs))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Image)
}

func cacheControl(secs int) string {
	return "public, max-age=" + strconv.Itoa(secs)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
