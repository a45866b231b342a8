package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/auth"
	"github.com/portfolieo/portfolio-api/internal/billing"
	"github.com/portfolieo/portfolio-api/internal/id/uuid"
	"github.com/portfolieo/portfolio-api/internal/ingest"
	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/middleware"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/profile"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Ingest      *ingest.Service
	Profile     *profile.Service
	Billing     *billing.Service
	Screenshots portfolio.ScreenshotCapturer
	// ScreenshotLimiter is keyed by client address. Nil admits everything.
	ScreenshotLimiter portfolio.Limiter
	Verifier          *auth.Verifier
	Users             portfolio.UserStore
	// Ready reports whether downstreams are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// MediaDir, when set, is served read-only at /media/.
	MediaDir string
}

// Options tune response behavior.
type Options struct {
	PublicBaseURL        string
	RequestTimeout       time.Duration
	PlaceholderCacheSecs int
	RedirectCacheSecs    int
}

// Server wires HTTP handlers to the domain services.
type Server struct {
	router chi.Router
	deps   Deps
	opts   Options
	logger *zap.Logger
}

const (
	maxJSONBytes    = 64 << 10
	maxWebhookBytes = 1 << 20
)

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PlaceholderCacheSecs <= 0 {
		opts.PlaceholderCacheSecs = 3600
	}
	if opts.RedirectCacheSecs <= 0 {
		opts.RedirectCacheSecs = 86400
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	s := &Server{deps: deps, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/sitemap.xml", s.sitemap)
	if deps.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(deps.MediaDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/portfolios/{slugOrID}", s.getPortfolio)
		r.Get("/screenshot", s.screenshot)
		r.Post("/stripe/webhook", s.stripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.Verifier, deps.Users, logger))

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", s.listProjects)
				r.Post("/", s.createProject)
				r.Put("/order", s.reorderProjects)
				r.Delete("/{id}", s.deleteProject)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", s.getProfile)
				r.Patch("/", s.updateProfile)
				r.Get("/social-links", s.listLinks)
				r.Post("/social-links", s.addLink)
				r.Delete("/social-links/{id}", s.deleteLink)
				r.Post("/background", s.uploadImage(profile.KindBackground))
				r.Delete("/background", s.deleteImage(profile.KindBackground))
				r.Post("/logo", s.uploadImage(profile.KindLogo))
				r.Delete("/logo", s.deleteImage(profile.KindLogo))
			})

			r.Route("/stripe", func(r chi.Router) {
				r.Post("/checkout", s.checkout)
				r.Post("/cancel", s.cancelSubscription)
				r.Get("/subscription", s.subscription)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// owner returns the authenticated user id placed by auth.Middleware.
func owner(r *http.Request) string {
	user, _ := auth.UserFromContext(r.Context())
	return user.ID
}

// resourceID reads the {id} route param. Values that cannot be ids are
// answered with 404, since no such resource can exist.
func resourceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !uuid.Valid(id) {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
