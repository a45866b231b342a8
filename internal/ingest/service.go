// Package ingest turns a submitted URL into a stored project: metadata first,
// then a best-effort screenshot, then a single insert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// EventProjectCreated is the notification type published after a project is stored.
const EventProjectCreated = "project.created"

// ErrOwnerNotFound means the caller's account no longer exists.
var ErrOwnerNotFound = fmt.Errorf("owner %w", portfolio.ErrNotFound)

// Config bounds ingestion.
type Config struct {
	// ScreenshotTimeout caps the whole screenshot chain.
	ScreenshotTimeout time.Duration
	// Topic receives project.created notifications. Empty disables publishing.
	Topic string
}

// Deps are the collaborators a Service needs. Limiter and Publisher are optional.
type Deps struct {
	Users       portfolio.UserStore
	Projects    portfolio.ProjectStore
	Extractor   portfolio.MetadataExtractor
	Screenshots portfolio.ScreenshotCapturer
	Limiter     portfolio.Limiter
	Publisher   portfolio.Publisher
	IDs         portfolio.IDGenerator
	Clock       portfolio.Clock
}

// Service orchestrates project creation and the owner-scoped project operations.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// ProjectCreated is the payload published after a successful ingestion.
type ProjectCreated struct {
	Type          string    `json:"type"`
	ProjectID     string    `json:"projectId"`
	OwnerID       string    `json:"ownerId"`
	URL           string    `json:"url"`
	HasScreenshot bool      `json:"hasScreenshot"`
	CreatedAt     time.Time `json:"createdAt"`
}

// New validates deps and builds a Service.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("ingest: user store is required")
	case deps.Projects == nil:
		return nil, errors.New("ingest: project store is required")
	case deps.Extractor == nil:
		return nil, errors.New("ingest: metadata extractor is required")
	case deps.Screenshots == nil:
		return nil, errors.New("ingest: screenshot capturer is required")
	case deps.IDs == nil:
		return nil, errors.New("ingest: id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("ingest: clock is required")
	}
	if cfg.ScreenshotTimeout <= 0 {
		cfg.ScreenshotTimeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}, nil
}

// Create ingests rawURL for ownerID. A metadata failure aborts without writing
// anything; a screenshot failure only leaves ScreenshotURL empty. The caller's
// cancellation does not interrupt an ingestion already underway.
func (s *Service) Create(ctx context.Context, ownerID, rawURL string) (portfolio.Project, error) {
	ctx = context.WithoutCancel(ctx)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return portfolio.Project{}, fmt.Errorf("url is required: %w", portfolio.ErrInvalidInput)
	}

	if _, err := s.deps.Users.GetUser(ctx, ownerID); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			return portfolio.Project{}, ErrOwnerNotFound
		}
		return portfolio.Project{}, fmt.Errorf("load owner: %w", err)
	}
	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(ownerID) {
		metrics.ObserveIngestion("rate_limited")
		return portfolio.Project{}, portfolio.ErrRateLimited
	}

	logger := s.logger.With(zap.String("owner_id", ownerID), zap.String("url", rawURL))

	meta, err := s.deps.Extractor.Extract(ctx, rawURL)
	if err != nil {
		metrics.ObserveIngestion("aborted")
		logger.Warn("metadata extraction failed, project not created", zap.Error(err))
		return portfolio.Project{}, err
	}

	screenshotURL := s.screenshot(ctx, meta, logger)

	id, err := s.deps.IDs.NewID()
	if err != nil {
		metrics.ObserveIngestion("error")
		return portfolio.Project{}, fmt.Errorf("generate project id: %w", err)
	}
	stored, err := s.deps.Projects.CreateProject(ctx, portfolio.Project{
		ID:            id,
		OwnerID:       ownerID,
		URL:           rawURL,
		Title:         meta.Title,
		Description:   meta.Description,
		PreviewImage:  meta.Image,
		Favicon:       meta.Favicon,
		ScreenshotURL: screenshotURL,
		CreatedAt:     s.deps.Clock.Now(),
	})
	if err != nil {
		metrics.ObserveIngestion("error")
		return portfolio.Project{}, fmt.Errorf("store project: %w", err)
	}

	metrics.ObserveIngestion("created")
	logger.Info("project created",
		zap.String("project_id", stored.ID),
		zap.Int("order", stored.Order),
		zap.Bool("has_screenshot", stored.ScreenshotURL != nil),
	)
	s.publish(ctx, stored, logger)
	return stored, nil
}

func (s *Service) screenshot(ctx context.Context, meta portfolio.SiteMetadata, logger *zap.Logger) *string {
	if meta.ScreenshotSourceURL == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScreenshotTimeout)
	defer cancel()

	res := s.deps.Screenshots.Capture(ctx, *meta.ScreenshotSourceURL)
	if res.Placeholder || res.URL == "" {
		logger.Info("no screenshot available, storing project without one", zap.String("strategy", res.Strategy))
		return nil
	}
	location := res.URL
	return &location
}

func (s *Service) publish(ctx context.Context, p portfolio.Project, logger *zap.Logger) {
	if s.cfg.Topic == "" || s.deps.Publisher == nil {
		return
	}
	msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, ProjectCreated{
		Type:          EventProjectCreated,
		ProjectID:     p.ID,
		OwnerID:       p.OwnerID,
		URL:           p.URL,
		HasScreenshot: p.ScreenshotURL != nil,
		CreatedAt:     p.CreatedAt,
	})
	if err != nil {
		logger.Warn("publish project.created failed", zap.String("project_id", p.ID), zap.Error(err))
		return
	}
	logger.Debug("published project.created", zap.String("message_id", msgID))
}

// List returns the owner's projects in display order.
func (s *Service) List(ctx context.Context, ownerID string) ([]portfolio.Project, error) {
	projects, err := s.deps.Projects.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Delete removes one of the owner's projects.
func (s *Service) Delete(ctx context.Context, ownerID, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("project id is required: %w", portfolio.ErrInvalidInput)
	}
	if err := s.deps.Projects.DeleteProject(ctx, ownerID, projectID); err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	return nil
}

// Reorder assigns each listed project its index as display order.
func (s *Service) Reorder(ctx context.Context, ownerID string, projectIDs []string) error {
	if len(projectIDs) == 0 {
		return fmt.Errorf("project ids are required: %w", portfolio.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		if id == "" {
			return fmt.Errorf("empty project id: %w", portfolio.ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate project id %s: %w", id, portfolio.ErrInvalidInput)
		}
		seen[id] = struct{}{}
	}
	if err := s.deps.Projects.ReorderProjects(ctx, ownerID, projectIDs); err != nil {
		return fmt.Errorf("reorder projects: %w", err)
	}
	return nil
}

// EventType labels the Pub/Sub message.
func (e ProjectCreated) EventType() string {
	return e.Type
}
