// Package profile manages a user's public presentation: premium
// customization, social links, uploaded images, the public portfolio view,
// and the sitemap.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Hasher fingerprints uploaded images.
type Hasher interface {
	Version(data []byte) string
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Users    portfolio.UserStore
	Links    portfolio.SocialLinkStore
	Projects portfolio.ProjectStore
	Blobs    portfolio.BlobStore
	IDs      portfolio.IDGenerator
	Clock    portfolio.Clock
	Hasher   Hasher
}

// Service implements the profile operations.
type Service struct {
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger
}

// New builds a Service.
func New(deps Deps, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("profile: user store is required")
	case deps.Links == nil:
		return nil, errors.New("profile: social link store is required")
	case deps.Projects == nil:
		return nil, errors.New("profile: project store is required")
	case deps.Blobs == nil:
		return nil, errors.New("profile: blob store is required")
	case deps.IDs == nil || deps.Clock == nil || deps.Hasher == nil:
		return nil, errors.New("profile: id generator, clock and hasher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, validate: newValidator(), logger: logger}, nil
}

// View is the owner's own profile.
type View struct {
	IsPremium        bool                   `json:"isPremium"`
	CustomName       *string                `json:"customName"`
	CustomLogo       *string                `json:"customLogo"`
	CustomBackground *string                `json:"customBackground"`
	CustomEmail      *string                `json:"customEmail"`
	HideEmail        bool                   `json:"hideEmail"`
	CustomSlug       *string                `json:"customSlug"`
	SocialLinks      []portfolio.SocialLink `json:"socialLinks"`
}

// Get returns the owner's profile with social links oldest first.
func (s *Service) Get(ctx context.Context, ownerID string) (View, error) {
	user, err := s.deps.Users.GetUser(ctx, ownerID)
	if err != nil {
		return View{}, fmt.Errorf("load user: %w", err)
	}
	links, err := s.deps.Links.ListLinks(ctx, ownerID)
	if err != nil {
		return View{}, fmt.Errorf("list social links: %w", err)
	}
	return View{
		IsPremium:        user.IsPremium,
		CustomName:       user.CustomName,
		CustomLogo:       user.CustomLogo,
		CustomBackground: user.CustomBackground,
		CustomEmail:      user.CustomEmail,
		HideEmail:        user.HideEmail,
		CustomSlug:       user.CustomSlug,
		SocialLinks:      links,
	}, nil
}

// UpdateInput is the raw profile patch as submitted.
type UpdateInput struct {
	CustomName  *string `json:"customName"`
	CustomEmail *string `json:"customEmail"`
	HideEmail   *bool   `json:"hideEmail"`
	CustomSlug  *string `json:"customSlug"`
}

// Update replaces the owner's customization. Blank values clear a field and an
// omitted hideEmail means false.
func (s *Service) Update(ctx context.Context, ownerID string, in UpdateInput) (portfolio.User, error) {
	if _, err := s.requirePremium(ctx, ownerID); err != nil {
		return portfolio.User{}, err
	}
	update, err := s.normalizeUpdate(in)
	if err != nil {
		return portfolio.User{}, err
	}
	if update.CustomSlug != nil {
		taken, err := s.deps.Users.SlugTaken(ctx, *update.CustomSlug, ownerID)
		if err != nil {
			return portfolio.User{}, fmt.Errorf("check slug: %w", err)
		}
		if taken {
			return portfolio.User{}, portfolio.ErrSlugTaken
		}
	}
	user, err := s.deps.Users.UpdateProfile(ctx, ownerID, update)
	if err != nil {
		return portfolio.User{}, fmt.Errorf("update profile: %w", err)
	}
	s.logger.Info("profile updated", zap.String("owner_id", ownerID), zap.String("slug", portfolio.Deref(user.CustomSlug)))
	return user, nil
}

func (s *Service) requirePremium(ctx context.Context, ownerID string) (portfolio.User, error) {
	user, err := s.deps.Users.GetUser(ctx, ownerID)
	if err != nil {
		return portfolio.User{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsPremium {
		return portfolio.User{}, portfolio.ErrPremiumRequired
	}
	return user, nil
}
