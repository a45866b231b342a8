package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Public is the read-only portfolio page model.
type Public struct {
	ID          string                 `json:"id"`
	Key         string                 `json:"key"`
	DisplayName *string                `json:"displayName"`
	Email       *string                `json:"email"`
	Image       *string                `json:"image"`
	Logo        *string                `json:"logo"`
	Background  *string                `json:"background"`
	IsPremium   bool                   `json:"isPremium"`
	SocialLinks []portfolio.SocialLink `json:"socialLinks"`
	Projects    []portfolio.Project    `json:"projects"`
}

// Resolve finds the owner of a portfolio. A matching slug wins over a matching id.
func (s *Service) Resolve(ctx context.Context, slugOrID string) (portfolio.User, error) {
	if slugOrID == "" {
		return portfolio.User{}, portfolio.ErrNotFound
	}
	user, err := s.deps.Users.GetUserBySlug(ctx, slugOrID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, portfolio.ErrNotFound) {
		return portfolio.User{}, fmt.Errorf("lookup slug: %w", err)
	}
	user, err = s.deps.Users.GetUser(ctx, slugOrID)
	if err != nil {
		return portfolio.User{}, fmt.Errorf("lookup id: %w", err)
	}
	return user, nil
}

// Public renders the portfolio for slugOrID. Customization is shown only
// while the owner is premium; stored values survive a lapse.
func (s *Service) Public(ctx context.Context, slugOrID string) (Public, error) {
	user, err := s.Resolve(ctx, slugOrID)
	if err != nil {
		return Public{}, err
	}
	projects, err := s.deps.Projects.ListProjects(ctx, user.ID)
	if err != nil {
		return Public{}, fmt.Errorf("list projects: %w", err)
	}

	out := Public{
		ID:          user.ID,
		Key:         user.PortfolioKey(),
		DisplayName: user.Name,
		Image:       user.Image,
		IsPremium:   user.IsPremium,
		Projects:    projects,
		SocialLinks: []portfolio.SocialLink{},
	}
	email := portfolio.Optional(user.Email)
	if user.IsPremium {
		if user.CustomName != nil {
			out.DisplayName = user.CustomName
		}
		if user.CustomEmail != nil {
			email = user.CustomEmail
		}
		if user.HideEmail {
			email = nil
		}
		out.Logo = user.CustomLogo
		out.Background = user.CustomBackground
		links, err := s.deps.Links.ListLinks(ctx, user.ID)
		if err != nil {
			return Public{}, fmt.Errorf("list social links: %w", err)
		}
		out.SocialLinks = links
	}
	out.Email = email
	return out, nil
}
