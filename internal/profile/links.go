package profile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// ListLinks returns the owner's social links oldest first.
func (s *Service) ListLinks(ctx context.Context, ownerID string) ([]portfolio.SocialLink, error) {
	links, err := s.deps.Links.ListLinks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list social links: %w", err)
	}
	return links, nil
}

// AddLink attaches a social link. Premium only.
func (s *Service) AddLink(ctx context.Context, ownerID, platform, rawURL string) (portfolio.SocialLink, error) {
	if _, err := s.requirePremium(ctx, ownerID); err != nil {
		return portfolio.SocialLink{}, err
	}
	rules := linkRules{Platform: strings.TrimSpace(platform), URL: strings.TrimSpace(rawURL)}
	if err := s.check(rules); err != nil {
		return portfolio.SocialLink{}, err
	}
	id, err := s.deps.IDs.NewID()
	if err != nil {
		return portfolio.SocialLink{}, fmt.Errorf("generate link id: %w", err)
	}
	link := portfolio.SocialLink{
		ID:        id,
		OwnerID:   ownerID,
		Platform:  rules.Platform,
		URL:       rules.URL,
		CreatedAt: s.deps.Clock.Now(),
	}
	if err := s.deps.Links.AddLink(ctx, link); err != nil {
		return portfolio.SocialLink{}, fmt.Errorf("add social link: %w", err)
	}
	s.logger.Info("social link added", zap.String("owner_id", ownerID), zap.String("platform", link.Platform))
	return link, nil
}

// DeleteLink removes one of the owner's links.
func (s *Service) DeleteLink(ctx context.Context, ownerID, linkID string) error {
	if strings.TrimSpace(linkID) == "" {
		return fmt.Errorf("link id is required: %w", portfolio.ErrInvalidInput)
	}
	if err := s.deps.Links.DeleteLink(ctx, ownerID, linkID); err != nil {
		return fmt.Errorf("delete social link %s: %w", linkID, err)
	}
	return nil
}
