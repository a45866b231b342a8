package postgres

import (
	"context"
	"fmt"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// ListLinks returns the owner's social links oldest first.
func (s *Store) ListLinks(ctx context.Context, ownerID string) ([]portfolio.SocialLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, platform, url, created_at FROM social_links WHERE user_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list social links: %w", err)
	}
	defer rows.Close()
	links := make([]portfolio.SocialLink, 0)
	for rows.Next() {
		var l portfolio.SocialLink
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.Platform, &l.URL, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan social link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social links: %w", err)
	}
	return links, nil
}

// AddLink stores a social link.
func (s *Store) AddLink(ctx context.Context, link portfolio.SocialLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO social_links (id, user_id, platform, url, created_at) VALUES ($1, $2, $3, $4, $5)`,
		link.ID, link.OwnerID, link.Platform, link.URL, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert social link: %w", err)
	}
	return nil
}

// DeleteLink removes an owned social link.
func (s *Store) DeleteLink(ctx context.Context, ownerID, linkID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM social_links WHERE id = $1 AND user_id = $2`, linkID, ownerID)
	if err != nil {
		return fmt.Errorf("delete social link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return portfolio.ErrNotFound
	}
	return nil
}
