package postgres

import (
	"context"
	"fmt"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

const projectColumns = `id, user_id, url, title, description, preview_image, favicon, screenshot_url, sort_order, created_at`

// CreateProject inserts p with sort_order one past the owner's current maximum
// (0 for the first project). Concurrent inserts for one owner may tie; reads
// break ties by created_at.
func (s *Store) CreateProject(ctx context.Context, p portfolio.Project) (portfolio.Project, error) {
	if p.ID == "" || p.OwnerID == "" || p.URL == "" {
		return portfolio.Project{}, fmt.Errorf("project id, owner, and url are required: %w", portfolio.ErrInvalidInput)
	}
	query := `
INSERT INTO projects (id, user_id, url, title, description, preview_image, favicon, screenshot_url, sort_order, created_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, COALESCE(MAX(sort_order) + 1, 0), $9
FROM projects WHERE user_id = $2
RETURNING sort_order`
	var order int
	err := s.pool.QueryRow(ctx, query,
		p.ID,
		p.OwnerID,
		p.URL,
		p.Title,
		p.Description,
		p.PreviewImage,
		p.Favicon,
		p.ScreenshotURL,
		p.CreatedAt,
	).Scan(&order)
	if err != nil {
		return portfolio.Project{}, fmt.Errorf("insert project: %w", err)
	}
	p.Order = order
	return p, nil
}

// ListProjects returns the owner's projects in display order.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]portfolio.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1 ORDER BY sort_order, created_at, id`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	projects := make([]portfolio.Project, 0)
	for rows.Next() {
		var p portfolio.Project
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.URL,
			&p.Title,
			&p.Description,
			&p.PreviewImage,
			&p.Favicon,
			&p.ScreenshotURL,
			&p.Order,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes an owned project.
func (s *Store) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return portfolio.ErrNotFound
	}
	return nil
}

// ReorderProjects sets sort_order to the slice index of each id. Either every
// id is owned and updated or nothing changes.
func (s *Store) ReorderProjects(ctx context.Context, ownerID string, projectIDs []string) (err error) {
	if len(projectIDs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // original error wins
		}
	}()
	query := `
UPDATE projects AS p SET sort_order = v.ord - 1
FROM unnest($1::text[]) WITH ORDINALITY AS v(id, ord)
WHERE p.id = v.id AND p.user_id = $2`
	tag, err := tx.Exec(ctx, query, projectIDs, ownerID)
	if err != nil {
		return fmt.Errorf("reorder projects: %w", err)
	}
	if tag.RowsAffected() != int64(len(projectIDs)) {
		return portfolio.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}
