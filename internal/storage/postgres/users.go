package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

const userColumns = `id, email, name, image, is_premium, stripe_customer_id, stripe_subscription_id,
	custom_name, custom_email, hide_email, custom_slug, custom_logo, custom_background, created_at, updated_at`

func scanUser(row scanner) (portfolio.User, error) {
	var u portfolio.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Image,
		&u.IsPremium,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.CustomName,
		&u.CustomEmail,
		&u.HideEmail,
		&u.CustomSlug,
		&u.CustomLogo,
		&u.CustomBackground,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return portfolio.User{}, portfolio.ErrNotFound
	}
	if err != nil {
		return portfolio.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// EnsureUser upserts the identity fields of the principal and returns the stored user.
func (s *Store) EnsureUser(ctx context.Context, principal portfolio.Principal) (portfolio.User, error) {
	if principal.ID == "" || principal.Email == "" {
		return portfolio.User{}, fmt.Errorf("principal id and email are required: %w", portfolio.ErrInvalidInput)
	}
	query := `
INSERT INTO users (id, email, name, image, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email, name = EXCLUDED.name, image = EXCLUDED.image, updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns
	now := time.Now().UTC()
	user, err := scanUser(s.pool.QueryRow(ctx, query, principal.ID, principal.Email, principal.Name, principal.Image, now))
	if err != nil {
		return portfolio.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (portfolio.User, error) {
	return s.getUserWhere(ctx, "id", sq.Eq{"id": id})
}

// GetUserBySlug fetches a user by custom slug.
func (s *Store) GetUserBySlug(ctx context.Context, slug string) (portfolio.User, error) {
	return s.getUserWhere(ctx, "custom_slug", sq.Expr("lower(custom_slug) = lower(?)", slug))
}

// GetUserByStripeCustomer fetches a user by payment platform customer id.
func (s *Store) GetUserByStripeCustomer(ctx context.Context, customerID string) (portfolio.User, error) {
	return s.getUserWhere(ctx, "stripe_customer_id", sq.Eq{"stripe_customer_id": customerID})
}

func (s *Store) getUserWhere(ctx context.Context, column string, pred sq.Sqlizer) (portfolio.User, error) {
	query, args, err := s.psql.Select(userColumns).From("users").Where(pred).ToSql()
	if err != nil {
		return portfolio.User{}, fmt.Errorf("build user query: %w", err)
	}
	user, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			return portfolio.User{}, err
		}
		return portfolio.User{}, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user, nil
}

// SlugTaken reports whether any user other than excludeUserID owns slug.
func (s *Store) SlugTaken(ctx context.Context, slug, excludeUserID string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(custom_slug) = lower($1) AND id <> $2)`,
		slug, excludeUserID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return taken, nil
}

// UpdateProfile replaces the customization fields and returns the updated user.
func (s *Store) UpdateProfile(ctx context.Context, id string, update portfolio.ProfileUpdate) (portfolio.User, error) {
	query, args, err := s.psql.Update("users").
		Set("custom_name", update.CustomName).
		Set("custom_email", update.CustomEmail).
		Set("hide_email", update.HideEmail).
		Set("custom_slug", update.CustomSlug).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return portfolio.User{}, fmt.Errorf("build profile update: %w", err)
	}
	user, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, portfolio.ErrNotFound):
		return portfolio.User{}, err
	case isUniqueViolation(err):
		return portfolio.User{}, portfolio.ErrSlugTaken
	default:
		return portfolio.User{}, fmt.Errorf("update profile: %w", err)
	}
}

// SetSubscription stores the premium flag and subscription id.
func (s *Store) SetSubscription(ctx context.Context, id string, state portfolio.SubscriptionState) error {
	return s.updateUser(ctx, id, sq.Eq{
		"is_premium":             state.IsPremium,
		"stripe_subscription_id": state.SubscriptionID,
	})
}

// SetStripeCustomer links the user to a payment platform customer.
func (s *Store) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	return s.updateUser(ctx, id, sq.Eq{"stripe_customer_id": customerID})
}

// SetCustomBackground stores or clears the background image URL.
func (s *Store) SetCustomBackground(ctx context.Context, id string, url *string) error {
	return s.updateUser(ctx, id, sq.Eq{"custom_background": url})
}

// SetCustomLogo stores or clears the logo URL.
func (s *Store) SetCustomLogo(ctx context.Context, id string, url *string) error {
	return s.updateUser(ctx, id, sq.Eq{"custom_logo": url})
}

// updateUser applies fields (in sorted column order) plus updated_at.
func (s *Store) updateUser(ctx context.Context, id string, fields sq.Eq) error {
	clauses := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		clauses[k] = v
	}
	clauses["updated_at"] = time.Now().UTC()
	query, args, err := s.psql.Update("users").SetMap(clauses).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return portfolio.ErrNotFound
	}
	return nil
}

// ListPublishedUsers returns users with at least one project, most recently updated first.
func (s *Store) ListPublishedUsers(ctx context.Context) ([]portfolio.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u
WHERE EXISTS (SELECT 1 FROM projects p WHERE p.user_id = u.id)
ORDER BY u.updated_at DESC, u.id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list published users: %w", err)
	}
	defer rows.Close()
	var users []portfolio.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
