package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

var userColumnNames = []string{
	"id", "email", "name", "image", "is_premium", "stripe_customer_id", "stripe_subscription_id",
	"custom_name", "custom_email", "hide_email", "custom_slug", "custom_logo", "custom_background",
	"created_at", "updated_at",
}

func ptr(s string) *string { return &s }

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return mock, store
}

func userRow(mock pgxmock.PgxPoolIface, id string, premium bool, slug *string) *pgxmock.Rows {
	now := time.Unix(1700000000, 0).UTC()
	return mock.NewRows(userColumnNames).AddRow(
		id, id+"@example.com", ptr("Jane"), (*string)(nil), premium, ptr("cus_1"), (*string)(nil),
		(*string)(nil), (*string)(nil), false, slug, (*string)(nil), (*string)(nil),
		now, now,
	)
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaIndexesSlugCaseInsensitively(t *testing.T) {
	t.Parallel()

	assert.Contains(t, schemaSQL, "CREATE UNIQUE INDEX IF NOT EXISTS users_custom_slug_lower_idx ON users (lower(custom_slug));")
	assert.NotContains(t, schemaSQL, "custom_slug            TEXT UNIQUE")
}

func TestCreateProjectReturnsAssignedOrder(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	p := portfolio.Project{
		ID:        "p1",
		OwnerID:   "u1",
		URL:       "https://example.com",
		Title:     ptr("Example"),
		Favicon:   ptr("https://example.com/favicon.ico"),
		CreatedAt: created,
	}

	mock.ExpectQuery("INSERT INTO projects").
		WithArgs("p1", "u1", "https://example.com", p.Title, p.Description, p.PreviewImage, p.Favicon, p.ScreenshotURL, created).
		WillReturnRows(mock.NewRows([]string{"sort_order"}).AddRow(3))

	got, err := store.CreateProject(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Order)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjectRejectsMissingFields(t *testing.T) {
	t.Parallel()

	_, store := newMockStore(t)
	_, err := store.CreateProject(context.Background(), portfolio.Project{ID: "p1"})
	require.ErrorIs(t, err, portfolio.ErrInvalidInput)
}

func TestListProjectsScansRows(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	rows := mock.NewRows([]string{"id", "user_id", "url", "title", "description", "preview_image", "favicon", "screenshot_url", "sort_order", "created_at"}).
		AddRow("p1", "u1", "https://a.example", ptr("A"), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), 0, created).
		AddRow("p2", "u1", "https://b.example", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), ptr("https://cdn/x.png"), 1, created)
	mock.ExpectQuery("SELECT (.+) FROM projects WHERE user_id").WithArgs("u1").WillReturnRows(rows)

	list, err := store.ListProjects(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", portfolio.Deref(list[0].Title))
	assert.Nil(t, list[1].Title)
	assert.Equal(t, 1, list[1].Order)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProjectNotOwned(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM projects").WithArgs("p1", "u2").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteProject(context.Background(), "u2", "p1")
	require.ErrorIs(t, err, portfolio.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderProjectsCommitsWhenAllOwned(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ids := []string{"p2", "p1"}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE projects AS p").WithArgs(ids, "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	require.NoError(t, store.ReorderProjects(context.Background(), "u1", ids))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderProjectsRollsBackOnForeignID(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ids := []string{"p2", "other"}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE projects AS p").WithArgs(ids, "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	err := store.ReorderProjects(context.Background(), "u1", ids)
	require.ErrorIs(t, err, portfolio.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, portfolio.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserBySlug(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE lower\(custom_slug\) = lower\(\$1\)`).
		WithArgs("jane").
		WillReturnRows(userRow(mock, "u1", true, ptr("jane")))

	user, err := store.GetUserBySlug(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, user.IsPremium)
	assert.Equal(t, "jane", portfolio.Deref(user.CustomSlug))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUserUpserts(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	name := ptr("Jane")
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("u1", "u1@example.com", name, (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(userRow(mock, "u1", false, nil))

	user, err := store.EnsureUser(context.Background(), portfolio.Principal{ID: "u1", Email: "u1@example.com", Name: name})
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("UPDATE users SET custom_name").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg(), "u1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.UpdateProfile(context.Background(), "u1", portfolio.ProfileUpdate{CustomSlug: ptr("taken")})
	require.ErrorIs(t, err, portfolio.ErrSlugTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSubscriptionNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("UPDATE users SET is_premium").
		WithArgs(false, pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetSubscription(context.Background(), "ghost", portfolio.SubscriptionState{})
	require.ErrorIs(t, err, portfolio.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlugTaken(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE lower\(custom_slug\) = lower\(\$1\)`).WithArgs("jane", "u2").WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := store.SlugTaken(context.Background(), "jane", "u2")
	require.NoError(t, err)
	assert.True(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialLinkLifecycle(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	link := portfolio.SocialLink{ID: "l1", OwnerID: "u1", Platform: "github", URL: "https://github.com/jane", CreatedAt: created}

	mock.ExpectExec("INSERT INTO social_links").
		WithArgs("l1", "u1", "github", "https://github.com/jane", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM social_links").
		WithArgs("u1").
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "platform", "url", "created_at"}).
			AddRow("l1", "u1", "github", "https://github.com/jane", created))
	mock.ExpectExec("DELETE FROM social_links").WithArgs("l1", "u1").WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := context.Background()
	require.NoError(t, store.AddLink(ctx, link))
	links, err := store.ListLinks(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []portfolio.SocialLink{link}, links)
	require.NoError(t, store.DeleteLink(ctx, "u1", "l1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectsQueryError(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM projects").WithArgs("u1").WillReturnError(errors.New("boom"))

	_, err := store.ListProjects(context.Background(), "u1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
