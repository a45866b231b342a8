package portfolio

import (
	"context"
	"io"
	"time"
)

// ProjectStore persists projects.
type ProjectStore interface {
	// CreateProject inserts p with Order set to one past the owner's current
	// maximum (0 for the first project) and returns the stored row.
	CreateProject(ctx context.Context, p Project) (Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]Project, error)
	DeleteProject(ctx context.Context, ownerID, projectID string) error
	ReorderProjects(ctx context.Context, ownerID string, projectIDs []string) error
}

// UserStore persists users and their customization.
type UserStore interface {
	EnsureUser(ctx context.Context, principal Principal) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserBySlug(ctx context.Context, slug string) (User, error)
	GetUserByStripeCustomer(ctx context.Context, customerID string) (User, error)
	SlugTaken(ctx context.Context, slug, excludeUserID string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
	SetSubscription(ctx context.Context, id string, state SubscriptionState) error
	SetStripeCustomer(ctx context.Context, id, customerID string) error
	SetCustomBackground(ctx context.Context, id string, url *string) error
	SetCustomLogo(ctx context.Context, id string, url *string) error
	// ListPublishedUsers returns users that own at least one project.
	ListPublishedUsers(ctx context.Context) ([]User, error)
}

// SocialLinkStore persists social links.
type SocialLinkStore interface {
	ListLinks(ctx context.Context, ownerID string) ([]SocialLink, error)
	AddLink(ctx context.Context, link SocialLink) error
	DeleteLink(ctx context.Context, ownerID, linkID string) error
}

// BlobStore writes images and returns a durable public URL. Writing the same
// path twice replaces the earlier object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// Publisher pushes domain events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// MetadataExtractor derives SiteMetadata from a page URL.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) (SiteMetadata, error)
}

// ScreenshotCapturer always produces a result, falling back to a placeholder.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, url string) ScreenshotResult
}

// Limiter admits or rejects an action for a key.
type Limiter interface {
	Allow(key string) bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
