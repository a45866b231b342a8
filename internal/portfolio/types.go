package portfolio

import (
	"net/http"
	"strings"
	"time"
)

// Project is one link a user showcases on their portfolio.
type Project struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	URL           string    `json:"url"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	PreviewImage  *string   `json:"previewImage"`
	Favicon       *string   `json:"favicon"`
	ScreenshotURL *string   `json:"screenshotUrl"`
	Order         int       `json:"order"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SiteMetadata is what the extractor learned about a page. Every field is
// independently optional.
type SiteMetadata struct {
	Title               *string `json:"title"`
	Description         *string `json:"description"`
	Image               *string `json:"image"`
	Favicon             *string `json:"favicon"`
	ScreenshotSourceURL *string `json:"screenshotSourceUrl"`
}

// ScreenshotResult is either a durable image URL or the placeholder image.
type ScreenshotResult struct {
	URL         string
	Placeholder bool
	Image       []byte
	ContentType string
	Strategy    string
}

// User is an account plus its premium customization.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 *string   `json:"name"`
	Image                *string   `json:"image"`
	IsPremium            bool      `json:"isPremium"`
	StripeCustomerID     *string   `json:"-"`
	StripeSubscriptionID *string   `json:"-"`
	CustomName           *string   `json:"customName"`
	CustomEmail          *string   `json:"customEmail"`
	HideEmail            bool      `json:"hideEmail"`
	CustomSlug           *string   `json:"customSlug"`
	CustomLogo           *string   `json:"customLogo"`
	CustomBackground     *string   `json:"customBackground"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Subscription returns the billing-relevant slice of the user.
func (u User) Subscription() SubscriptionState {
	return SubscriptionState{IsPremium: u.IsPremium, SubscriptionID: u.StripeSubscriptionID}
}

// PortfolioKey is the public identifier of a user's portfolio: slug when set,
// id otherwise.
func (u User) PortfolioKey() string {
	if u.CustomSlug != nil && *u.CustomSlug != "" {
		return *u.CustomSlug
	}
	return u.ID
}

// SubscriptionState is the premium flag and the subscription backing it.
type SubscriptionState struct {
	IsPremium      bool
	SubscriptionID *string
}

// Equal reports whether two states carry the same flag and subscription id.
func (s SubscriptionState) Equal(other SubscriptionState) bool {
	if s.IsPremium != other.IsPremium {
		return false
	}
	switch {
	case s.SubscriptionID == nil && other.SubscriptionID == nil:
		return true
	case s.SubscriptionID == nil || other.SubscriptionID == nil:
		return false
	default:
		return *s.SubscriptionID == *other.SubscriptionID
	}
}

// ProfileUpdate replaces all premium customization fields at once.
type ProfileUpdate struct {
	CustomName  *string
	CustomEmail *string
	HideEmail   bool
	CustomSlug  *string
}

// SocialLink is one external profile shown on a premium portfolio.
type SocialLink struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	ID    string
	Email string
	Name  *string
	Image *string
}

// FetchRequest describes a single page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the fetched page.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Optional trims s and returns nil when nothing is left.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
