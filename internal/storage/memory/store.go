package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Store is an in-memory implementation of the user, project, and social link
// stores for development and testing.
type Store struct {
	mu       sync.RWMutex
	users    map[string]portfolio.User
	projects map[string]portfolio.Project
	links    map[string]portfolio.SocialLink
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]portfolio.User),
		projects: make(map[string]portfolio.Project),
		links:    make(map[string]portfolio.SocialLink),
	}
}

// EnsureUser creates the user on first sight and refreshes identity fields afterwards.
func (s *Store) EnsureUser(_ context.Context, principal portfolio.Principal) (portfolio.User, error) {
	if principal.ID == "" || principal.Email == "" {
		return portfolio.User{}, fmt.Errorf("principal id and email are required: %w", portfolio.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	user, ok := s.users[principal.ID]
	if !ok {
		user = portfolio.User{ID: principal.ID, CreatedAt: now}
	}
	user.Email = principal.Email
	user.Name = principal.Name
	user.Image = principal.Image
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

// PutUser stores a user verbatim. Intended for seeding tests.
func (s *Store) PutUser(user portfolio.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// GetUser fetches a user by id.
func (s *Store) GetUser(_ context.Context, id string) (portfolio.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return portfolio.User{}, portfolio.ErrNotFound
	}
	return user, nil
}

// GetUserBySlug fetches a user by custom slug.
func (s *Store) GetUserBySlug(_ context.Context, slug string) (portfolio.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.CustomSlug != nil && *user.CustomSlug == slug {
			return user, nil
		}
	}
	return portfolio.User{}, portfolio.ErrNotFound
}

// GetUserByStripeCustomer fetches a user by payment platform customer id.
func (s *Store) GetUserByStripeCustomer(_ context.Context, customerID string) (portfolio.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.StripeCustomerID != nil && *user.StripeCustomerID == customerID {
			return user, nil
		}
	}
	return portfolio.User{}, portfolio.ErrNotFound
}

// SlugTaken reports whether any user other than excludeUserID owns slug.
func (s *Store) SlugTaken(_ context.Context, slug, excludeUserID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTakenLocked(slug, excludeUserID), nil
}

func (s *Store) slugTakenLocked(slug, excludeUserID string) bool {
	for id, user := range s.users {
		if id != excludeUserID && user.CustomSlug != nil && *user.CustomSlug == slug {
			return true
		}
	}
	return false
}

// UpdateProfile replaces the customization fields.
func (s *Store) UpdateProfile(_ context.Context, id string, update portfolio.ProfileUpdate) (portfolio.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return portfolio.User{}, portfolio.ErrNotFound
	}
	if update.CustomSlug != nil && s.slugTakenLocked(*update.CustomSlug, id) {
		return portfolio.User{}, portfolio.ErrSlugTaken
	}
	user.CustomName = update.CustomName
	user.CustomEmail = update.CustomEmail
	user.HideEmail = update.HideEmail
	user.CustomSlug = update.CustomSlug
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return user, nil
}

// SetSubscription stores the premium flag and subscription id.
func (s *Store) SetSubscription(_ context.Context, id string, state portfolio.SubscriptionState) error {
	return s.mutateUser(id, func(u *portfolio.User) {
		u.IsPremium = state.IsPremium
		u.StripeSubscriptionID = state.SubscriptionID
	})
}

// SetStripeCustomer links the user to a payment platform customer.
func (s *Store) SetStripeCustomer(_ context.Context, id, customerID string) error {
	return s.mutateUser(id, func(u *portfolio.User) {
		u.StripeCustomerID = &customerID
	})
}

// SetCustomBackground stores or clears the background image URL.
func (s *Store) SetCustomBackground(_ context.Context, id string, url *string) error {
	return s.mutateUser(id, func(u *portfolio.User) { u.CustomBackground = url })
}

// SetCustomLogo stores or clears the logo URL.
func (s *Store) SetCustomLogo(_ context.Context, id string, url *string) error {
	return s.mutateUser(id, func(u *portfolio.User) { u.CustomLogo = url })
}

func (s *Store) mutateUser(id string, fn func(*portfolio.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return portfolio.ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return nil
}

// ListPublishedUsers returns users with at least one project, most recently updated first.
func (s *Store) ListPublishedUsers(_ context.Context) ([]portfolio.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := make(map[string]struct{})
	for _, p := range s.projects {
		owners[p.OwnerID] = struct{}{}
	}
	out := make([]portfolio.User, 0, len(owners))
	for id := range owners {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateProject appends a project after the owner's current maximum order.
func (s *Store) CreateProject(_ context.Context, p portfolio.Project) (portfolio.Project, error) {
	if p.ID == "" || p.OwnerID == "" || p.URL == "" {
		return portfolio.Project{}, fmt.Errorf("project id, owner, and url are required: %w", portfolio.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[p.ID]; exists {
		return portfolio.Project{}, fmt.Errorf("project %s already exists", p.ID)
	}
	next := 0
	for _, existing := range s.projects {
		if existing.OwnerID == p.OwnerID && existing.Order+1 > next {
			next = existing.Order + 1
		}
	}
	p.Order = next
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.projects[p.ID] = p
	return p, nil
}

// ListProjects returns the owner's projects ordered by order, then creation time.
func (s *Store) ListProjects(_ context.Context, ownerID string) ([]portfolio.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portfolio.Project, 0)
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteProject removes an owned project.
func (s *Store) DeleteProject(_ context.Context, ownerID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.OwnerID != ownerID {
		return portfolio.ErrNotFound
	}
	delete(s.projects, projectID)
	return nil
}

// ReorderProjects sets order to the slice index for each owned id.
func (s *Store) ReorderProjects(_ context.Context, ownerID string, projectIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range projectIDs {
		if p, ok := s.projects[id]; !ok || p.OwnerID != ownerID {
			return portfolio.ErrNotFound
		}
	}
	for i, id := range projectIDs {
		p := s.projects[id]
		p.Order = i
		s.projects[id] = p
	}
	return nil
}

// ListLinks returns the owner's social links oldest first.
func (s *Store) ListLinks(_ context.Context, ownerID string) ([]portfolio.SocialLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portfolio.SocialLink, 0)
	for _, l := range s.links {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddLink stores a social link.
func (s *Store) AddLink(_ context.Context, link portfolio.SocialLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[link.ID]; exists {
		return fmt.Errorf("social link %s already exists", link.ID)
	}
	s.links[link.ID] = link
	return nil
}

// DeleteLink removes an owned social link.
func (s *Store) DeleteLink(_ context.Context, ownerID, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkID]
	if !ok || l.OwnerID != ownerID {
		return portfolio.ErrNotFound
	}
	delete(s.links, linkID)
	return nil
}
