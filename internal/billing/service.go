package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

var (
	// ErrInvalidSignature means the webhook payload was not signed with our secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrAlreadySubscribed rejects a second checkout for a premium user.
	ErrAlreadySubscribed = errors.New("you already have an active subscription")
	// ErrNoSubscription rejects cancellation without a subscription.
	ErrNoSubscription = errors.New("no active subscription found")
	// ErrDisabled is returned when no payment gateway is configured.
	ErrDisabled = errors.New("billing is not configured")
)

// SubscriptionInfo describes the provider-side subscription.
type SubscriptionInfo struct {
	HasSubscription   bool   `json:"hasSubscription"`
	Status            string `json:"status,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *int64 `json:"currentPeriodEnd,omitempty"`
	CancelAt          *int64 `json:"cancelAt,omitempty"`
}

// Gateway is the payment provider boundary.
type Gateway interface {
	// ParseWebhook verifies the signature and decodes the event. A bad
	// signature yields ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (Event, error)
	CreateCustomer(ctx context.Context, user portfolio.User) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID string) (string, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (SubscriptionInfo, error)
	GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionInfo, error)
}

// Ledger dedupes redelivered webhook events.
type Ledger interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Service applies webhook events and fronts the checkout flow.
type Service struct {
	users   portfolio.UserStore
	gateway Gateway
	ledger  Ledger
	logger  *zap.Logger
}

// NewService builds a Service. gateway and ledger may be nil.
func NewService(users portfolio.UserStore, gateway Gateway, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, gateway: gateway, ledger: ledger, logger: logger}
}

// HandleWebhook verifies and applies a raw webhook delivery.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrDisabled
	}
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.ObserveWebhookEvent("unknown", "rejected")
		return err
	}
	return s.HandleEvent(ctx, ev)
}

// HandleEvent applies ev to the user it refers to. Unknown users and
// unhandled types are ignored; state is written only when it changes.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	logger := s.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if !Handled(ev.Type) {
		metrics.ObserveWebhookEvent(ev.Type, "ignored")
		logger.Debug("unhandled event type")
		return nil
	}

	if s.ledger != nil && ev.ID != "" {
		first, err := s.ledger.Claim(ctx, ev.ID)
		if err != nil {
			logger.Warn("event ledger unavailable, processing anyway", zap.Error(err))
		} else if !first {
			metrics.ObserveWebhookEvent(ev.Type, "duplicate")
			logger.Info("duplicate event skipped")
			return nil
		}
	}

	outcome, err := s.apply(ctx, ev)
	if err != nil {
		metrics.ObserveWebhookEvent(ev.Type, "error")
		if s.ledger != nil && ev.ID != "" {
			if relErr := s.ledger.Release(ctx, ev.ID); relErr != nil {
				logger.Warn("release event claim failed", zap.Error(relErr))
			}
		}
		return err
	}
	metrics.ObserveWebhookEvent(ev.Type, outcome)
	logger.Info("event processed", zap.String("outcome", outcome))
	return nil
}

func (s *Service) apply(ctx context.Context, ev Event) (string, error) {
	user, err := s.resolveUser(ctx, ev)
	if errors.Is(err, portfolio.ErrNotFound) {
		return "unknown_user", nil
	}
	if err != nil {
		return "", err
	}

	current := user.Subscription()
	next := Apply(current, ev)
	if next.Equal(current) {
		return "unchanged", nil
	}
	if err := s.users.SetSubscription(ctx, user.ID, next); err != nil {
		return "", fmt.Errorf("update subscription for %s: %w", user.ID, err)
	}
	return "applied", nil
}

func (s *Service) resolveUser(ctx context.Context, ev Event) (portfolio.User, error) {
	if ev.Type == EventCheckoutCompleted {
		if ev.UserID == "" {
			return portfolio.User{}, portfolio.ErrNotFound
		}
		user, err := s.users.GetUser(ctx, ev.UserID)
		if err != nil {
			return portfolio.User{}, fmt.Errorf("load user %s: %w", ev.UserID, err)
		}
		return user, nil
	}
	if ev.CustomerID == "" {
		return portfolio.User{}, portfolio.ErrNotFound
	}
	user, err := s.users.GetUserByStripeCustomer(ctx, ev.CustomerID)
	if err != nil {
		return portfolio.User{}, fmt.Errorf("load user by customer %s: %w", ev.CustomerID, err)
	}
	return user, nil
}

// Checkout starts a subscription checkout and returns the hosted page URL.
func (s *Service) Checkout(ctx context.Context, ownerID string) (string, error) {
	if s.gateway == nil {
		return "", ErrDisabled
	}
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if user.IsPremium && user.StripeSubscriptionID != nil {
		return "", ErrAlreadySubscribed
	}

	customerID := portfolio.Deref(user.StripeCustomerID)
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user)
		if err != nil {
			return "", fmt.Errorf("create customer: %w", err)
		}
		if err := s.users.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
			return "", fmt.Errorf("save customer: %w", err)
		}
	}

	location, err := s.gateway.CreateCheckoutSession(ctx, customerID, user.ID)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return location, nil
}

// Cancel schedules the subscription to end with the current period. Premium
// stays until the provider reports the subscription deleted.
func (s *Service) Cancel(ctx context.Context, ownerID string) (SubscriptionInfo, error) {
	if s.gateway == nil {
		return SubscriptionInfo{}, ErrDisabled
	}
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("load user: %w", err)
	}
	if user.StripeSubscriptionID == nil {
		return SubscriptionInfo{}, ErrNoSubscription
	}
	info, err := s.gateway.CancelAtPeriodEnd(ctx, *user.StripeSubscriptionID)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("cancel subscription: %w", err)
	}
	return info, nil
}

// Subscription reports the provider-side subscription status.
func (s *Service) Subscription(ctx context.Context, ownerID string) (SubscriptionInfo, error) {
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("load user: %w", err)
	}
	if user.StripeSubscriptionID == nil {
		return SubscriptionInfo{HasSubscription: false}, nil
	}
	if s.gateway == nil {
		return SubscriptionInfo{}, ErrDisabled
	}
	info, err := s.gateway.GetSubscription(ctx, *user.StripeSubscriptionID)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("get subscription: %w", err)
	}
	return info, nil
}
