// Package stripe adapts the Stripe API to billing.Gateway.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/portfolieo/portfolio-api/internal/billing"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Config describes the account credentials and the premium product.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	UnitAmount    int64
	ProductName   string
	Description   string
	SuccessURL    string
	CancelURL     string
	// Backends overrides the API endpoints. Nil uses Stripe's.
	Backends *stripego.Backends
}

// Gateway implements billing.Gateway.
type Gateway struct {
	cfg Config
	api *client.API
}

// New builds a Gateway with its own API client.
func New(cfg Config) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "pln"
	}
	if cfg.UnitAmount <= 0 {
		cfg.UnitAmount = 1900
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Portfolio Premium"
	}
	if cfg.Description == "" {
		cfg.Description = "Monthly premium subscription: profile customization, custom link, social links"
	}
	return &Gateway{cfg: cfg, api: client.New(cfg.SecretKey, cfg.Backends)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return billing.Event{}, fmt.Errorf("%w: %w", billing.ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripego.Event) (billing.Event, error) {
	out := billing.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	switch out.Type {
	case billing.EventCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return billing.Event{}, fmt.Errorf("decode checkout session: %w: %w", portfolio.ErrInvalidInput, err)
		}
		out.UserID = session.Metadata["userId"]
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = portfolio.Optional(session.Subscription.ID)
		}
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return billing.Event{}, fmt.Errorf("decode subscription: %w: %w", portfolio.ErrInvalidInput, err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.SubscriptionID = portfolio.Optional(sub.ID)
		out.Status = string(sub.Status)
	}
	return out, nil
}

// CreateCustomer registers the user with Stripe, tagging it with the user id.
func (g *Gateway) CreateCustomer(ctx context.Context, user portfolio.User) (string, error) {
	params := &stripego.CustomerParams{}
	params.Context = ctx
	if user.Email != "" {
		params.Email = stripego.String(user.Email)
	}
	params.AddMetadata("userId", user.ID)
	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession opens a monthly subscription checkout.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, customerID, userID string) (string, error) {
	params := &stripego.CheckoutSessionParams{
		Customer:           stripego.String(customerID),
		Mode:               stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(g.cfg.Currency),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripego.String(g.cfg.ProductName),
					Description: stripego.String(g.cfg.Description),
				},
				UnitAmount: stripego.Int64(g.cfg.UnitAmount),
				Recurring: &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripego.String(string(stripego.PriceRecurringIntervalMonth)),
				},
			},
			Quantity: stripego.Int64(1),
		}},
		SuccessURL: stripego.String(g.cfg.SuccessURL),
		CancelURL:  stripego.String(g.cfg.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return session.URL, nil
}

// CancelAtPeriodEnd flags the subscription to stop renewing.
func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (billing.SubscriptionInfo, error) {
	params := &stripego.SubscriptionParams{CancelAtPeriodEnd: stripego.Bool(true)}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return billing.SubscriptionInfo{}, fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return toInfo(sub), nil
}

// GetSubscription fetches the current subscription status.
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (billing.SubscriptionInfo, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return billing.SubscriptionInfo{}, fmt.Errorf("stripe get subscription: %w", err)
	}
	return toInfo(sub), nil
}

func toInfo(sub *stripego.Subscription) billing.SubscriptionInfo {
	info := billing.SubscriptionInfo{
		HasSubscription:   true,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := sub.CurrentPeriodEnd
		info.CurrentPeriodEnd = &end
	}
	if sub.CancelAt > 0 {
		at := sub.CancelAt
		info.CancelAt = &at
	}
	return info
}
