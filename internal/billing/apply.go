// Package billing keeps a user's premium flag in step with their payment
// subscription.
package billing

import "github.com/portfolieo/portfolio-api/internal/portfolio"

// Event types that affect subscription state.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is a verified payment notification reduced to what Apply needs.
type Event struct {
	ID   string
	Type string
	// UserID comes from checkout session metadata.
	UserID         string
	CustomerID     string
	SubscriptionID *string
	Status         string
}

// Apply returns the state after ev. It is pure, so replaying an event yields
// the same result.
func Apply(state portfolio.SubscriptionState, ev Event) portfolio.SubscriptionState {
	switch ev.Type {
	case EventCheckoutCompleted:
		return portfolio.SubscriptionState{IsPremium: true, SubscriptionID: ev.SubscriptionID}
	case EventSubscriptionUpdated:
		if ev.Status == "active" || ev.Status == "trialing" {
			return portfolio.SubscriptionState{IsPremium: true, SubscriptionID: ev.SubscriptionID}
		}
		return portfolio.SubscriptionState{}
	case EventSubscriptionDeleted:
		return portfolio.SubscriptionState{}
	default:
		return state
	}
}

// Handled reports whether Apply can change state for this event type.
func Handled(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	}
	return false
}
