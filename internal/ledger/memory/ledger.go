// Package memory is a process-local webhook event ledger.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Ledger remembers claimed event ids until their TTL passes.
type Ledger struct {
	mu      sync.Mutex
	claims  map[string]time.Time
	ttl     time.Duration
	clock   portfolio.Clock
	sweepAt time.Time
}

// New builds a Ledger. A non-positive ttl keeps claims forever.
func New(ttl time.Duration, clock portfolio.Clock) *Ledger {
	return &Ledger{claims: make(map[string]time.Time), ttl: ttl, clock: clock}
}

// Claim records eventID and reports whether this is its first delivery.
func (l *Ledger) Claim(_ context.Context, eventID string) (bool, error) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	if expires, ok := l.claims[eventID]; ok && (l.ttl <= 0 || now.Before(expires)) {
		return false, nil
	}
	l.claims[eventID] = now.Add(l.ttl)
	return true, nil
}

// Release forgets eventID so a redelivery is processed again.
func (l *Ledger) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	delete(l.claims, eventID)
	l.mu.Unlock()
	return nil
}

func (l *Ledger) sweepLocked(now time.Time) {
	if l.ttl <= 0 || now.Before(l.sweepAt) {
		return
	}
	for id, expires := range l.claims {
		if !now.Before(expires) {
			delete(l.claims, id)
		}
	}
	l.sweepAt = now.Add(l.ttl)
}
