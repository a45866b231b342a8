// Package screenshot produces a durable preview image for a page by trying a
// chain of strategies and falling back to a fixed placeholder.
package screenshot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Strategy is one way of obtaining a screenshot. Attempt returns the durable
// URL of the stored image.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, pageURL string) (string, error)
}

// Acquirer implements portfolio.ScreenshotCapturer.
type Acquirer struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewAcquirer builds an Acquirer that tries strategies in order.
func NewAcquirer(logger *zap.Logger, strategies ...Strategy) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{strategies: strategies, logger: logger}
}

// Strategies returns the configured strategy names in order.
func (a *Acquirer) Strategies() []string {
	names := make([]string, 0, len(a.strategies))
	for _, s := range a.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Capture never fails: the first successful strategy wins, otherwise the
// placeholder is returned.
func (a *Acquirer) Capture(ctx context.Context, pageURL string) portfolio.ScreenshotResult {
	for _, strategy := range a.strategies {
		if ctx.Err() != nil {
			a.logger.Warn("screenshot budget exhausted", zap.String("url", pageURL), zap.Error(ctx.Err()))
			break
		}
		start := time.Now()
		location, err := strategy.Attempt(ctx, pageURL)
		elapsed := time.Since(start)
		if err != nil {
			metrics.ObserveScreenshotAttempt(strategy.Name(), "failure", elapsed)
			a.logger.Warn("screenshot strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("url", pageURL),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveScreenshotAttempt(strategy.Name(), "success", elapsed)
		a.logger.Info("screenshot captured",
			zap.String("strategy", strategy.Name()),
			zap.String("url", pageURL),
			zap.Duration("elapsed", elapsed),
		)
		return portfolio.ScreenshotResult{URL: location, Strategy: strategy.Name()}
	}
	metrics.ObserveScreenshotAttempt(PlaceholderStrategy, "success", 0)
	return Placeholder()
}
