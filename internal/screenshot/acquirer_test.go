package screenshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name  string
	url   string
	err   error
	calls atomic.Int32
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(context.Context, string) (string, error) {
	s.calls.Add(1)
	return s.url, s.err
}

func TestCaptureFirstSuccessWins(t *testing.T) {
	t.Parallel()

	failing := &stubStrategy{name: "screenshotapi", err: errors.New("boom")}
	working := &stubStrategy{name: "headless", url: "https://cdn.example/shot.png"}
	unused := &stubStrategy{name: "never", url: "https://cdn.example/other.png"}

	acq := NewAcquirer(nil, failing, working, unused)
	res := acq.Capture(context.Background(), "https://example.com")

	assert.False(t, res.Placeholder)
	assert.Equal(t, "https://cdn.example/shot.png", res.URL)
	assert.Equal(t, "headless", res.Strategy)
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(0), unused.calls.Load())
	assert.Equal(t, []string{"screenshotapi", "headless", "never"}, acq.Strategies())
}

func TestCaptureFallsBackToPlaceholder(t *testing.T) {
	t.Parallel()

	acq := NewAcquirer(nil,
		&stubStrategy{name: "a", err: errors.New("down")},
		&stubStrategy{name: "b", err: errors.New("down")},
	)
	res := acq.Capture(context.Background(), "https://example.com")

	require.True(t, res.Placeholder)
	assert.Empty(t, res.URL)
	assert.Equal(t, PlaceholderContentType, res.ContentType)
	assert.Equal(t, PlaceholderStrategy, res.Strategy)
}

func TestCaptureWithoutStrategies(t *testing.T) {
	t.Parallel()

	res := NewAcquirer(nil).Capture(context.Background(), "https://example.com")
	assert.True(t, res.Placeholder)
}

func TestCaptureStopsWhenBudgetExhausted(t *testing.T) {
	t.Parallel()

	strategy := &stubStrategy{name: "a", url: "https://cdn.example/x.png"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewAcquirer(nil, strategy).Capture(ctx, "https://example.com")
	assert.True(t, res.Placeholder)
	assert.Equal(t, int32(0), strategy.calls.Load())
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	t.Parallel()

	first := Placeholder()
	second := Placeholder()
	assert.Equal(t, first.Image, second.Image)
	body := string(first.Image)
	assert.Contains(t, body, `width="1200"`)
	assert.Contains(t, body, `height="900"`)
	assert.Contains(t, body, "#f3f4f6")
}
