// Package headless captures screenshots with a local headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/metrics"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/screenshot"
)

// StrategyName labels screenshots produced by the local renderer.
const StrategyName = "headless"

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	HardTimeout       time.Duration
	ExecPath          string
	Prefix            string
}

// Renderer implements screenshot.Strategy using chromedp and headless Chrome.
// Every capture runs in its own tab of a shared browser.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	blobs       portfolio.BlobStore
	ids         portfolio.IDGenerator
	logger      *zap.Logger
}

// New creates a headless renderer. The browser starts lazily on first capture.
func New(cfg Config, blobs portfolio.BlobStore, ids portfolio.IDGenerator, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if blobs == nil || ids == nil {
		return nil, fmt.Errorf("blob store and id generator are required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = 75 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "screenshots"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("mute-audio", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(screenshot.Width, screenshot.Height),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		blobs:       blobs,
		ids:         ids,
		logger:      logger,
	}, nil
}

// Close shuts down the browser.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Name identifies the strategy.
func (r *Renderer) Name() string {
	return StrategyName
}

// Attempt renders pageURL at 1200x900, stores the PNG, and returns its URL.
func (r *Renderer) Attempt(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.HardTimeout)
	defer cancel()

	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()
	metrics.IncHeadlessRenders()
	defer metrics.DecHeadlessRenders()

	image, err := r.capture(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return screenshot.Store(ctx, r.blobs, r.ids, r.cfg.Prefix, image)
}

func (r *Renderer) capture(ctx context.Context, pageURL string) ([]byte, error) {
	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	// Closing the tab is the only way to stop an in-flight navigation.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	if err := chromedp.Run(taskCtx, r.setupAction()); err != nil {
		return nil, fmt.Errorf("chromedp setup: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	navErr := chromedp.Run(navCtx, chromedp.Navigate(pageURL))
	navCancel()
	if err := acceptNavigation(navErr, meta.domReady(), ctx.Err()); err != nil {
		return nil, err
	}
	if navErr != nil {
		r.logger.Info("load event timed out, capturing after DOMContentLoaded", zap.String("url", pageURL))
	}
	if status := meta.status(); status >= http.StatusBadRequest {
		return nil, fmt.Errorf("page returned status %d", status)
	}

	var image []byte
	if err := chromedp.Run(taskCtx,
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.CaptureScreenshot(&image),
	); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	if len(image) == 0 {
		return nil, errors.New("empty screenshot")
	}
	return image, nil
}

// acceptNavigation tolerates a load-event timeout once the DOM is ready,
// unless the overall budget is spent.
func acceptNavigation(navErr error, domReady bool, outerErr error) error {
	switch {
	case navErr == nil:
		return nil
	case outerErr != nil:
		return fmt.Errorf("navigate: %w", outerErr)
	case errors.Is(navErr, context.DeadlineExceeded) && domReady:
		return nil
	default:
		return fmt.Errorf("navigate: %w", navErr)
	}
}

func (r *Renderer) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(screenshot.Width, screenshot.Height, 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// responseMeta records the main document status and DOM readiness.
type responseMeta struct {
	mu         sync.RWMutex
	docStatus  int
	domContent atomic.Bool
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		m.mu.Lock()
		m.docStatus = int(e.Response.Status)
		m.mu.Unlock()
	case *page.EventDomContentEventFired:
		m.domContent.Store(true)
	}
}

func (m *responseMeta) status() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docStatus
}

func (m *responseMeta) domReady() bool {
	return m.domContent.Load()
}
