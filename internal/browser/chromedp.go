// Package browser drives the registry site through headless Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// Config controls the behavior of the chromedp browser.
type Config struct {
	Headless           bool
	NoSandbox          bool
	UserAgent          string
	SettleDelay        time.Duration
	StepTimeout        time.Duration
	CaptchaReloadDelay time.Duration
	Layout             Layout
}

// Browser implements bid.Browser. Every Open launches a fresh browser process.
type Browser struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a browser backed by chromedp.
func NewChromedp(cfg Config) (*Browser, error) {
	if cfg.StepTimeout < 0 || cfg.SettleDelay < 0 {
		return nil, errors.New("browser timeouts must be >= 0")
	}
	cfg = withDefaults(cfg)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.CaptchaReloadDelay == 0 {
		cfg.CaptchaReloadDelay = time.Second
	}
	if cfg.Layout == (Layout{}) {
		cfg.Layout = DefaultLayout()
	}
	return cfg
}

// Close cancels the allocator context.
func (b *Browser) Close() {
	b.allocCancel()
}

// Open starts a new browser and returns a session bound to its first tab.
func (b *Browser) Open(ctx context.Context) (bid.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(b.allocator)
	s := &Session{
		tab:    tabCtx,
		cancel: tabCancel,
		cfg:    b.cfg,
	}
	// The first Run starts Chrome under the context it receives, so it must be
	// the tab context itself: a derived timeout would kill the process on return.
	stopForward := forwardCancel(ctx, tabCancel)
	err := chromedp.Run(tabCtx, s.networkSetupAction())
	stopForward()
	if err != nil {
		tabCancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("start browser: %w", ctxErr)
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Session is one browser process with a single tab.
type Session struct {
	tab    context.Context
	cancel context.CancelFunc
	cfg    Config
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.tab)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// Navigate loads url and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.SettleDelay),
	)
}

// FillSearch sets the date, state, and club filters.
// The club is not listed by default, so its option is injected before selection.
func (s *Session) FillSearch(ctx context.Context, form bid.SearchForm) error {
	l := s.cfg.Layout
	return s.run(ctx, "fill search form",
		chromedp.RemoveAttribute(l.DateInput, "readonly", chromedp.BySearch),
		chromedp.SetValue(l.DateInput, form.Date, chromedp.BySearch),
		evaluateTrue(selectByLabelJS(l.StateSelect, form.State), "select state "+form.State),
		evaluateTrue(injectOptionJS(l.ClubSelect, form.ClubLabel, form.ClubID), "select club "+form.ClubID),
	)
}

// SubmitSearch clicks the search button.
func (s *Session) SubmitSearch(ctx context.Context) error {
	return s.run(ctx, "submit search",
		chromedp.Click(s.cfg.Layout.SearchButton, chromedp.BySearch),
	)
}

// WaitCaptcha blocks until the captcha modal image is visible.
func (s *Session) WaitCaptcha(ctx context.Context) error {
	return s.run(ctx, "wait captcha",
		chromedp.WaitVisible(s.cfg.Layout.CaptchaImage, chromedp.BySearch),
	)
}

// CaptchaImage returns the captcha image src, normally a base64 data URI.
func (s *Session) CaptchaImage(ctx context.Context) (string, error) {
	return s.attribute(ctx, "read captcha image", s.cfg.Layout.CaptchaImage, "src")
}

// ReloadCaptcha asks the modal for a new image.
func (s *Session) ReloadCaptcha(ctx context.Context) error {
	return s.run(ctx, "reload captcha",
		chromedp.Click(s.cfg.Layout.CaptchaReload, chromedp.BySearch),
		chromedp.Sleep(s.cfg.CaptchaReloadDelay),
		chromedp.WaitVisible(s.cfg.Layout.CaptchaImage, chromedp.BySearch),
	)
}

// SubmitCaptcha types the answer and confirms the modal.
func (s *Session) SubmitCaptcha(ctx context.Context, answer string) error {
	l := s.cfg.Layout
	return s.run(ctx, "submit captcha",
		chromedp.SetValue(l.CaptchaInput, answer, chromedp.BySearch),
		chromedp.Click(l.CaptchaSubmit, chromedp.BySearch),
	)
}

// ResultCount waits for the results to render and returns the counter text.
func (s *Session) ResultCount(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, "read result count",
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.TextContent(s.cfg.Layout.ResultCount, &text, chromedp.BySearch),
	)
	return text, err
}

// RowField reads one field of the 1-based result row.
func (s *Session) RowField(ctx context.Context, index int, field bid.Field) (string, error) {
	xpath, err := s.cfg.Layout.RowXPath(index, field)
	if err != nil {
		return "", err
	}
	step := fmt.Sprintf("read row %d %s", index, field)
	if field == bid.FieldPhoto {
		return s.attribute(ctx, step, xpath, "src")
	}
	var text string
	err = s.run(ctx, step, chromedp.TextContent(xpath, &text, chromedp.BySearch))
	return text, err
}

func (s *Session) attribute(ctx context.Context, step, xpath, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, step, chromedp.AttributeValue(xpath, name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: attribute %q missing on %s", step, name, xpath)
	}
	return value, nil
}

// run executes actions on the tab with a per-step deadline. Cancelling the
// caller's context also aborts the step. The browser must already be running.
func (s *Session) run(ctx context.Context, step string, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(s.tab, s.cfg.StepTimeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(stepCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", step, ctxErr)
		}
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
