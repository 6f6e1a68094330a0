package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// opTimeout bounds simple interactions (click, type) that the contract does
// not give an explicit timeout.
const opTimeout = 30 * time.Second

// Options configure one Chrome session.
type Options struct {
	ProxyURL    string
	Headless    bool
	UserDataDir string
}

// Session is a chromedp-backed Driver. Each Session owns a dedicated Chrome
// process with its own profile directory, so concurrent runs never share
// cookies or cache.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	userDataDir string
	quitOnce    sync.Once
}

// NewSession launches a fresh browser.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	userDataDir := opts.UserDataDir
	if userDataDir == "" {
		dir, err := os.MkdirTemp("", "visabot-profile-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create profile dir: %w", err)
		}
		userDataDir = dir
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.UserDataDir(userDataDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here, not on the
	// first interaction.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Session{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		userDataDir: userDataDir,
	}, nil
}

// run executes actions against the session, bounded by timeout (when
// positive) and by the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, opTimeout, chromedp.Navigate(url))
}

func (s *Session) Refresh(ctx context.Context) error {
	return s.run(ctx, opTimeout, chromedp.Reload())
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return wrapWaitErr(err, "wait visible", selector, timeout)
}

func (s *Session) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	return wrapWaitErr(err, "wait present", selector, timeout)
}

func (s *Session) WaitText(ctx context.Context, selector, text string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !!el && (el.innerText || el.textContent || '').includes(%q);
	})()`, selector, text)

	var ok bool
	err := s.run(ctx, timeout, chromedp.Poll(script, &ok))
	return wrapWaitErr(err, "wait text", selector, timeout)
}

func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && el.offsetParent !== null;
	})()`, selector)

	var visible bool
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, opTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) SendKeys(ctx context.Context, selector, text string) error {
	return s.run(ctx, opTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (s *Session) SendKeysNth(ctx context.Context, selector string, index int, text string) error {
	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%q);
		const el = els[%d];
		if (!el) return false;
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, selector, index, text)

	var ok bool
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element at index %d for selector %q", index, selector)
	}
	return nil
}

func (s *Session) SelectByText(ctx context.Context, selector, text string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		for (const opt of el.options) {
			if (opt.text.trim() === %q) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, selector, text)

	var ok bool
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option with text %q in %q", text, selector)
	}
	return nil
}

func (s *Session) Texts(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.innerText || el.textContent || '')`,
		selector)

	var texts []string
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

func (s *Session) ExecuteScript(ctx context.Context, script string, out any) error {
	return s.run(ctx, opTimeout, chromedp.Evaluate(script, out))
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, opTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Quit tears down the browser and its profile directory. Safe to call
// multiple times.
func (s *Session) Quit() {
	s.quitOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		if s.userDataDir != "" {
			os.RemoveAll(s.userDataDir)
		}
	})
}

func wrapWaitErr(err error, op, selector string, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Selector: selector, Timeout: timeout}
	}
	return err
}
