// Package browser abstracts the automation driver the bot uses to control
// one signed-in session on the scheduling site.
package browser

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an awaited page condition never became true.
type TimeoutError struct {
	Op       string
	Selector string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s waiting for %q", e.Op, e.Timeout, e.Selector)
}

// Driver is the capability the automation state machine drives. One Driver
// instance corresponds to one isolated browser session; implementations must
// tolerate Quit being called more than once.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	// WaitText blocks until the element's rendered text contains the given
	// substring.
	WaitText(ctx context.Context, selector, text string, timeout time.Duration) error
	IsVisible(ctx context.Context, selector string) (bool, error)

	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	// SendKeysNth fills the index-th element matched by selector.
	SendKeysNth(ctx context.Context, selector string, index int, text string) error
	SelectByText(ctx context.Context, selector, text string) error

	// Texts returns the rendered text of every element matching selector, in
	// document order.
	Texts(ctx context.Context, selector string) ([]string, error)
	// ExecuteScript evaluates script in the page and unmarshals its result
	// into out when out is non-nil.
	ExecuteScript(ctx context.Context, script string, out any) error

	Screenshot(ctx context.Context) ([]byte, error)
	Quit()
}

// Factory creates a fresh session for one automation run.
type Factory func(ctx context.Context) (Driver, error)
