// Package bot drives one user's appointment check end to end: sign in, pass
// the CAPTCHA and security questions, open the reschedule calendar, and book
// the earliest acceptable slot if one exists.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/visabot-io/visabot/internal/artifacts"
	"github.com/visabot-io/visabot/internal/browser"
	"github.com/visabot-io/visabot/internal/captcha"
	"github.com/visabot-io/visabot/internal/models"
	"github.com/visabot-io/visabot/internal/notify"
)

// Outcome is the terminal state of one automation run.
type Outcome int

const (
	// OutcomeFailed means the run aborted; the user stays pending and is
	// retried on a later tick.
	OutcomeFailed Outcome = iota
	// OutcomeNoSlot means the run completed but no acceptable date existed.
	OutcomeNoSlot
	// OutcomeBooked means an appointment was submitted.
	OutcomeBooked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBooked:
		return "booked"
	case OutcomeNoSlot:
		return "no_slot"
	default:
		return "failed"
	}
}

// Store is the slice of persistence the automation needs.
type Store interface {
	UpdateStatus(id string, status models.Status) error
	UpdateLastChecked(id string) error
}

// Solver recognizes the text in a CAPTCHA image.
type Solver interface {
	Solve(ctx context.Context, imageBase64 string) (string, error)
}

// Delays are the fixed settle pauses between interactions; the site's own
// scripts need time to react to input.
type Delays struct {
	CaptchaSettle time.Duration
	SubmitSettle  time.Duration
	PostSecurity  time.Duration
	PostBooking   time.Duration
	CalendarLoad  time.Duration
}

// DefaultDelays mirrors the pauses the site tolerates in production.
func DefaultDelays() Delays {
	return Delays{
		CaptchaSettle: 4 * time.Second,
		SubmitSettle:  2 * time.Second,
		PostSecurity:  3 * time.Second,
		PostBooking:   10 * time.Second,
		CalendarLoad:  4 * time.Second,
	}
}

// Config are the per-service knobs for a run.
type Config struct {
	SigninURL          string
	MaxCaptchaAttempts int
	AutoSubmit         bool
	Delays             Delays
}

// Bot runs the automation state machine for a single user.
type Bot struct {
	user     *models.User
	cfg      Config
	store    Store
	solver   Solver
	notifier notify.Notifier
	sessions browser.Factory
	shots    *artifacts.Recorder
	log      *zap.SugaredLogger
}

// New builds a Bot for one user. The artifact recorder is constructed here so
// every run starts with a clean screenshot set.
func New(user *models.User, cfg Config, store Store, solver Solver, notifier notify.Notifier,
	sessions browser.Factory, shots *artifacts.Recorder, log *zap.SugaredLogger) *Bot {
	return &Bot{
		user:     user,
		cfg:      cfg,
		store:    store,
		solver:   solver,
		notifier: notifier,
		sessions: sessions,
		shots:    shots,
		log:      log.With("user_id", user.ID),
	}
}

// Run drives the full state machine. Whatever happens, the cleanup path
// quits the session and stamps last_checked so the scheduler's retry gate
// works.
func (b *Bot) Run(ctx context.Context) Outcome {
	b.log.Info("starting automation run")

	if err := b.store.UpdateStatus(b.user.ID, models.StatusPending); err != nil {
		b.log.Errorw("failed to mark user running", "error", err)
	}

	var driver browser.Driver
	defer func() {
		if driver != nil {
			b.shots.Capture(ctx, "automation_completed", driver.Screenshot)
			driver.Quit()
		}
		if err := b.store.UpdateLastChecked(b.user.ID); err != nil {
			b.log.Errorw("failed to update last_checked", "error", err)
		}
		b.log.Info("automation run finished")
	}()

	driver, err := b.sessions(ctx)
	if err != nil {
		b.log.Errorw("failed to launch session", "error", err)
		return OutcomeFailed
	}

	if err := driver.Navigate(ctx, b.cfg.SigninURL); err != nil {
		b.log.Errorw("failed to open signin page", "error", err)
		return OutcomeFailed
	}
	b.shots.Capture(ctx, "website_loaded", driver.Screenshot)

	if err := b.login(ctx, driver); err != nil {
		b.log.Errorw("login failed", "error", err)
		b.shots.Capture(ctx, "automation_error", driver.Screenshot)
		return OutcomeFailed
	}

	if err := b.fillSecurityQuestions(ctx, driver); err != nil {
		b.log.Errorw("failed to fill security questions", "error", err)
		b.shots.Capture(ctx, "automation_error", driver.Screenshot)
		return OutcomeFailed
	}

	b.sleep(ctx, b.cfg.Delays.PostSecurity)
	b.shots.Capture(ctx, "after_security_questions_delay", driver.Screenshot)

	if err := b.openReschedule(ctx, driver); err != nil {
		b.log.Errorw("failed to reach reschedule page", "error", err)
		b.shots.Capture(ctx, "automation_error", driver.Screenshot)
		return OutcomeFailed
	}
	b.shots.Capture(ctx, "appointment_schedule_page_loaded", driver.Screenshot)

	outcome, err := b.bookAppointment(ctx, driver)
	if err != nil {
		b.log.Errorw("booking attempt failed", "error", err)
		b.shots.Capture(ctx, "appointment_booking_error", driver.Screenshot)
		return OutcomeFailed
	}
	if outcome == OutcomeNoSlot {
		b.log.Info("no appointments available, will retry later")
	}
	return outcome
}

// login fills the credentials and solves the CAPTCHA with bounded retry.
func (b *Bot) login(ctx context.Context, driver browser.Driver) error {
	b.shots.Capture(ctx, "login_page_loaded", driver.Screenshot)

	if err := driver.WaitVisible(ctx, browser.SignInInput, time.Minute); err != nil {
		return fmt.Errorf("username field never appeared: %w", err)
	}
	if err := driver.SendKeys(ctx, browser.SignInInput, b.user.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}
	b.shots.Capture(ctx, "username_filled", driver.Screenshot)

	if err := driver.WaitVisible(ctx, browser.PasswordInput, time.Minute); err != nil {
		return fmt.Errorf("password field never appeared: %w", err)
	}
	if err := driver.SendKeys(ctx, browser.PasswordInput, b.user.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	b.shots.Capture(ctx, "password_filled", driver.Screenshot)

	if err := b.solveCaptchaWithRetry(ctx, driver); err != nil {
		b.shots.Capture(ctx, "login_captcha_failed", driver.Screenshot)
		return err
	}

	b.shots.Capture(ctx, "login_successful", driver.Screenshot)
	b.log.Info("login successful")
	return nil
}

// solveCaptchaWithRetry runs the CAPTCHA loop: extract, solve remotely,
// submit, check the site's verdict. Solver failures and rejected answers
// refresh the image and try again until the attempt budget runs out.
func (b *Bot) solveCaptchaWithRetry(ctx context.Context, driver browser.Driver) error {
	b.sleep(ctx, b.cfg.Delays.CaptchaSettle)
	b.shots.Capture(ctx, "captcha_page_loaded", driver.Screenshot)

	max := b.cfg.MaxCaptchaAttempts
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.log.Infow("captcha attempt", "attempt", attempt, "max", max)

		text, err := b.solveOnce(ctx, driver, attempt)
		if err != nil {
			b.log.Warnw("captcha attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if err := driver.WaitVisible(ctx, browser.CaptchaInput, time.Minute); err != nil {
			b.log.Warnw("captcha input never appeared", "attempt", attempt, "error", err)
			continue
		}
		if err := driver.SendKeys(ctx, browser.CaptchaInput, text); err != nil {
			b.log.Warnw("failed to type captcha answer", "attempt", attempt, "error", err)
			continue
		}
		b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_filled", attempt), driver.Screenshot)

		if err := driver.Click(ctx, browser.LoginSubmit); err != nil {
			b.log.Warnw("failed to submit captcha", "attempt", attempt, "error", err)
			continue
		}
		b.sleep(ctx, b.cfg.Delays.SubmitSettle)
		b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_submitted", attempt), driver.Screenshot)

		rejected, err := driver.IsVisible(ctx, browser.CaptchaError)
		if err != nil {
			b.log.Warnw("failed to check captcha verdict", "attempt", attempt, "error", err)
			continue
		}
		if rejected {
			b.log.Warnw("captcha rejected by site, refreshing", "attempt", attempt)
			b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_failed", attempt), driver.Screenshot)
			b.refreshCaptcha(ctx, driver)
			continue
		}

		b.log.Infow("captcha accepted", "attempt", attempt)
		b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_success", attempt), driver.Screenshot)
		return nil
	}

	return fmt.Errorf("captcha failed after %d attempts", max)
}

// solveOnce extracts the current CAPTCHA image and asks the remote solver
// for its text. On solver failure the image is refreshed before returning so
// the next attempt sees a new challenge.
func (b *Bot) solveOnce(ctx context.Context, driver browser.Driver, attempt int) (string, error) {
	if err := driver.WaitVisible(ctx, browser.CaptchaImage, time.Minute); err != nil {
		return "", fmt.Errorf("captcha image never appeared: %w", err)
	}
	b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_image_visible", attempt), driver.Screenshot)

	var dataURL string
	if err := driver.ExecuteScript(ctx, captchaExtractScript, &dataURL); err != nil {
		return "", fmt.Errorf("failed to extract captcha image: %w", err)
	}
	_, b64, found := strings.Cut(dataURL, ",")
	if !found {
		return "", fmt.Errorf("unexpected captcha data url %q", truncate(dataURL, 32))
	}

	text, err := b.solver.Solve(ctx, b64)
	if err != nil {
		if captcha.IsImageTooSmall(err) {
			b.log.Warnw("captcha image too small, refreshing", "attempt", attempt)
		}
		b.shots.Capture(ctx, fmt.Sprintf("captcha_attempt_%d_solve_error", attempt), driver.Screenshot)
		b.refreshCaptcha(ctx, driver)
		return "", err
	}

	b.log.Infow("captcha solved", "attempt", attempt)
	return text, nil
}

func (b *Bot) refreshCaptcha(ctx context.Context, driver browser.Driver) {
	if err := driver.WaitVisible(ctx, browser.CaptchaRefresh, time.Minute); err != nil {
		b.log.Warnw("captcha refresh control missing", "error", err)
		return
	}
	if err := driver.Click(ctx, browser.CaptchaRefresh); err != nil {
		b.log.Warnw("failed to refresh captcha", "error", err)
		return
	}
	b.sleep(ctx, b.cfg.Delays.CaptchaSettle)
}

// fillSecurityQuestions pairs each rendered prompt with the answer input in
// the same position and fills the ones the keyword rules recognize.
func (b *Bot) fillSecurityQuestions(ctx context.Context, driver browser.Driver) error {
	b.shots.Capture(ctx, "before_security_questions", driver.Screenshot)

	if err := driver.WaitVisible(ctx, browser.SecurityAnswers, time.Minute); err != nil {
		return fmt.Errorf("security answer inputs never appeared: %w", err)
	}
	if err := driver.WaitVisible(ctx, browser.SecurityQuestions, time.Minute); err != nil {
		return fmt.Errorf("security question prompts never appeared: %w", err)
	}
	b.shots.Capture(ctx, "security_questions_loaded", driver.Screenshot)

	prompts, err := driver.Texts(ctx, browser.SecurityQuestions)
	if err != nil {
		return fmt.Errorf("failed to read security questions: %w", err)
	}

	for i, prompt := range prompts {
		answer, ok := classifyQuestion(prompt, b.user)
		if !ok {
			b.log.Warnw("unrecognized security question left blank", "prompt", prompt)
			continue
		}
		if err := driver.SendKeysNth(ctx, browser.SecurityAnswers, i, answer); err != nil {
			return fmt.Errorf("failed to answer security question %d: %w", i+1, err)
		}
		b.shots.Capture(ctx, fmt.Sprintf("security_question_%d_filled", i+1), driver.Screenshot)
	}

	b.shots.Capture(ctx, "before_security_submit", driver.Screenshot)
	if err := driver.WaitVisible(ctx, browser.SecuritySubmit, time.Minute); err != nil {
		return fmt.Errorf("security submit never appeared: %w", err)
	}
	if err := driver.Click(ctx, browser.SecuritySubmit); err != nil {
		return fmt.Errorf("failed to submit security questions: %w", err)
	}
	b.shots.Capture(ctx, "after_security_submit", driver.Screenshot)
	return nil
}

// openReschedule waits for the reschedule entry point; one page refresh with
// a longer wait is allowed before giving up.
func (b *Bot) openReschedule(ctx context.Context, driver browser.Driver) error {
	err := driver.WaitPresent(ctx, browser.RescheduleLink, 30*time.Second)
	if err != nil {
		var timeoutErr *browser.TimeoutError
		if !errors.As(err, &timeoutErr) {
			return err
		}
		b.log.Warn("reschedule entry not found, refreshing once")
		if err := driver.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh page: %w", err)
		}
		if err := driver.WaitPresent(ctx, browser.RescheduleLink, time.Minute); err != nil {
			return fmt.Errorf("reschedule entry never appeared: %w", err)
		}
	}
	return driver.Click(ctx, browser.RescheduleLink)
}

// bookAppointment installs the calendar patch, selects the consular post and
// waits for the patch to enable the submit control. An enabled control means
// an acceptable slot was auto-selected.
func (b *Bot) bookAppointment(ctx context.Context, driver browser.Driver) (Outcome, error) {
	b.shots.Capture(ctx, "appointment_booking_page_loaded", driver.Screenshot)

	if err := driver.WaitVisible(ctx, browser.ConsularDropdown, time.Minute); err != nil {
		return OutcomeFailed, fmt.Errorf("location selector never appeared: %w", err)
	}
	b.sleep(ctx, b.cfg.Delays.CalendarLoad)

	script := CalendarPatchScript(b.user.CheckDays, b.cfg.AutoSubmit)
	if err := driver.ExecuteScript(ctx, script, nil); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to inject calendar patch: %w", err)
	}
	b.shots.Capture(ctx, "before_consular_post_selection", driver.Screenshot)

	if err := driver.WaitText(ctx, browser.ConsularDropdown, b.user.ConsularPost, time.Minute); err != nil {
		return OutcomeFailed, fmt.Errorf("consular post %q not offered: %w", b.user.ConsularPost, err)
	}
	if err := driver.SelectByText(ctx, browser.ConsularDropdown, b.user.ConsularPost); err != nil {
		return OutcomeFailed, err
	}
	b.shots.Capture(ctx, "consular_post_selected", driver.Screenshot)

	// The patch enables the submit control only after it auto-selected an
	// in-window date and slot. No enablement within the window means no slot.
	if err := driver.WaitVisible(ctx, browser.BookingSubmitFree, 15*time.Second); err != nil {
		var timeoutErr *browser.TimeoutError
		if errors.As(err, &timeoutErr) {
			b.shots.Capture(ctx, "no_appointments_available", driver.Screenshot)
			return OutcomeNoSlot, nil
		}
		return OutcomeFailed, err
	}

	b.log.Info("submit control enabled, booking")
	b.shots.Capture(ctx, "appointment_available_submit_ready", driver.Screenshot)

	if err := driver.Click(ctx, browser.BookingSubmit); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to click booking submit: %w", err)
	}
	b.sleep(ctx, b.cfg.Delays.PostBooking)
	b.shots.Capture(ctx, "after_appointment_submission", driver.Screenshot)

	subject, body := notify.BookingConfirmation(b.user.Username)
	if err := b.notifier.Send(b.user.Email, subject, body); err != nil {
		b.log.Errorw("failed to send booking email", "error", err)
	}

	if err := b.store.UpdateStatus(b.user.ID, models.StatusBooked); err != nil {
		b.log.Errorw("failed to mark user booked", "error", err)
	}
	return OutcomeBooked, nil
}

func (b *Bot) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
