package browser

// CSS selectors for the scheduling site. These are environment constants, not
// logic; they change whenever the site ships a new layout.
const (
	SignInInput       = "#signInName"
	PasswordInput     = "#password"
	CaptchaImage      = "#captchaImage"
	CaptchaInput      = "#extension_atlasCaptchaResponse"
	CaptchaRefresh    = "#refreshCaptcha"
	CaptchaError      = "#claimVerificationServerError"
	LoginSubmit       = "#continue"
	SecurityAnswers   = "input[type='password'].form-control"
	SecurityQuestions = "label.control-label"
	SecuritySubmit    = "#continue"
	RescheduleLink    = "#reschedule_appointment"
	ConsularDropdown  = "select.select.form-control"
	BookingSubmit     = "#submitbtn"
	BookingSubmitFree = "#submitbtn:not([disabled])"
)
