// Package notify sends outbound email notifications. Delivery is best
// effort: a failed send is reported to the caller but never aborts a run.
package notify

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/visabot-io/visabot/internal/config"
)

// Notifier delivers a message to a single recipient.
type Notifier interface {
	Send(to, subject, body string) error
}

// EmailNotifier sends mail over SMTP with STARTTLS.
type EmailNotifier struct {
	host     string
	port     int
	from     string
	password string
	log      *zap.SugaredLogger

	// send is swapped in tests.
	send func(m *gomail.Message) error
}

// NewEmailNotifier builds a notifier from the service configuration.
func NewEmailNotifier(cfg *config.Config, log *zap.SugaredLogger) *EmailNotifier {
	n := &EmailNotifier{
		host:     cfg.SMTPServer,
		port:     cfg.SMTPPort,
		from:     cfg.FromEmail,
		password: cfg.EmailPassword,
		log:      log,
	}
	n.send = func(m *gomail.Message) error {
		dialer := gomail.NewDialer(n.host, n.port, n.from, n.password)
		return dialer.DialAndSend(m)
	}
	return n
}

// Send delivers a plain-text message.
func (n *EmailNotifier) Send(to, subject, body string) error {
	if n.from == "" || n.password == "" {
		n.log.Warn("email credentials not configured, skipping notification")
		return fmt.Errorf("email credentials not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.send(m); err != nil {
		n.log.Errorw("failed to send email", "to", to, "error", err)
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	n.log.Infow("email sent", "to", to, "subject", subject)
	return nil
}

// BookingConfirmation formats the message sent when an appointment is
// submitted.
func BookingConfirmation(username string) (subject, body string) {
	return "Visa Appointment Available!", fmt.Sprintf("An appointment slot is Booked for %s.", username)
}
