package notify

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jotalevi/TheFirm/internal/config"
	"github.com/jotalevi/TheFirm/internal/logger"
)

// Dispatcher sends post-commit purchase confirmations. Implementations
// are best-effort: a failed send is logged by the caller and never
// affects the order.
type Dispatcher interface {
	SendTicketConfirmation(to, userName, eventName, tierName string, eventDate time.Time) error
}

// Mailer is the SMTP Dispatcher.
type Mailer struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		logger: log,
	}
}

func (m *Mailer) SendTicketConfirmation(to, userName, eventName, tierName string, eventDate time.Time) error {
	// Without credentials (local/dev runs) we skip the send instead of
	// erroring on every order.
	if m.cfg.SMTPUsername == "" || m.cfg.SMTPPassword == "" {
		m.logger.Warn("MAIL", "SMTP credentials not configured, skipping confirmation email")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your Ticket for %s", eventName))
	msg.SetBody("text/html", confirmationBody(userName, eventName, tierName, eventDate))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send confirmation email to %s: %w", to, err)
	}

	m.logger.LogMail(to, fmt.Sprintf("confirmation sent for event %q", eventName))
	return nil
}

func confirmationBody(userName, eventName, tierName string, eventDate time.Time) string {
	return fmt.Sprintf(`
		<html>
		<body>
			<h2>Ticket Confirmation</h2>
			<p>Hello %s,</p>
			<p>Thank you for your purchase! Your ticket for <strong>%s</strong> has been confirmed.</p>
			<ul>
				<li>Event: %s</li>
				<li>Ticket Type: %s</li>
				<li>Date: %s</li>
				<li>Time: %s</li>
			</ul>
			<p>Please keep this email as your receipt. You will receive your ticket closer to the event date.</p>
			<p>Best regards,<br>The Firm Team</p>
		</body>
		</html>`,
		userName, eventName, eventName, tierName,
		eventDate.Format("Monday, 02 January 2006"),
		eventDate.Format("03:04 PM"),
	)
}
