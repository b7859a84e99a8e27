// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/logger"
)

// Mailer sends templated application email through an SMTP relay. A Mailer
// built without an SMTP host is disabled: sends fail with
// ErrMailNotConfigured instead of dialing.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New creates a Mailer. host may be empty to disable email delivery.
func New(host string, port int, username, password, from string) *Mailer {
	m := &Mailer{from: from}
	if host != "" {
		m.dialer = gomail.NewDialer(host, port, username, password)
	}
	return m
}

// Enabled reports whether SMTP delivery is configured.
func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

// SendWelcome sends the signup welcome email.
func (m *Mailer) SendWelcome(email, name, intro string) error {
	if name == "" {
		name = "there"
	}
	if intro == "" {
		intro = "Thanks for joining Dexbit."
	}

	html := strings.NewReplacer(
		"{{name}}", name,
		"{{intro}}", intro,
		"{{dashboardUrl}}", "https://dexbit.app/",
	).Replace(welcomeTemplate)

	return m.send(email,
		"Welcome to Dexbit - your trading toolkit is ready!",
		"Thanks for joining Dexbit",
		html,
	)
}

// SendNewsSummary sends the daily market news digest.
func (m *Mailer) SendNewsSummary(email, date, newsContent string) error {
	html := strings.NewReplacer(
		"{{date}}", date,
		"{{newsContent}}", newsContent,
	).Replace(newsSummaryTemplate)

	return m.send(email,
		fmt.Sprintf("Market News Summary Today - %s", date),
		"Today's market news summary from Dexbit",
		html,
	)
}

func (m *Mailer) send(to, subject, textBody, htmlBody string) error {
	if m.dialer == nil {
		return apperrors.ErrMailNotConfigured
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logger.Get().Errorw("failed to send email", "to", to, "subject", subject, "error", err)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("email sent", "to", to, "subject", subject)
	return nil
}
