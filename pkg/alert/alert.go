// Package alert sends operational notifications, currently via SMTP. The
// embedding circuit breaker raises an alert whenever it changes state.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/trama/pkg/config"
)

// subjectPrefix tags outgoing mail so operators can filter on it.
const subjectPrefix = "[trama] "

// Alerter defines an interface for sending alerts.
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter implements Alerter using SMTP.
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter creates a new email alerter.
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert sends an email with the given subject and message. Disabled
// configuration makes this a silent no-op so callers never need to guard.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(a.cfg.To, ","))
	fmt.Fprintf(&msg, "Subject: %s%s\r\n", subjectPrefix, subject)
	fmt.Fprintf(&msg, "\r\n%s\r\n", message)

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	if err := smtp.SendMail(addr, auth, a.cfg.From, a.cfg.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled.
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
