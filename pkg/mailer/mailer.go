package mailer

import (
	"fmt"
	"net/smtp"

	"phonebook/internal/config"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending verification emails via SMTP.
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender.
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// NotifyVerification mails the verification link for the given token. It
// satisfies the auth flow's VerificationNotifier interface, so it can be
// wired directly when no message broker is configured.
func (s *Sender) NotifyVerification(to, token string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Email verification"

	link := fmt.Sprintf("%s/api/users/verify/%s", s.cfg.BaseURL, token)
	e.Text = []byte(fmt.Sprintf(
		"Please click the following link to verify your email: %s\n", link,
	))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send verification email to %s: %v", to, err)
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Infof("Verification email sent to %s", to)
	return nil
}
