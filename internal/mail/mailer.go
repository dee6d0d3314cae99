// Package mail is the out-of-band delivery boundary. The auth core only ever
// sees the Sender interface; real SMTP delivery lives in the deployment
// environment behind it.
package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sender delivers account mail. Implementations must never persist or re-log
// the secrets they carry.
type Sender interface {
	SendVerification(ctx context.Context, email, token string) error
	SendLoginCode(ctx context.Context, email, code string) error
}

// DevSender logs outbound mail instead of delivering it. The verification link
// and login code appear in the log on purpose: it replaces a mailbox during
// local development.
type DevSender struct {
	log             *zap.Logger
	frontendBaseURL string
}

// NewDevSender creates a log-only sender.
func NewDevSender(log *zap.Logger, frontendBaseURL string) *DevSender {
	return &DevSender{log: log, frontendBaseURL: frontendBaseURL}
}

func (s *DevSender) SendVerification(ctx context.Context, email, token string) error {
	s.log.Info("verification email",
		zap.String("to", maskEmail(email)),
		zap.String("link", fmt.Sprintf("%s/verify-email?token=%s", s.frontendBaseURL, token)),
	)
	return nil
}

func (s *DevSender) SendLoginCode(ctx context.Context, email, code string) error {
	s.log.Info("login code email",
		zap.String("to", maskEmail(email)),
		zap.String("code", code),
	)
	return nil
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
