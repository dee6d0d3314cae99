package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

// Service persists notifications and fans them out over the hub. It implements
// auth.Notifier; delivery problems are logged and swallowed so they can never
// fail the flows that raise them.
type Service struct {
	notifications repo.NotificationRepo
	hub           *Hub
	log           *zap.Logger
}

// NewService creates a notification service.
func NewService(notifications repo.NotificationRepo, hub *Hub, log *zap.Logger) *Service {
	return &Service{notifications: notifications, hub: hub, log: log}
}

// LoginSucceeded records a login event on the account's feed and pushes it to
// live connections.
func (s *Service) LoginSucceeded(ctx context.Context, accountID uuid.UUID, ip, userAgent string) {
	payload, err := json.Marshal(map[string]string{
		"ip":         ip,
		"user_agent": userAgent,
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Error("encode login notification", zap.Error(err))
		return
	}

	n, err := s.notifications.Create(ctx, model.Notification{
		AccountID: accountID,
		Kind:      "login",
		Payload:   string(payload),
	})
	if err != nil {
		s.log.Error("store login notification", zap.Error(err))
		return
	}
	s.hub.Publish(accountID, Event{Name: n.Kind, Data: json.RawMessage(n.Payload)})
}

// List returns the account's most recent notifications.
func (s *Service) List(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Notification, error) {
	return s.notifications.ListForAccount(ctx, accountID, limit)
}

// MarkRead stamps one of the account's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, accountID uuid.UUID) error {
	return s.notifications.MarkRead(ctx, id, accountID, time.Now())
}

// Subscribe opens a live event stream for the account.
func (s *Service) Subscribe(accountID uuid.UUID) (<-chan Event, func()) {
	return s.hub.Subscribe(accountID)
}
