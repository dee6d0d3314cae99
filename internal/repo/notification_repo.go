package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easylink/server/internal/model"
)

// NotificationRepo defines notification feed storage.
type NotificationRepo interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Notification, error)
	// MarkRead stamps read_at for the account's own notification. ErrNotFound if
	// the id does not exist or belongs to another account.
	MarkRead(ctx context.Context, id, accountID uuid.UUID, now time.Time) error
}

type notificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo creates a Postgres-backed NotificationRepo.
func NewNotificationRepo(db *sql.DB) NotificationRepo {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (account_id, kind, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, n.AccountID, n.Kind, n.Payload).Scan(&idStr, &n.CreatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Notification{}, fmt.Errorf("parse notification ID: %w", err)
	}
	return n, nil
}

func (r *notificationRepo) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, kind, payload, read_at, created_at
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var idStr, accountIDStr string
		if err := rows.Scan(&idStr, &accountIDStr, &n.Kind, &n.Payload, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID, _ = uuid.Parse(idStr)
		n.AccountID, _ = uuid.Parse(accountIDStr)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, accountID uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = $3
		WHERE id = $1 AND account_id = $2 AND read_at IS NULL
	`, id, accountID, now)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
