package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cheezious/it-support/internal/domain"
)

// NotificationStubRepository persists per-recipient fan-out artifacts.
type NotificationStubRepository interface {
	// CreateBatch inserts all stubs atomically: one transaction around a
	// single batch, all-or-nothing. The (announcement_id, recipient_uid)
	// unique key plus ON CONFLICT DO NOTHING makes re-fan-out idempotent.
	CreateBatch(ctx context.Context, stubs []domain.NotificationStub) error
	ListByRecipient(ctx context.Context, uid string, limit, offset int) ([]domain.NotificationStub, error)
	CountByAnnouncement(ctx context.Context, announcementID string) (int, error)
}

type notificationStubRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationStubRepository builds repository.
func NewNotificationStubRepository(pool *pgxpool.Pool) NotificationStubRepository {
	return &notificationStubRepository{pool: pool}
}

func (r *notificationStubRepository) CreateBatch(ctx context.Context, stubs []domain.NotificationStub) error {
	if len(stubs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO notification_stubs (announcement_id, recipient_uid, title, message)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (announcement_id, recipient_uid) DO NOTHING`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, stub := range stubs {
		batch.Queue(query, stub.AnnouncementID, stub.RecipientUID, stub.Title, stub.Message)
	}
	results := tx.SendBatch(ctx, batch)
	for range stubs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *notificationStubRepository) ListByRecipient(ctx context.Context, uid string, limit, offset int) ([]domain.NotificationStub, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, announcement_id, recipient_uid, title, message, created_at
        FROM notification_stubs WHERE recipient_uid=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, uid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NotificationStub
	for rows.Next() {
		var stub domain.NotificationStub
		if err := rows.Scan(
			&stub.ID,
			&stub.AnnouncementID,
			&stub.RecipientUID,
			&stub.Title,
			&stub.Message,
			&stub.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, stub)
	}
	return result, rows.Err()
}

func (r *notificationStubRepository) CountByAnnouncement(ctx context.Context, announcementID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notification_stubs WHERE announcement_id=$1`
	var count int
	if err := r.pool.QueryRow(ctx, query, announcementID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
