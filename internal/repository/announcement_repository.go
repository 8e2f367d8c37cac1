package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cheezious/it-support/internal/domain"
)

// AnnouncementRepository persists canonical announcement records and their
// read-receipt state. Read tracking is centralized on the canonical row: the
// read_by column is mutated only through set-union updates guarded by
// recipient membership, so read_by stays a subset of recipient_uids and
// repeated marks are no-ops.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *domain.Announcement) error
	GetByID(ctx context.Context, id string) (*domain.Announcement, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Announcement, error)
	// ListForRecipient returns announcements whose frozen recipient snapshot
	// contains uid and whose active window covers now.
	ListForRecipient(ctx context.Context, uid string, now time.Time, limit, offset int) ([]domain.Announcement, error)
	ListUnreadIDsForRecipient(ctx context.Context, uid string, now time.Time) ([]string, error)
	CountUnreadForRecipient(ctx context.Context, uid string, now time.Time) (int, error)
	// MarkRead unions uid into read_by. Returns false when the update was a
	// no-op (already read, or uid not in the recipient snapshot).
	MarkRead(ctx context.Context, announcementID, uid string) (bool, error)
	// MarkReadBatch issues one union update per announcement id in a single
	// batch. Callers pass only ids known to be unread to avoid wasted writes.
	MarkReadBatch(ctx context.Context, uid string, announcementIDs []string) error
	// Delete removes the canonical record and its notification stubs in one
	// transaction.
	Delete(ctx context.Context, id string) error
}

type announcementRepository struct {
	pool *pgxpool.Pool
}

// NewAnnouncementRepository builds repository.
func NewAnnouncementRepository(pool *pgxpool.Pool) AnnouncementRepository {
	return &announcementRepository{pool: pool}
}

const announcementColumns = `id, title, message, created_by_uid, created_by_display_name,
               start_date, end_date, target, recipient_uids, recipient_count, read_by, created_at`

func (r *announcementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	const query = `
        INSERT INTO announcements (title, message, created_by_uid, created_by_display_name, start_date, end_date, target, recipient_uids, recipient_count, read_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'{}')
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		a.Title,
		a.Message,
		a.CreatedByUID,
		a.CreatedByDisplayName,
		a.StartDate,
		a.EndDate,
		a.Target,
		a.RecipientUIDs,
		a.RecipientCount,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *announcementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE id=$1`
	var a domain.Announcement
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Title,
		&a.Message,
		&a.CreatedByUID,
		&a.CreatedByDisplayName,
		&a.StartDate,
		&a.EndDate,
		&a.Target,
		&a.RecipientUIDs,
		&a.RecipientCount,
		&a.ReadBy,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *announcementRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + announcementColumns + ` FROM announcements ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnouncements(rows)
}

func (r *announcementRepository) ListForRecipient(ctx context.Context, uid string, now time.Time, limit, offset int) ([]domain.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + announcementColumns + `
        FROM announcements
        WHERE recipient_uids @> ARRAY[$1]::text[]
          AND (start_date IS NULL OR start_date <= $2)
          AND (end_date IS NULL OR end_date >= $2)
        ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, uid, now, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnouncements(rows)
}

func (r *announcementRepository) ListUnreadIDsForRecipient(ctx context.Context, uid string, now time.Time) ([]string, error) {
	const query = `
        SELECT id FROM announcements
        WHERE recipient_uids @> ARRAY[$1]::text[]
          AND NOT (read_by @> ARRAY[$1]::text[])
          AND (start_date IS NULL OR start_date <= $2)
          AND (end_date IS NULL OR end_date >= $2)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, uid, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *announcementRepository) CountUnreadForRecipient(ctx context.Context, uid string, now time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM announcements
        WHERE recipient_uids @> ARRAY[$1]::text[]
          AND NOT (read_by @> ARRAY[$1]::text[])
          AND (start_date IS NULL OR start_date <= $2)
          AND (end_date IS NULL OR end_date >= $2)`
	var count int
	if err := r.pool.QueryRow(ctx, query, uid, now).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const markReadQuery = `
        UPDATE announcements SET read_by = array_append(read_by, $2)
        WHERE id=$1
          AND recipient_uids @> ARRAY[$2]::text[]
          AND NOT (read_by @> ARRAY[$2]::text[])`

func (r *announcementRepository) MarkRead(ctx context.Context, announcementID, uid string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, markReadQuery, announcementID, uid)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *announcementRepository) MarkReadBatch(ctx context.Context, uid string, announcementIDs []string) error {
	if len(announcementIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range announcementIDs {
		batch.Queue(markReadQuery, id, uid)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range announcementIDs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func (r *announcementRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM notification_stubs WHERE announcement_id=$1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM announcements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func scanAnnouncements(rows pgx.Rows) ([]domain.Announcement, error) {
	var result []domain.Announcement
	for rows.Next() {
		var a domain.Announcement
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Message,
			&a.CreatedByUID,
			&a.CreatedByDisplayName,
			&a.StartDate,
			&a.EndDate,
			&a.Target,
			&a.RecipientUIDs,
			&a.RecipientCount,
			&a.ReadBy,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
