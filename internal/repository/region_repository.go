package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cheezious/it-support/internal/domain"
)

// RegionRepository manages operating regions.
type RegionRepository interface {
	Create(ctx context.Context, region *domain.Region) error
	GetByID(ctx context.Context, id string) (*domain.Region, error)
	GetByCode(ctx context.Context, code string) (*domain.Region, error)
	List(ctx context.Context) ([]domain.Region, error)
}

type regionRepository struct {
	pool *pgxpool.Pool
}

// NewRegionRepository builds repository.
func NewRegionRepository(pool *pgxpool.Pool) RegionRepository {
	return &regionRepository{pool: pool}
}

func (r *regionRepository) Create(ctx context.Context, region *domain.Region) error {
	const query = `
        INSERT INTO regions (code, name, is_active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		region.Code,
		region.Name,
		region.IsActive,
	).Scan(&region.ID, &region.CreatedAt, &region.UpdatedAt)
}

func (r *regionRepository) GetByID(ctx context.Context, id string) (*domain.Region, error) {
	const query = `
        SELECT id, code, name, is_active, created_at, updated_at
        FROM regions WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *regionRepository) GetByCode(ctx context.Context, code string) (*domain.Region, error) {
	const query = `
        SELECT id, code, name, is_active, created_at, updated_at
        FROM regions WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *regionRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Region, error) {
	var region domain.Region
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&region.ID,
		&region.Code,
		&region.Name,
		&region.IsActive,
		&region.CreatedAt,
		&region.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *regionRepository) List(ctx context.Context) ([]domain.Region, error) {
	const query = `
        SELECT id, code, name, is_active, created_at, updated_at
        FROM regions ORDER BY code ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Region
	for rows.Next() {
		var region domain.Region
		if err := rows.Scan(
			&region.ID,
			&region.Code,
			&region.Name,
			&region.IsActive,
			&region.CreatedAt,
			&region.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, region)
	}
	return result, rows.Err()
}
