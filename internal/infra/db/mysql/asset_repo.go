package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// AssetRepository reads the media_assets catalog. Read-only.
type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const listDesc = `
SELECT public_id, created_at, secure_url
FROM media_assets
WHERE folder = ?
ORDER BY created_at DESC, public_id DESC
LIMIT ?;`

const listAsc = `
SELECT public_id, created_at, secure_url
FROM media_assets
WHERE folder = ?
ORDER BY created_at ASC, public_id ASC
LIMIT ?;`

// ListAssets implementasi AssetSource
func (r *AssetRepository) ListAssets(ctx context.Context, q domain.AssetQuery) ([]domain.RawAsset, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 300
	}
	query := listDesc
	if q.SortOrder == "asc" {
		query = listAsc
	}

	rows, err := r.db.QueryContext(ctx, query, normalizeFolder(q.Folder), limit)
	if err != nil {
		return nil, fmt.Errorf("querying media_assets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RawAsset, 0, limit)
	for rows.Next() {
		var a domain.RawAsset
		var created time.Time
		if err := rows.Scan(&a.Identifier, &created, &a.URL); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		a.CreatedAt = createdAtString(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// Check implements the health checker.
func (r *AssetRepository) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
