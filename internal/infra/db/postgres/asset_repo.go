package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

type AssetRepository struct{ db *sql.DB }

func NewAssetRepository(db *sql.DB) *AssetRepository { return &AssetRepository{db: db} }

// ListAssets implementasi AssetSource, newest first by default
func (r *AssetRepository) ListAssets(ctx context.Context, q domain.AssetQuery) ([]domain.RawAsset, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 300
	}

	order := "DESC"
	if q.SortOrder == "asc" {
		order = "ASC"
	}
	query := fmt.Sprintf(`
SELECT public_id, created_at, secure_url
FROM media_assets
WHERE folder = $1
ORDER BY created_at %[1]s, public_id %[1]s
LIMIT $2;`, order)

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
	return out, rows.Err()
}

func (r *AssetRepository) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
