package detections

import "context"

const (
	SortByCreatedAt = "created_at"
	SortDesc        = "desc"
)

// AssetQuery is the logical list request sent to an AssetSource.
type AssetQuery struct {
	Folder    string
	SortKey   string
	SortOrder string
	Limit     int
}

// NewAssetQuery builds the only query shape the dashboard issues: newest first, capped.
func NewAssetQuery(folder string, limit int) AssetQuery {
	return AssetQuery{
		Folder:    folder,
		SortKey:   SortByCreatedAt,
		SortOrder: SortDesc,
		Limit:     limit,
	}
}

// AssetSource port (interface untuk media storage / search index)
type AssetSource interface {
	ListAssets(ctx context.Context, q AssetQuery) ([]RawAsset, error)
}

// AssetSourceFunc adapts a plain function to AssetSource.
type AssetSourceFunc func(ctx context.Context, q AssetQuery) ([]RawAsset, error)

func (f AssetSourceFunc) ListAssets(ctx context.Context, q AssetQuery) ([]RawAsset, error) {
	return f(ctx, q)
}
