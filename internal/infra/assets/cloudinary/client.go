package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/infra/httpclient"
)

// maxPageSize is the Search API cap on max_results per request.
const maxPageSize = 500

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	Attempts  int
}

// Client queries the Cloudinary Search API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	return &Client{cfg: cfg, http: httpclient.New(cfg.Timeout)}
}

type searchRequest struct {
	Expression string              `json:"expression"`
	SortBy     []map[string]string `json:"sort_by"`
	MaxResults int                 `json:"max_results"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type searchResponse struct {
	TotalCount int               `json:"total_count"`
	Resources  []domain.RawAsset `json:"resources"`
	NextCursor string            `json:"next_cursor"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ListAssets implementasi AssetSource: folder:<folder>, sorted, capped at q.Limit.
func (c *Client) ListAssets(ctx context.Context, q domain.AssetQuery) ([]domain.RawAsset, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = maxPageSize
	}
	sortKey, sortOrder := q.SortKey, q.SortOrder
	if sortKey == "" {
		sortKey = domain.SortByCreatedAt
	}
	if sortOrder == "" {
		sortOrder = domain.SortDesc
	}

	out := make([]domain.RawAsset, 0, limit)
	cursor := ""
	for len(out) < limit {
		page := limit - len(out)
		if page > maxPageSize {
			page = maxPageSize
		}
		body := searchRequest{
			Expression: fmt.Sprintf("folder:%s", q.Folder),
			SortBy:     []map[string]string{{sortKey: sortOrder}},
			MaxResults: page,
			NextCursor: cursor,
		}

		var resp searchResponse
		err := httpclient.Retry(ctx, c.cfg.Attempts, 200*time.Millisecond, 2*time.Second, func() error {
			resp = searchResponse{}
			return c.do(ctx, http.MethodPost, "/resources/search", body, &resp)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Resources...)
		if resp.NextCursor == "" || len(resp.Resources) == 0 {
			break
		}
		cursor = resp.NextCursor
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Check pings the Admin API with the configured credentials.
func (c *Client) Check(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/ping", nil, &resp); err != nil {
		return httpclient.Cause(err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("cloudinary ping: unexpected status %q", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &httpclient.Permanent{Err: err}
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/v1_1/%s%s", c.cfg.BaseURL, c.cfg.CloudName, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &httpclient.Permanent{Err: err}
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("cloudinary %s %s: read body: %w", method, path, err)
	}

	if res.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(raw))
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			msg = ae.Error.Message
		}
		err := fmt.Errorf("cloudinary %s %s: status %d: %s", method, path, res.StatusCode, msg)
		// only rate limits and server errors are worth another attempt
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return err
		}
		return &httpclient.Permanent{Err: err}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &httpclient.Permanent{Err: fmt.Errorf("cloudinary %s %s: decode: %w", method, path, err)}
	}
	return nil
}
