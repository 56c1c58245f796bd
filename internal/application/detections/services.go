package detections

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

const (
	EmptyNoDetections   = "no_detections"
	EmptyFilteredToZero = "filtered_to_zero"

	skipUnrecognized       = "unrecognized"
	skipMalformedTimestamp = "malformed_timestamp"
)

// Service implements the dashboard use-cases: fetch → classify → filter → aggregate.
// Safe for concurrent use; all per-request state lives in the returned view.
type Service struct {
	Cache      *RecordCache
	Categories domain.CategoryMap
	PageSize   int
	Logger     *slog.Logger
	Metrics    Recorder
}

// DashboardQuery is the filter selection for one render.
// A nil Categories selects every category present; an empty non-nil one selects none.
type DashboardQuery struct {
	Categories []string
	Dates      []domain.Date
	Page       int
	PageSize   int
	Refresh    bool
}

// Selection echoes the selection that was actually applied.
type Selection struct {
	Categories []string      `json:"categories"`
	Dates      []domain.Date `json:"dates"`
}

// DashboardView is everything the presentation layer renders.
type DashboardView struct {
	TotalRecords  int                    `json:"total_records"`
	Stats         []domain.CategoryCount `json:"stats"`
	FilteredStats []domain.CategoryCount `json:"filtered_stats"`
	Options       domain.Options         `json:"options"`
	Selection     Selection              `json:"selection"`
	Gallery       domain.Page            `json:"gallery"`
	Matched       int                    `json:"matched"`
	Unrecognized  int                    `json:"unrecognized"`
	Skipped       []domain.Skipped       `json:"skipped,omitempty"`
	Warning       string                 `json:"warning,omitempty"`
	EmptyReason   string                 `json:"empty_reason,omitempty"`
}

// Records fetches (through the cache) and classifies the listing. A remote
// failure is reported as a warning next to an empty classification.
func (s *Service) Records(ctx context.Context, refresh bool) (domain.Classification, string) {
	assets, err := s.Cache.Get(ctx, refresh)
	warning := ""
	if err != nil {
		warning = remoteWarning(err)
	}

	res := domain.ClassifyAll(assets, s.Categories)
	s.recorder().RecordsClassified(len(res.Records))
	if res.Unrecognized > 0 {
		s.recorder().ClassificationSkipped(skipUnrecognized, res.Unrecognized)
	}
	if len(res.Skipped) > 0 {
		s.recorder().ClassificationSkipped(skipMalformedTimestamp, len(res.Skipped))
		for _, sk := range res.Skipped {
			s.logger().Debug("asset skipped", "public_id", sk.Identifier, "reason", sk.Reason)
		}
	}
	s.logger().Info("records classified",
		"assets", len(assets),
		"records", len(res.Records),
		"unrecognized", res.Unrecognized,
		"skipped", len(res.Skipped),
	)
	return res, warning
}

// Dashboard builds the full view for one render cycle.
func (s *Service) Dashboard(ctx context.Context, q DashboardQuery) *DashboardView {
	res, warning := s.Records(ctx, q.Refresh)
	records := res.Records
	opts := domain.FilterOptions(records)

	categories := q.Categories
	if categories == nil {
		categories = opts.Categories
	}
	dates := q.Dates
	if dates == nil {
		dates = []domain.Date{}
	}

	filtered := domain.Filter(records, categories, dates)

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = s.PageSize
	}

	view := &DashboardView{
		TotalRecords:  len(records),
		Stats:         domain.Aggregate(records),
		FilteredStats: domain.Aggregate(filtered),
		Options:       opts,
		Selection:     Selection{Categories: categories, Dates: dates},
		Gallery:       domain.Paginate(filtered, q.Page, pageSize),
		Matched:       len(filtered),
		Unrecognized:  res.Unrecognized,
		Skipped:       res.Skipped,
		Warning:       warning,
	}
	switch {
	case len(records) == 0:
		view.EmptyReason = EmptyNoDetections
	case len(filtered) == 0:
		view.EmptyReason = EmptyFilteredToZero
	}
	return view
}

// Refresh queries the source again regardless of freshness. A failed query
// leaves the stored listing in place.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	assets, err := s.Cache.Get(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(assets), nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) recorder() Recorder {
	if s.Metrics == nil {
		return nopRecorder{}
	}
	return s.Metrics
}

func remoteWarning(err error) string {
	if errors.Is(err, domain.ErrRemoteQuery) {
		return "Error loading images: the media source could not be reached."
	}
	return "Error loading images."
}
