package detections

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/wildlife-dashboard/internal/application"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

type recorderSpy struct {
	skipped    map[string]int
	classified int
	cache      []string
	fetch      []string
}

func (r *recorderSpy) CacheResult(result string)   { r.cache = append(r.cache, result) }
func (r *recorderSpy) FetchOutcome(outcome string) { r.fetch = append(r.fetch, outcome) }
func (r *recorderSpy) ClassificationSkipped(reason string, n int) {
	if r.skipped == nil {
		r.skipped = map[string]int{}
	}
	r.skipped[reason] += n
}
func (r *recorderSpy) RecordsClassified(n int) { r.classified = n }

func staticSource(assets ...domain.RawAsset) domain.AssetSource {
	return domain.AssetSourceFunc(func(context.Context, domain.AssetQuery) ([]domain.RawAsset, error) {
		return assets, nil
	})
}

func newService(src domain.AssetSource, rec Recorder) *Service {
	return &Service{
		Cache: NewRecordCache(src, CacheConfig{Folder: "railway_wildlife", Limit: 300, TTL: 30 * time.Second},
			WithClock(application.NewManualClock(time.Now())), WithLogger(quietLogger), WithRecorder(rec)),
		Categories: domain.DefaultCategories(),
		PageSize:   2,
		Logger:     quietLogger,
		Metrics:    rec,
	}
}

var sampleAssets = []domain.RawAsset{
	{Identifier: "railway_wildlife/elephant_1", CreatedAt: "2024-01-05T10:00:00Z", URL: "e1"},
	{Identifier: "railway_wildlife/cow_1", CreatedAt: "2024-01-03T09:00:00Z", URL: "c1"},
	{Identifier: "railway_wildlife/elephant_2", CreatedAt: "2024-01-01T08:00:00Z", URL: "e2"},
	{Identifier: "railway_wildlife/person_1", CreatedAt: "2024-01-01T08:00:00Z", URL: "p1"},
	{Identifier: "railway_wildlife/deer_1", CreatedAt: "garbage", URL: "d1"},
}

func date(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDashboardDefaultsToAllCategories(t *testing.T) {
	spy := &recorderSpy{}
	svc := newService(staticSource(sampleAssets...), spy)

	view := svc.Dashboard(context.Background(), DashboardQuery{Page: 1})

	assert.Equal(t, 3, view.TotalRecords)
	assert.Equal(t, 3, view.Matched)
	assert.Equal(t, []string{"Cow", "Elephant"}, view.Selection.Categories)
	assert.Equal(t, []domain.CategoryCount{{Category: "Elephant", Count: 2}, {Category: "Cow", Count: 1}}, view.Stats)
	assert.Equal(t, 1, view.Unrecognized)
	require.Len(t, view.Skipped, 1)
	assert.Empty(t, view.Warning)
	assert.Empty(t, view.EmptyReason)

	assert.Equal(t, 2, view.Gallery.TotalPages)
	require.Len(t, view.Gallery.Data, 2)
	assert.Equal(t, "e1", view.Gallery.Data[0].URL)

	assert.Equal(t, 3, spy.classified)
	assert.Equal(t, map[string]int{"unrecognized": 1, "malformed_timestamp": 1}, spy.skipped)
}

func TestDashboardExplicitEmptySelection(t *testing.T) {
	svc := newService(staticSource(sampleAssets...), nil)

	view := svc.Dashboard(context.Background(), DashboardQuery{Categories: []string{}})

	assert.Equal(t, 0, view.Matched)
	assert.Equal(t, EmptyFilteredToZero, view.EmptyReason)
	assert.Len(t, view.Stats, 2, "statistics cover the full record set")
	assert.Empty(t, view.FilteredStats)
}

func TestDashboardDateRange(t *testing.T) {
	svc := newService(staticSource(sampleAssets...), nil)

	view := svc.Dashboard(context.Background(), DashboardQuery{
		Categories: []string{"Elephant", "Cow"},
		Dates:      []domain.Date{date("2024-01-01"), date("2024-01-04")},
		PageSize:   10,
	})

	require.Equal(t, 2, view.Matched)
	assert.Equal(t, "c1", view.Gallery.Data[0].URL)
	assert.Equal(t, "e2", view.Gallery.Data[1].URL)
	assert.Equal(t, []domain.CategoryCount{{Category: "Cow", Count: 1}, {Category: "Elephant", Count: 1}}, view.FilteredStats)
}

func TestDashboardRemoteFailureIsEmptyState(t *testing.T) {
	src := domain.AssetSourceFunc(func(context.Context, domain.AssetQuery) ([]domain.RawAsset, error) {
		return nil, errors.New("401 unauthorized")
	})
	svc := newService(src, nil)

	view := svc.Dashboard(context.Background(), DashboardQuery{})

	assert.NotEmpty(t, view.Warning)
	assert.Equal(t, EmptyNoDetections, view.EmptyReason)
	assert.Equal(t, 0, view.TotalRecords)
	assert.Empty(t, view.Gallery.Data)
}

func TestRefreshQueriesAgain(t *testing.T) {
	calls := 0
	src := domain.AssetSourceFunc(func(context.Context, domain.AssetQuery) ([]domain.RawAsset, error) {
		calls++
		return sampleAssets, nil
	})
	svc := newService(src, nil)

	svc.Dashboard(context.Background(), DashboardQuery{})
	svc.Dashboard(context.Background(), DashboardQuery{})
	n, err := svc.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, len(sampleAssets), n)
	assert.Equal(t, 2, calls)
}

func TestFailedRefreshKeepsSnapshot(t *testing.T) {
	calls := 0
	fail := false
	src := domain.AssetSourceFunc(func(context.Context, domain.AssetQuery) ([]domain.RawAsset, error) {
		calls++
		if fail {
			return nil, errors.New("503 service unavailable")
		}
		return sampleAssets, nil
	})
	svc := newService(src, nil)
	ctx := context.Background()

	primed := svc.Dashboard(ctx, DashboardQuery{})
	require.NotZero(t, primed.TotalRecords)

	fail = true
	_, err := svc.Refresh(ctx)
	require.ErrorIs(t, err, domain.ErrRemoteQuery)

	_, ok, err := svc.Cache.store.Load(ctx, svc.Cache.Key())
	require.NoError(t, err)
	assert.True(t, ok, "snapshot must survive a failed refresh")

	view := svc.Dashboard(ctx, DashboardQuery{})
	assert.Equal(t, primed.TotalRecords, view.TotalRecords)
	assert.Empty(t, view.Warning)
	assert.Equal(t, 2, calls)
}
