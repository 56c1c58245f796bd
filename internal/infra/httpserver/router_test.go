package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/wildlife-dashboard/internal/application"
	appdetections "github.com/bryanwahyu/wildlife-dashboard/internal/application/detections"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/middleware"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var assets = []domain.RawAsset{
	{Identifier: "railway_wildlife/elephant_1", CreatedAt: "2024-01-05T10:00:00Z", URL: "https://img/e1.jpg"},
	{Identifier: "railway_wildlife/cow_1", CreatedAt: "2024-01-03T09:30:15Z", URL: "https://img/c1.jpg"},
	{Identifier: "railway_wildlife/elephant_2", CreatedAt: "2024-01-01T08:00:00Z", URL: "https://img/e2.jpg"},
	{Identifier: "railway_wildlife/person_1", CreatedAt: "2024-01-01T08:00:00Z", URL: "https://img/p1.jpg"},
}

type testServer struct {
	handler  http.Handler
	sessions *middleware.SessionManager
	fail     bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	src := domain.AssetSourceFunc(func(context.Context, domain.AssetQuery) ([]domain.RawAsset, error) {
		if ts.fail {
			return nil, errors.New("upstream down")
		}
		return assets, nil
	})
	svc := &appdetections.Service{
		Cache: appdetections.NewRecordCache(src,
			appdetections.CacheConfig{Folder: "railway_wildlife", Limit: 300, TTL: 30 * time.Second},
			appdetections.WithClock(application.NewManualClock(time.Now())),
			appdetections.WithLogger(quiet),
		),
		Categories: domain.DefaultCategories(),
		PageSize:   2,
		Logger:     quiet,
	}
	sessions, err := middleware.NewSessionManager("ranger", "s3cret", []byte("k"), time.Hour)
	require.NoError(t, err)
	limiter := middleware.NewRateLimiter(100)
	t.Cleanup(limiter.Stop)

	ts.sessions = sessions
	ts.handler = NewRouter(Deps{
		Service:     svc,
		Sessions:    sessions,
		Limiter:     limiter,
		Metrics:     middleware.NewMetrics(),
		Logger:      quiet,
		CORSOrigins: []string{"https://ops.example"},
	})
	return ts
}

func (ts *testServer) cookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := ts.sessions.Issue("ranger")
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookie, Value: token}
}

func (ts *testServer) get(t *testing.T, target string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authed {
		req.AddCookie(ts.cookie(t))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestDashboardRequiresLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/", false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = ts.get(t, "/api/v1/records", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/login", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Secure Login")

	form := url.Values{"username": {"ranger"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")

	form.Set("password", "s3cret")
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged in as: ranger")
}

func TestJSONLogin(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"ranger","password":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"ranger","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"ranger"`)
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(ts.cookie(t))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestDashboardRendersGallery(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/?category=Cow&filtered=1", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Detection History (1)")
	assert.Contains(t, body, "https://img/c1.jpg")
	assert.Contains(t, body, "09:30:15")
	assert.NotContains(t, body, "https://img/e1.jpg")
	assert.NotContains(t, body, "https://img/p1.jpg")

	rec = ts.get(t, "/?filtered=1", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Detection History (0)")
	assert.Contains(t, rec.Body.String(), "No detections match")
}

func TestDashboardRejectsBadQuery(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, "/?date=yesterday", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardRemoteFailureShowsWarning(t *testing.T) {
	ts := newTestServer(t)
	ts.fail = true
	rec := ts.get(t, "/", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error loading images")
	assert.Contains(t, rec.Body.String(), "No detections found")
}

func TestAPIRecords(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/api/v1/records?date=2024-01-01&date=2024-01-03&page=1&page_size=10", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Category string `json:"category"`
			URL      string `json:"url"`
		} `json:"data"`
		Total      int `json:"totalItems"`
		TotalPages int `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "https://img/c1.jpg", resp.Data[0].URL)
	assert.Equal(t, "https://img/e2.jpg", resp.Data[1].URL)

	rec = ts.get(t, "/api/v1/records?category=Lion", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIStats(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/api/v1/stats", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Scope string                 `json:"scope"`
		Total int                    `json:"total"`
		Stats []domain.CategoryCount `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "all", resp.Scope)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []domain.CategoryCount{{Category: "Elephant", Count: 2}, {Category: "Cow", Count: 1}}, resp.Stats)

	rec = ts.get(t, "/api/v1/stats?scope=filtered&category=Cow", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, []domain.CategoryCount{{Category: "Cow", Count: 1}}, resp.Stats)

	rec = ts.get(t, "/api/v1/stats?scope=weekly", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIFiltersAndRefresh(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/api/v1/filters", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"categories":["Cow","Elephant"]`)
	assert.Contains(t, rec.Body.String(), `"2024-01-01"`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	req.AddCookie(ts.cookie(t))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assets":4`)

	ts.fail = true
	req = httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	req.AddCookie(ts.cookie(t))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.get(t, "/health", false).Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/ready", false).Code)
	assert.Equal(t, "ok", ts.get(t, "/live", false).Body.String())

	ts.get(t, "/live", false)
	rec := ts.get(t, "/metrics", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wildlife_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/records", nil)
	req.Header.Set("Origin", "https://ops.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
