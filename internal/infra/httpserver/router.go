package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appdetections "github.com/bryanwahyu/wildlife-dashboard/internal/application/detections"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/middleware"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Service  *appdetections.Service
	Sessions *middleware.SessionManager
	Limiter  *middleware.RateLimiter
	Metrics  *middleware.Metrics
	Checkers map[string]middleware.HealthChecker
	Logger   *slog.Logger

	CORSOrigins []string
	Columns     int
}

type Router struct {
	svc      *appdetections.Service
	sessions *middleware.SessionManager
	logger   *slog.Logger
	columns  int
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	columns := d.Columns
	if columns <= 0 {
		columns = 3
	}
	r := &Router{svc: d.Service, sessions: d.Sessions, logger: logger, columns: columns}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(d.Sessions.LoadSession)
	mux.Use(middleware.Logging(logger))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)

	mux.Group(func(rt chi.Router) {
		if d.Limiter != nil {
			rt.Use(d.Limiter.Middleware)
		}
		rt.Get("/login", r.wrap(r.handleLoginForm))
		rt.Post("/login", r.wrap(r.handleLogin))
	})
	mux.Post("/logout", r.handleLogout)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.RequireSession)
		rt.Get("/", r.wrap(r.handleDashboard))
	})

	mux.Route("/api/v1", func(rt chi.Router) {
		if len(d.CORSOrigins) > 0 {
			rt.Use(cors.Handler(cors.Options{
				AllowedOrigins:   d.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		rt.Use(middleware.RequireSession)
		rt.Get("/records", r.wrap(r.handleRecords))
		rt.Get("/stats", r.wrap(r.handleStats))
		rt.Get("/filters", r.wrap(r.handleFilters))
		rt.Post("/refresh", r.wrap(r.handleRefresh))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		switch {
		case errors.Is(err, middleware.ErrValidation):
			status, msg = http.StatusBadRequest, err.Error()
		case errors.Is(err, middleware.ErrInvalidCredentials):
			status, msg = http.StatusUnauthorized, "invalid credentials"
		case errors.Is(err, domain.ErrRemoteQuery):
			status, msg = http.StatusServiceUnavailable, "media source unavailable"
		default:
			r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		}
		if isAPI(req) {
			middleware.WriteError(w, status, msg)
			return
		}
		http.Error(w, msg, status)
	}
}

func isAPI(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, "/api/") ||
		strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
}

// GET /login
func (r *Router) handleLoginForm(w http.ResponseWriter, req *http.Request) error {
	if _, ok := middleware.SessionFromContext(req.Context()); ok {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return nil
	}
	return render(w, http.StatusOK, "login.html", loginPage{})
}

// POST /login
// Body: form fields username/password, or {"username": "...", "password": "..."}
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	asJSON := strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
	if asJSON {
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
			return &middleware.ValidationError{Field: "body", Message: "malformed JSON"}
		}
	} else {
		if err := req.ParseForm(); err != nil {
			return &middleware.ValidationError{Field: "body", Message: "malformed form"}
		}
		body.Username = req.PostForm.Get("username")
		body.Password = req.PostForm.Get("password")
	}

	sess, err := r.sessions.Login(w, body.Username, body.Password)
	if errors.Is(err, middleware.ErrInvalidCredentials) {
		r.logger.Warn("login failed", "username", body.Username, "ip", middleware.ClientIP(req))
		if asJSON {
			return err
		}
		return render(w, http.StatusUnauthorized, "login.html", loginPage{
			Username: body.Username,
			Error:    "Invalid credentials",
		})
	}
	if err != nil {
		return err
	}

	r.logger.Info("login", "username", sess.Username, "session", sess.ID)
	if asJSON {
		return middleware.WriteJSON(w, http.StatusOK, sess)
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
	return nil
}

// POST /logout
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if sess, ok := middleware.SessionFromContext(req.Context()); ok {
		r.logger.Info("logout", "username", sess.Username, "session", sess.ID)
	}
	r.sessions.Logout(w)
	http.Redirect(w, req, "/login", http.StatusSeeOther)
}

// GET /?category=&date=&page=&page_size=&refresh=1
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	params, err := middleware.ParseFilterParams(req.URL.Query(), r.svc.Categories)
	if err != nil {
		return err
	}
	view := r.svc.Dashboard(req.Context(), toQuery(params))
	sess, _ := middleware.SessionFromContext(req.Context())
	return render(w, http.StatusOK, "dashboard.html", newDashboardPage(view, sess, req.URL.Query(), r.columns))
}

// GET /api/v1/records?category=&date=&page=&page_size=
func (r *Router) handleRecords(w http.ResponseWriter, req *http.Request) error {
	params, err := middleware.ParseFilterParams(req.URL.Query(), r.svc.Categories)
	if err != nil {
		return err
	}
	view := r.svc.Dashboard(req.Context(), toQuery(params))

	resp := struct {
		domain.Page
		Selection   appdetections.Selection `json:"selection"`
		Warning     string                  `json:"warning,omitempty"`
		EmptyReason string                  `json:"empty_reason,omitempty"`
	}{
		Page:        view.Gallery,
		Selection:   view.Selection,
		Warning:     view.Warning,
		EmptyReason: view.EmptyReason,
	}
	return middleware.WriteJSON(w, http.StatusOK, resp)
}

// GET /api/v1/stats?scope=all|filtered
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	params, err := middleware.ParseFilterParams(req.URL.Query(), r.svc.Categories)
	if err != nil {
		return err
	}
	scope := req.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}
	if scope != "all" && scope != "filtered" {
		return &middleware.ValidationError{Field: "scope", Message: "must be all or filtered"}
	}

	view := r.svc.Dashboard(req.Context(), toQuery(params))
	stats, total := view.Stats, view.TotalRecords
	if scope == "filtered" {
		stats, total = view.FilteredStats, view.Matched
	}
	return middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"scope":   scope,
		"total":   total,
		"stats":   stats,
		"warning": view.Warning,
	})
}

// GET /api/v1/filters
func (r *Router) handleFilters(w http.ResponseWriter, req *http.Request) error {
	view := r.svc.Dashboard(req.Context(), appdetections.DashboardQuery{})
	return middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": view.Options.Categories,
		"dates":      view.Options.Dates,
		"configured": r.svc.Categories.Labels(),
		"warning":    view.Warning,
	})
}

// POST /api/v1/refresh
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) error {
	n, err := r.svc.Refresh(req.Context())
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, map[string]any{"assets": n})
}

func toQuery(p middleware.FilterParams) appdetections.DashboardQuery {
	return appdetections.DashboardQuery{
		Categories: p.Categories,
		Dates:      p.Dates,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Refresh:    p.Refresh,
	}
}
