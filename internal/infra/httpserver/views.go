package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	appdetections "github.com/bryanwahyu/wildlife-dashboard/internal/application/detections"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
	"github.com/bryanwahyu/wildlife-dashboard/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// render executes into a buffer first so a template error never leaves a half-written page.
func render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

type loginPage struct {
	Username string
	Error    string
}

type bar struct {
	Category string
	Count    int
	Percent  int
}

type choice struct {
	Value    string
	Selected bool
}

type galleryItem struct {
	Category string
	Date     string
	Time     string
	URL      string
}

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

type dashboardPage struct {
	User         string
	Warning      string
	EmptyReason  string
	TotalRecords int
	Matched      int
	Unrecognized int
	Skipped      int
	Bars         []bar
	Categories   []choice
	Dates        []choice
	Items        []galleryItem
	Columns      int
	Pages        []pageLink
	PrevURL      string
	NextURL      string
	RefreshURL   string
}

func newDashboardPage(v *appdetections.DashboardView, sess *middleware.Session, q url.Values, columns int) dashboardPage {
	p := dashboardPage{
		Warning:      v.Warning,
		EmptyReason:  v.EmptyReason,
		TotalRecords: v.TotalRecords,
		Matched:      v.Matched,
		Unrecognized: v.Unrecognized,
		Skipped:      len(v.Skipped),
		Columns:      columns,
		RefreshURL:   withParam(q, "refresh", "1"),
	}
	if sess != nil {
		p.User = sess.Username
	}

	maxCount := 0
	for _, s := range v.Stats {
		if s.Count > maxCount {
			maxCount = s.Count
		}
	}
	for _, s := range v.Stats {
		p.Bars = append(p.Bars, bar{Category: s.Category, Count: s.Count, Percent: s.Count * 100 / maxCount})
	}

	selectedCats := make(map[string]bool, len(v.Selection.Categories))
	for _, c := range v.Selection.Categories {
		selectedCats[c] = true
	}
	for _, c := range v.Options.Categories {
		p.Categories = append(p.Categories, choice{Value: c, Selected: selectedCats[c]})
	}
	selectedDates := make(map[domain.Date]bool, len(v.Selection.Dates))
	for _, d := range v.Selection.Dates {
		selectedDates[d] = true
	}
	for _, d := range v.Options.Dates {
		p.Dates = append(p.Dates, choice{Value: d.String(), Selected: selectedDates[d]})
	}

	for _, r := range v.Gallery.Data {
		p.Items = append(p.Items, galleryItem{
			Category: r.Category,
			Date:     r.Timestamp.Format("2006-01-02"),
			Time:     r.Timestamp.Format("15:04:05"),
			URL:      r.URL,
		})
	}

	g := v.Gallery
	if g.TotalPages > 1 {
		for n := 1; n <= g.TotalPages; n++ {
			p.Pages = append(p.Pages, pageLink{Number: n, URL: withParam(q, "page", strconv.Itoa(n)), Current: n == g.Page})
		}
		if g.Page > 1 {
			p.PrevURL = withParam(q, "page", strconv.Itoa(g.Page-1))
		}
		if g.Page < g.TotalPages {
			p.NextURL = withParam(q, "page", strconv.Itoa(g.Page+1))
		}
	}
	return p
}

// withParam returns "?<q with key=value>", dropping refresh so links never re-trigger it.
func withParam(q url.Values, key, value string) string {
	out := make(url.Values, len(q)+1)
	for k, vs := range q {
		if k == "refresh" {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	out.Set(key, value)
	return "/?" + out.Encode()
}
