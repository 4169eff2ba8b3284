package webui

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"insurance-dq/internal/dashboard"
	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/storage"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"selected": func(cur, v string) bool {
		return cur == v || (cur == "" && v == dashboard.All)
	},
}

// parseFilter reads from, to (YYYY-MM-DD), agent, status and lob.
func parseFilter(q url.Values) (dashboard.Filter, error) {
	f := dashboard.Filter{
		Agent:  strings.TrimSpace(q.Get("agent")),
		Status: strings.TrimSpace(q.Get("status")),
		LOB:    strings.TrimSpace(q.Get("lob")),
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, apperrors.ErrInvalidParameter.WithDetails(map[string]string{
				"parameter": p.key,
				"value":     v,
				"expected":  "YYYY-MM-DD",
			})
		}
		*p.dst = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, apperrors.ErrInvalidParameter.WithDetails(map[string]string{
			"parameter": "to",
			"reason":    "to is before from",
		})
	}
	return f, nil
}

// renderErr maps store and parameter errors onto APIError responses.
func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apperrors.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, dashboard.ErrNoData):
		apiErr = apperrors.ErrNoData
	default:
		s.log.ErrorContext(r.Context(), "store read failed", "error", err)
		apiErr = apperrors.ErrStoreUnavailable
	}
	_ = render.Render(w, r, apiErr)
}

type noticeResponse struct {
	Notice string `json:"notice"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Current(r.Context())
	if errors.Is(err, dashboard.ErrNoData) {
		render.JSON(w, r, noticeResponse{Notice: err.Error()})
		return
	}
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, snap.Options)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	snap, err := s.store.Current(r.Context())
	if errors.Is(err, dashboard.ErrNoData) {
		render.JSON(w, r, noticeResponse{Notice: err.Error()})
		return
	}
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, dashboard.Build(snap, f))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	snap, err := s.store.Current(r.Context())
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+dashboard.ExportName(s.now())+`"`)
	if err := dashboard.Export(w, snap, f); err != nil {
		s.log.ErrorContext(r.Context(), "export failed", "error", err)
	}
}

type reloadResponse struct {
	RunID     string    `json:"run_id,omitempty"`
	WrittenAt time.Time `json:"written_at,omitempty"`
	Policies  int       `json:"policies"`
	Notice    string    `json:"notice,omitempty"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Reload(r.Context())
	if errors.Is(err, dashboard.ErrNoData) {
		render.JSON(w, r, reloadResponse{Notice: err.Error()})
		return
	}
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, reloadResponse{RunID: snap.RunID, WrittenAt: snap.WrittenAt, Policies: len(snap.Rows)})
}

type tableResponse struct {
	Name      string     `json:"name"`
	Columns   []string   `json:"columns"`
	TotalRows int        `json:"total_rows"`
	Rows      [][]string `json:"rows"`
}

// handleTable returns a persisted table listed in the current manifest.
// ?limit=N caps the rows returned.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := s.cfg.TableRowLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.renderErr(w, r, apperrors.ErrInvalidParameter.WithDetails(map[string]string{"parameter": "limit", "value": v}))
			return
		}
		if n < limit {
			limit = n
		}
	}

	m, err := s.src.Manifest(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.renderErr(w, r, err)
		return
	}
	if _, ok := m.Table(name); !ok || err != nil {
		_ = render.Render(w, r, apperrors.ErrTableNotFound.WithDetails(map[string]string{"table": name}))
		return
	}
	t, err := s.src.Read(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		_ = render.Render(w, r, apperrors.ErrTableNotFound.WithDetails(map[string]string{"table": name}))
		return
	}
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	n := t.Len()
	if n > limit {
		n = limit
	}
	resp := tableResponse{Name: name, Columns: t.Columns(), TotalRows: t.Len(), Rows: make([][]string, 0, n)}
	for i := 0; i < n; i++ {
		resp.Rows = append(resp.Rows, t.Row(i))
	}
	render.JSON(w, r, resp)
}

type indexData struct {
	Notice    string
	RunID     string
	Filter    map[string]string
	Options   dashboard.Options
	Dashboard dashboard.Dashboard
	ExportURL string
}

// handleIndex renders the dashboard page. Store problems become a notice.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := indexData{
		Filter: map[string]string{
			"from": q.Get("from"), "to": q.Get("to"),
			"agent": q.Get("agent"), "status": q.Get("status"), "lob": q.Get("lob"),
		},
		ExportURL: "/api/export?" + q.Encode(),
	}

	f, ferr := parseFilter(q)
	snap, err := s.store.Current(r.Context())
	switch {
	case errors.Is(err, dashboard.ErrNoData):
		data.Notice = err.Error()
	case err != nil:
		s.log.ErrorContext(r.Context(), "store read failed", "error", err)
		data.Notice = apperrors.ErrStoreUnavailable.Message
	case ferr != nil:
		data.Notice = "Invalid filter: dates must be YYYY-MM-DD and from must not be after to."
		data.Options = snap.Options
		data.RunID = snap.RunID
	default:
		data.Options = snap.Options
		data.RunID = snap.RunID
		data.Dashboard = dashboard.Build(snap, f)
		data.Notice = data.Dashboard.Notice
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.ErrorContext(r.Context(), "template error", "error", err)
	}
}
