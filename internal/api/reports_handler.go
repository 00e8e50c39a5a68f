package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nippolabs/nippo/internal/authz"
	"github.com/nippolabs/nippo/internal/report"
	"github.com/nippolabs/nippo/internal/session"
)

// ReportLister is the report-store surface the listing handler depends on.
type ReportLister interface {
	Count(ctx context.Context, f report.Filter) (int, error)
	List(ctx context.Context, f report.Filter, limit, offset int) ([]report.Summary, error)
}

// reportsHandler groups daily-report HTTP handlers.
type reportsHandler struct {
	users    UserDirectory
	reports  ReportLister
	sessions *session.Manager
}

func newReportsHandler(users UserDirectory, reports ReportLister, sessions *session.Manager) *reportsHandler {
	return &reportsHandler{users: users, reports: reports, sessions: sessions}
}

// listQuery is the parsed and validated query string of the listing endpoint.
type listQuery struct {
	userID    *int64
	startDate *time.Time
	endDate   *time.Time
	page      int
	limit     int
}

func parseListQuery(r *http.Request) (listQuery, []fieldIssue) {
	q := listQuery{page: 1, limit: 20}
	var issues []fieldIssue
	values := r.URL.Query()

	if raw := values.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			issues = append(issues, fieldIssue{Field: "userId", Message: "userId must be an integer"})
		} else {
			q.userID = &id
		}
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"startDate", &q.startDate},
		{"endDate", &q.endDate},
	} {
		if raw := values.Get(p.name); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				issues = append(issues, fieldIssue{Field: p.name, Message: "date must be in YYYY-MM-DD format"})
			} else {
				*p.dst = &t
			}
		}
	}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			issues = append(issues, fieldIssue{Field: "page", Message: "page must be an integer"})
		} else {
			q.page = n
		}
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			issues = append(issues, fieldIssue{Field: "limit", Message: "limit must be an integer"})
		} else {
			q.limit = n
		}
	}

	if len(issues) > 0 {
		return q, issues
	}

	if q.page < 1 {
		issues = append(issues, fieldIssue{Field: "page", Message: "page must be 1 or greater"})
	}
	if q.limit < 1 || q.limit > 100 {
		issues = append(issues, fieldIssue{Field: "limit", Message: "limit must be between 1 and 100"})
	}
	return q, issues
}

// reportItem is one row of the listing response.
type reportItem struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"userId"`
	UserName          string    `json:"userName"`
	ReportDate        string    `json:"reportDate"`
	Problem           string    `json:"problem"`
	Plan              string    `json:"plan"`
	VisitCount        int       `json:"visitCount"`
	CommentCount      int       `json:"commentCount"`
	HasUnreadComments bool      `json:"hasUnreadComments"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// List handles GET /api/daily-reports.
func (h *reportsHandler) List(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.CurrentUser(w, r)
	if d == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	q, issues := parseListQuery(r)
	if issues != nil {
		writeValidationError(w, "invalid input", issues)
		return
	}

	identity := authz.Identity{UserID: *d.UserID, Role: d.Role}
	scope, err := authz.ResolveScope(r.Context(), h.users, identity, q.userID)
	if errors.Is(err, authz.ErrForbidden) {
		writeError(w, http.StatusForbidden, CodeForbidden, "access denied")
		return
	}
	if err != nil {
		logInternalError(r, "reports.scope", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	filter := report.Filter{
		UserIDs:   scope.UserIDs,
		StartDate: q.startDate,
		EndDate:   q.endDate,
	}

	totalItems, err := h.reports.Count(r.Context(), filter)
	if err != nil {
		logInternalError(r, "reports.count", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	offset := (q.page - 1) * q.limit
	rows, err := h.reports.List(r.Context(), filter, q.limit, offset)
	if err != nil {
		logInternalError(r, "reports.list", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	items := make([]reportItem, len(rows))
	for i, row := range rows {
		items[i] = reportItem{
			ID:           row.ID,
			UserID:       row.UserID,
			UserName:     row.UserName,
			ReportDate:   row.ReportDate.Format("2006-01-02"),
			Problem:      row.Problem,
			Plan:         row.Plan,
			VisitCount:   row.VisitCount,
			CommentCount: row.CommentCount,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		}
	}

	writeData(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": report.NewPagination(totalItems, q.page, q.limit),
	})
}
