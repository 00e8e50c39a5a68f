package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides read access to daily reports.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a report store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any
	argIdx := 1

	if f.UserIDs != nil {
		clauses = append(clauses, fmt.Sprintf("r.user_id = ANY($%d)", argIdx))
		args = append(args, f.UserIDs)
		argIdx++
	}
	if f.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("r.report_date >= $%d", argIdx))
		args = append(args, *f.StartDate)
		argIdx++
	}
	if f.EndDate != nil {
		clauses = append(clauses, fmt.Sprintf("r.report_date <= $%d", argIdx))
		args = append(args, *f.EndDate)
		argIdx++
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Count returns the number of reports matching the filter.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_reports r `+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return count, nil
}

// List returns one page of reports matching the filter, newest report date
// first, with the author name and visit/comment counts joined in.
func (s *Store) List(ctx context.Context, f Filter, limit, offset int) ([]Summary, error) {
	where, args := buildWhere(f)
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT r.id, r.user_id, u.name, r.report_date, r.problem, r.plan,
		        (SELECT COUNT(*) FROM visits v WHERE v.report_id = r.id),
		        (SELECT COUNT(*) FROM comments c WHERE c.report_id = r.id),
		        r.created_at, r.updated_at
		 FROM daily_reports r
		 JOIN users u ON r.user_id = u.id
		 %s
		 ORDER BY r.report_date DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	items := []Summary{}
	for rows.Next() {
		var it Summary
		err := rows.Scan(&it.ID, &it.UserID, &it.UserName, &it.ReportDate, &it.Problem, &it.Plan,
			&it.VisitCount, &it.CommentCount, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
