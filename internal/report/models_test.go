package report

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		totalItems int
		page       int
		limit      int
		want       Pagination
	}{
		{
			name: "last page", totalItems: 50, page: 5, limit: 10,
			want: Pagination{CurrentPage: 5, TotalPages: 5, TotalItems: 50, ItemsPerPage: 10, HasNext: false, HasPrev: true},
		},
		{
			name: "first of many", totalItems: 10, page: 1, limit: 1,
			want: Pagination{CurrentPage: 1, TotalPages: 10, TotalItems: 10, ItemsPerPage: 1, HasNext: true, HasPrev: false},
		},
		{
			name: "partial last page", totalItems: 21, page: 2, limit: 10,
			want: Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 21, ItemsPerPage: 10, HasNext: true, HasPrev: true},
		},
		{
			name: "empty result", totalItems: 0, page: 1, limit: 20,
			want: Pagination{CurrentPage: 1, TotalPages: 0, TotalItems: 0, ItemsPerPage: 20, HasNext: false, HasPrev: false},
		},
		{
			name: "single page", totalItems: 5, page: 1, limit: 20,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 5, ItemsPerPage: 20, HasNext: false, HasPrev: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPagination(tt.totalItems, tt.page, tt.limit)
			if got != tt.want {
				t.Errorf("NewPagination(%d, %d, %d) = %+v, want %+v",
					tt.totalItems, tt.page, tt.limit, got, tt.want)
			}
		})
	}
}

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(Filter{})
	if where != "" || len(args) != 0 {
		t.Errorf("empty filter should produce no clause, got %q with %d args", where, len(args))
	}

	where, args = buildWhere(Filter{UserIDs: []int64{1, 2}})
	if where != "WHERE r.user_id = ANY($1)" {
		t.Errorf("unexpected clause %q", where)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}

	// An empty non-nil slice still filters (matches nothing).
	where, _ = buildWhere(Filter{UserIDs: []int64{}})
	if where != "WHERE r.user_id = ANY($1)" {
		t.Errorf("empty non-nil UserIDs should still filter, got %q", where)
	}
}
