package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "marked query",
			query:      "\n--sql 0b5c1f2e-8a47-4d2b-9c61-3e7f5a9d2b10\nselect 1\nfrom t",
			wantMarker: "0b5c1f2e-8a47-4d2b-9c61-3e7f5a9d2b10",
			wantBody:   "select 1\nfrom t",
		},
		{
			name:    "missing marker",
			query:   "select 1",
			wantErr: true,
		},
		{
			name:    "upper-case uuid rejected",
			query:   "--sql 0B5C1F2E-8A47-4D2B-9C61-3E7F5A9D2B10\nselect 1",
			wantErr: true,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker() error: %v", err)
			}
			if marker != tc.wantMarker || body != tc.wantBody {
				t.Fatalf("extractMarker() = %q, %q", marker, body)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	r := NewSQLRunner(nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := r.Exec(ctx, "delete from donations"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Exec() error = %v, want ErrMissingMarker", err)
	}
	if _, err := r.Query(ctx, "select 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Query() error = %v, want ErrMissingMarker", err)
	}
	if err := r.QueryRow(ctx, "select 1").Scan(); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("QueryRow().Scan() error = %v, want ErrMissingMarker", err)
	}
}

func TestMarkerOf(t *testing.T) {
	if got := MarkerOf("--sql 0b5c1f2e-8a47-4d2b-9c61-3e7f5a9d2b10\nselect 1"); got != "0b5c1f2e-8a47-4d2b-9c61-3e7f5a9d2b10" {
		t.Fatalf("MarkerOf() = %q", got)
	}
	if got := MarkerOf("select 1"); got != "" {
		t.Fatalf("MarkerOf() = %q, want empty", got)
	}
}
