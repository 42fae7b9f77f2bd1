package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"defaults", "", 1, 20, 0},
		{"explicit window", "?page=3&size=10", 3, 10, 20},
		{"size capped at 100", "?size=500", 1, 100, 0},
		{"garbage falls back", "?page=x&size=-2", 1, 20, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/courses"+tc.query, nil)
			p := ParsePagination(r)
			if p.Page != tc.wantPage || p.Size != tc.wantSize || p.Offset() != tc.wantOffset {
				t.Errorf("got page=%d size=%d offset=%d", p.Page, p.Size, p.Offset())
			}
		})
	}
}

func TestValidateAllCollectsFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	ok := ValidateAll(rec,
		RequireNonEmpty("", "username"),
		RequireNonEmpty("secret", "password"),
		RequirePositive(0, "courseId"),
	)
	if ok {
		t.Fatal("validation should fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"username is required", "courseId must be positive"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
	if strings.Contains(body, "password") {
		t.Errorf("valid field leaked into details: %s", body)
	}
}

func TestValidateAllPasses(t *testing.T) {
	rec := httptest.NewRecorder()
	if !ValidateAll(rec, RequireNonEmpty("alice", "username"), RequirePositive(7, "courseId")) {
		t.Fatal("validation should pass")
	}
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("nothing should be written on success, got %d %q", rec.Code, rec.Body.String())
	}
}
