package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_Values(t *testing.T) {
	p := paramsFor(t, "?page=3&limit=25")
	if p.Page != 3 || p.Limit != 25 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestFromContext_Clamps(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"?limit=1000", 1, MaxLimit},
		{"?limit=-5", 1, DefaultLimit},
		{"?page=0", 1, DefaultLimit},
		{"?page=abc&limit=xyz", 1, DefaultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := paramsFor(t, tt.query)
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("got %+v, want page=%d limit=%d", p, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestMeta(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	m := p.Meta(25)
	if m.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", m.TotalPages)
	}
	if m.Total != 25 || m.Page != 2 || m.Limit != 10 {
		t.Errorf("unexpected meta %+v", m)
	}
	if !p.HasNext(25) {
		t.Error("expected next page")
	}
	if (Params{Page: 3, Limit: 10}).HasNext(25) {
		t.Error("did not expect next page after the last")
	}
	if (Params{Page: 1, Limit: 10}).Meta(0).TotalPages != 0 {
		t.Error("expected 0 pages for empty result")
	}
}
