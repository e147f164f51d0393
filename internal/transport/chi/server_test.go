package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/db/csvfile"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/simsearch/internal/usecase/health"
	"github.com/kailas-cloud/simsearch/internal/usecase/rank"
)

const hotels = `id|price|tags|x|y
a|100|pool|0|0
b|120|gym|3|4
c|90|spa|1|1
`

type testAPI struct {
	router  http.Handler
	catalog *catalog.Catalog
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	src, err := csvfile.Read(strings.NewReader(hotels), '|')
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	cat := catalog.New(map[string]db.Connector{"hotels": src}, nil, 4, zap.NewNop())
	for _, spec := range []catalog.Spec{
		{Name: "price", Kind: attribute.Numerical, Source: "hotels", KeyColumn: "id"},
		{Name: "loc", Kind: attribute.Spatial, Source: "hotels", KeyColumn: "id", ValueColumns: []string{"x", "y"}, Ingest: true},
	} {
		if _, err := cat.Mount(context.Background(), spec); err != nil {
			t.Fatalf("mount %s: %v", spec.Name, err)
		}
	}
	engine, err := rank.New(cat, rank.Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(engine.Close)

	server := NewServer(engine, cat, healthuc.New(cat, nil, 0), 10, zap.NewNop())
	r := chi.NewRouter()
	server.Register(r)
	return &testAPI{router: r, catalog: cat}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func TestSearch_Threshold(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "POST", "/search", SearchRequest{
		K:         2,
		Algorithm: "threshold",
		Queries:   []QueryRequest{{Column: "price", Operation: "numerical", Value: "100"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[SearchResponse](t, rr)
	if len(resp.Results) != 2 || resp.Results[0].ID != "a" || resp.Results[1].ID != "c" {
		t.Fatalf("want [a c], got %+v", resp.Results)
	}
	if resp.Results[0].Score != 1 {
		t.Errorf("exact match must score 1, got %v", resp.Results[0].Score)
	}
	if resp.Results[0].Attributes["price"] != 1 {
		t.Errorf("breakdown = %v", resp.Results[0].Attributes)
	}
	if resp.Results[0].Distance != nil {
		t.Error("distance is reported for pivot searches only")
	}
	if !resp.Exact {
		t.Error("want exact response")
	}
	if resp.Stats.SortedAccesses == 0 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestSearch_DefaultK(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "POST", "/search", `{"queries":[{"column":"price","operation":"numerical","value":"95"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[SearchResponse](t, rr); len(resp.Results) != 3 {
		t.Fatalf("want every row under the default k, got %+v", resp.Results)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   ErrorCode
	}{
		{"malformed json", `{"k":`, http.StatusBadRequest, CodeBadRequest},
		{"no queries", SearchRequest{K: 1}, http.StatusBadRequest, CodeValidationFailed},
		{"unknown algorithm", SearchRequest{
			Algorithm: "fagin",
			Queries:   []QueryRequest{{Column: "price", Operation: "numerical", Value: "1"}},
		}, http.StatusBadRequest, CodeValidationFailed},
		{"k too large", SearchRequest{
			K:       5000,
			Queries: []QueryRequest{{Column: "price", Operation: "numerical", Value: "1"}},
		}, http.StatusBadRequest, CodeValidationFailed},
		{"unknown attribute", SearchRequest{
			Queries: []QueryRequest{{Column: "stars", Operation: "numerical", Value: "1"}},
		}, http.StatusBadRequest, CodeUnknownAttribute},
		{"unparseable value", SearchRequest{
			Queries: []QueryRequest{{Column: "price", Operation: "numerical", Value: "cheap"}},
		}, http.StatusBadRequest, CodeValidationFailed},
		{"pivot space not built", SearchRequest{
			Algorithm: "pivot",
			Queries:   []QueryRequest{{Column: "loc", Operation: "spatial", Value: "0,0"}},
		}, http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			rr := api.do(t, "POST", "/search", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if resp := decode[ErrorResponse](t, rr); resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
		})
	}
}

func TestCatalog_MountListRemove(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, "POST", "/catalog", MountRequest{Name: "tags", Kind: "categorical", Source: "hotels", Key: "id"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("mount: status %d: %s", rr.Code, rr.Body.String())
	}
	if info := decode[AttributeResponse](t, rr); info.Name != "tags" || info.Kind != "categorical" {
		t.Errorf("mount response = %+v", info)
	}

	rr = api.do(t, "POST", "/catalog", MountRequest{Name: "tags", Kind: "categorical", Source: "hotels", Key: "id"})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate mount: got %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = api.do(t, "GET", "/catalog", nil)
	list := decode[CatalogResponse](t, rr)
	var names []string
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	if strings.Join(names, ",") != "loc,price,tags" {
		t.Fatalf("catalog = %v", names)
	}
	if !list.Items[0].Indexed || list.Items[0].Entries != 3 {
		t.Errorf("loc = %+v", list.Items[0])
	}

	if rr = api.do(t, "DELETE", "/catalog/tags", nil); rr.Code != http.StatusNoContent {
		t.Errorf("remove: got %d", rr.Code)
	}
	if rr = api.do(t, "DELETE", "/catalog/tags", nil); rr.Code != http.StatusNotFound {
		t.Errorf("second remove: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCatalog_MountValidation(t *testing.T) {
	api := newTestAPI(t)
	tests := []struct {
		name   string
		body   MountRequest
		status int
	}{
		{"missing name", MountRequest{Kind: "numerical", Source: "hotels", Key: "id"}, http.StatusBadRequest},
		{"unknown source", MountRequest{Name: "z", Kind: "numerical", Source: "nope", Key: "id"}, http.StatusNotFound},
		{"bad kind", MountRequest{Name: "z", Kind: "vector", Source: "hotels", Key: "id"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := api.do(t, "POST", "/catalog", tt.body); rr.Code != tt.status {
				t.Errorf("got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestPivot_BuildAndSearch(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, "POST", "/pivot", PivotRequest{Attributes: []string{"loc"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("build: status %d: %s", rr.Code, rr.Body.String())
	}
	if p := decode[PivotResponse](t, rr); p.Dim != 2 || p.Entries != 3 {
		t.Errorf("pivot = %+v", p)
	}

	rr = api.do(t, "POST", "/search", SearchRequest{
		K:         2,
		Algorithm: "pivot",
		Queries:   []QueryRequest{{Column: "loc", Operation: "spatial", Value: "0,0"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("search: status %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[SearchResponse](t, rr)
	if len(resp.Results) != 2 || resp.Results[0].ID != "a" || resp.Results[1].ID != "c" {
		t.Fatalf("want [a c], got %+v", resp.Results)
	}
	// loc spans (0,0)..(3,4), so pivot distances are in units of 5.
	if d := resp.Results[1].Distance; d == nil || math.Abs(*d-math.Sqrt2/5) > 1e-9 {
		t.Errorf("distance of c = %v", d)
	}
}

func TestPivot_UnknownAttribute(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "POST", "/pivot", PivotRequest{Attributes: []string{"stars"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	h := decode[HealthResponse](t, rr)
	if h.Status != "ok" || h.Checks["source:hotels"] != "ok" {
		t.Errorf("health = %+v", h)
	}
}

type downChecker struct{}

func (downChecker) Check(context.Context) healthuc.Report {
	return healthuc.Report{
		Status:   healthuc.Degraded,
		Checks:   map[string]healthuc.CheckResult{"source:x": healthuc.CheckError, "source:y": healthuc.CheckOK},
		Errors:   map[string]string{"source:x": "ping: connection refused"},
		Affected: []string{"price"},
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	s := NewServer(nil, nil, downChecker{}, 10, zap.NewNop())
	rr := httptest.NewRecorder()
	s.HealthCheck(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	h := decode[HealthResponse](t, rr)
	if h.Errors["source:x"] == "" || len(h.Affected) != 1 || h.Affected[0] != "price" {
		t.Errorf("health = %+v", h)
	}
	if h.Version == "" {
		t.Error("expected build version in health response")
	}
}
