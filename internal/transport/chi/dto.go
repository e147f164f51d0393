package chi

import (
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnknownAttribute  ErrorCode = "unknown_attribute"
	CodeDimensionMismatch ErrorCode = "dimension_mismatch"
	CodeNotFound          ErrorCode = "not_found"
	CodeAlreadyExists     ErrorCode = "already_exists"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeForbidden         ErrorCode = "forbidden"
	CodeSourceUnavailable ErrorCode = "source_unavailable"
	CodeTimeout           ErrorCode = "timeout"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	K         int            `json:"k"`
	Algorithm string         `json:"algorithm"`
	Queries   []QueryRequest `json:"queries"`
}

// QueryRequest is one attribute's part of a search.
type QueryRequest struct {
	Column    string   `json:"column"`
	Operation string   `json:"operation"`
	Value     string   `json:"value"`
	Weight    *float64 `json:"weight,omitempty"`
	Decay     float64  `json:"decay,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Results  []SearchResultItem `json:"results"`
	Exact    bool               `json:"exact"`
	Degraded []DegradedItem     `json:"degraded,omitempty"`
	Stats    StatsResponse      `json:"stats"`
}

// SearchResultItem is one ranked identifier.
type SearchResultItem struct {
	ID         string             `json:"id"`
	Score      float64            `json:"score"`
	Distance   *float64           `json:"distance,omitempty"`
	Exact      bool               `json:"exact"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// DegradedItem names an attribute that contributed less than requested.
type DegradedItem struct {
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

// StatsResponse reports the work a search did.
type StatsResponse struct {
	Rounds         int     `json:"rounds"`
	SortedAccesses int     `json:"sorted_accesses"`
	RandomAccesses int     `json:"random_accesses"`
	Probes         int     `json:"probes"`
	DurationMS     float64 `json:"duration_ms"`
}

// MountRequest is the body of POST /catalog.
type MountRequest struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Source  string   `json:"source"`
	Table   string   `json:"table"`
	Key     string   `json:"key"`
	Columns []string `json:"columns,omitempty"`
	Metric  string   `json:"metric,omitempty"`
	Ingest  bool     `json:"ingest"`
}

// AttributeResponse describes a mounted attribute.
type AttributeResponse struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Source   string `json:"source"`
	Ingested bool   `json:"ingested"`
	Indexed  bool   `json:"indexed"`
	Entries  int    `json:"entries"`
}

// CatalogResponse lists mounted attributes.
type CatalogResponse struct {
	Items []AttributeResponse `json:"items"`
}

// PivotRequest is the body of POST /pivot.
type PivotRequest struct {
	Attributes []string `json:"attributes"`
}

// PivotResponse describes a built pivot space.
type PivotResponse struct {
	Attributes []string `json:"attributes"`
	Dim        int      `json:"dim"`
	Entries    int      `json:"entries"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Checks   map[string]string `json:"checks"`
	Errors   map[string]string `json:"errors,omitempty"`
	Affected []string          `json:"affected_attributes,omitempty"`
}

func queryFromDTO(q QueryRequest) attribute.Query {
	weight := 1.0
	if q.Weight != nil {
		weight = *q.Weight
	}
	return attribute.Query{
		Name:    q.Column,
		Kind:    attribute.Kind(q.Operation),
		Value:   q.Value,
		Weight:  weight,
		Decay:   q.Decay,
		Columns: q.Columns,
	}
}

func specFromDTO(m MountRequest) catalog.Spec {
	return catalog.Spec{
		Name:         m.Name,
		Kind:         attribute.Kind(m.Kind),
		Source:       m.Source,
		Table:        m.Table,
		KeyColumn:    m.Key,
		ValueColumns: m.Columns,
		Metric:       attribute.Metric(m.Metric),
		Ingest:       m.Ingest,
	}
}

func infoToDTO(info catalog.Info) AttributeResponse {
	return AttributeResponse{
		Name:     info.Name,
		Kind:     string(info.Kind),
		Source:   info.Source,
		Ingested: info.Ingested,
		Indexed:  info.Indexed,
		Entries:  info.Entries,
	}
}

func responseToDTO(resp *result.Response, withDistance bool) SearchResponse {
	out := SearchResponse{
		Results: make([]SearchResultItem, len(resp.Results)),
		Exact:   resp.Exact(),
		Stats: StatsResponse{
			Rounds:         resp.Stats.Rounds,
			SortedAccesses: resp.Stats.SortedAccesses,
			RandomAccesses: resp.Stats.RandomAccesses,
			Probes:         resp.Stats.Probes,
			DurationMS:     float64(resp.Stats.Duration.Microseconds()) / 1000,
		},
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		item := SearchResultItem{
			ID:         r.ID(),
			Score:      r.Score(),
			Exact:      r.Exact(),
			Attributes: r.Attributes(),
		}
		if withDistance {
			d := r.Distance()
			item.Distance = &d
		}
		out.Results[i] = item
	}
	for _, d := range resp.Degraded {
		out.Degraded = append(out.Degraded, DegradedItem{Attribute: d.Attribute, Reason: d.Reason})
	}
	return out
}
