package simsearch

import (
	"time"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/simsearch/internal/domain/search/result"
	"github.com/kailas-cloud/simsearch/internal/usecase/catalog"
)

// Kind is the distance an attribute is ranked by.
type Kind string

// Attribute kinds.
const (
	Numerical   Kind = Kind(attribute.Numerical)
	Categorical Kind = Kind(attribute.Categorical)
	Spatial     Kind = Kind(attribute.Spatial)
	Pivot       Kind = Kind(attribute.Pivot)
)

// Metric selects the distance of a spatial attribute.
type Metric string

// Spatial metrics.
const (
	Euclidean Metric = Metric(attribute.Euclidean)
	Haversine Metric = Metric(attribute.Haversine)
)

// Mode is the rank aggregation algorithm.
type Mode string

// Ranking algorithms.
const (
	ModeSorted              Mode = Mode(mode.Sorted)
	ModeThreshold           Mode = Mode(mode.Threshold)
	ModeNoRandomAccess      Mode = Mode(mode.NoRandomAccess)
	ModePartialRandomAccess Mode = Mode(mode.PartialRandomAccess)
	ModePivot               Mode = Mode(mode.Pivot)
)

// Attribute describes an attribute to mount.
type Attribute struct {
	Name   string
	Kind   Kind
	Source string
	Table  string
	Key    string
	// Columns defaults to the attribute name.
	Columns []string
	Metric  Metric
	// Ingest loads every value at mount; spatial and pivot attributes are then indexed.
	Ingest bool
}

// AttributeInfo summarizes a mounted attribute.
type AttributeInfo struct {
	Name     string
	Kind     Kind
	Source   string
	Ingested bool
	Indexed  bool
	Entries  int
}

// PivotInfo describes the pivot space.
type PivotInfo struct {
	Attributes []string
	Dim        int
	Entries    int
}

// Hit is one ranked identifier.
type Hit struct {
	ID    string
	Score float64
	// Distance is set in pivot mode only.
	Distance   float64
	Exact      bool
	Attributes map[string]float64
}

// Degradation names an attribute that contributed less than requested.
type Degradation struct {
	Attribute string
	Reason    string
}

// Stats counts the work one search did.
type Stats struct {
	Rounds         int
	SortedAccesses int
	RandomAccesses int
	Probes         int
	Duration       time.Duration
}

// Result is the outcome of a search.
type Result struct {
	Hits     []Hit
	Exact    bool
	Degraded []Degradation
	Stats    Stats
}

func (a Attribute) spec() catalog.Spec {
	return catalog.Spec{
		Name:         a.Name,
		Kind:         attribute.Kind(a.Kind),
		Source:       a.Source,
		Table:        a.Table,
		KeyColumn:    a.Key,
		ValueColumns: a.Columns,
		Metric:       attribute.Metric(a.Metric),
		Ingest:       a.Ingest,
	}
}

func infoFromCatalog(i catalog.Info) AttributeInfo {
	return AttributeInfo{
		Name:     i.Name,
		Kind:     Kind(i.Kind),
		Source:   i.Source,
		Ingested: i.Ingested,
		Indexed:  i.Indexed,
		Entries:  i.Entries,
	}
}

func resultFromResponse(resp *result.Response) *Result {
	out := &Result{
		Hits:  make([]Hit, len(resp.Results)),
		Exact: resp.Exact(),
		Stats: Stats(resp.Stats),
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		out.Hits[i] = Hit{
			ID:         r.ID(),
			Score:      r.Score(),
			Distance:   r.Distance(),
			Exact:      r.Exact(),
			Attributes: r.Attributes(),
		}
	}
	for _, d := range resp.Degraded {
		out.Degraded = append(out.Degraded, Degradation(d))
	}
	return out
}
