package rank

import "github.com/kailas-cloud/simsearch/internal/usecase/catalog"

// Catalog resolves mounted attributes and the pivot space.
type Catalog interface {
	Attribute(name string) (*catalog.Attribute, error)
	Pivot() (*catalog.PivotSpace, error)
}
