package catalog

import (
	"context"

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
)

// GranulesProvider searches the granules of a collection
type GranulesProvider interface {
	SearchGranules(ctx context.Context, req *entities.SearchRequest) (entities.Granules, error)
}
