package catalog

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/interface/catalog"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/geometry"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom"
)

const (
	DefaultMaxResults   = 50
	DefaultMonths       = 1
	GranulesFileName    = "granules.geojson"
	CoverageFileName    = "coverage.wkt"
	coverageSimplifyTol = 0.0001
)

// Catalog is the main class of this package
type Catalog struct {
	Providers     []catalog.GranulesProvider
	Datasets      common.Datasets
	AnyDataset    bool // Allow collections that are not OPERA datasets
	DefaultMonths int  // Temporal window (back from today) when no date is given
	MaxResults    int
	WorkingDir    string // If set, results are written in this directory

	now func() time.Time
}

func (c *Catalog) today() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

// ValidateRequest checks the request and sets the default values
func (c *Catalog) ValidateRequest(req *entities.SearchRequest) error {
	if req.ShortName == "" {
		return fmt.Errorf("validateRequest: missing short name")
	}
	if ds, ok := c.Datasets.Get(req.ShortName); ok {
		req.ShortName = ds.ShortName
	} else if !c.AnyDataset {
		return fmt.Errorf("validateRequest: unknown dataset %s (expecting one of %v)", req.ShortName, c.Datasets.ShortNames())
	}

	if len(req.BBox) != 0 {
		if len(req.BBox) != 4 {
			return fmt.Errorf("validateRequest: bbox must be xmin,ymin,xmax,ymax")
		}
		xmin, ymin, xmax, ymax := req.BBox[0], req.BBox[1], req.BBox[2], req.BBox[3]
		for _, v := range req.BBox {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("validateRequest: invalid bbox %v", req.BBox)
			}
		}
		if xmin >= xmax || ymin >= ymax || xmin < -180 || xmax > 180 || ymin < -90 || ymax > 90 {
			return fmt.Errorf("validateRequest: invalid bbox %v", req.BBox)
		}
	}
	if req.AOI != nil {
		if _, err := service.MultiPolygon(req.AOI.Geometry); err != nil {
			return fmt.Errorf("validateRequest.AOI.%w", err)
		}
	}

	switch {
	case req.StartTime.IsZero() && req.EndTime.IsZero():
		months := c.DefaultMonths
		if months <= 0 {
			months = DefaultMonths
		}
		req.EndTime = c.today()
		req.StartTime = req.EndTime.AddDate(0, -months, 0)
	case req.EndTime.IsZero():
		req.EndTime = c.today()
	}
	if !req.StartTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return fmt.Errorf("validateRequest: end date (%v) is before start date (%v)", req.EndTime, req.StartTime)
	}

	if req.MaxResults <= 0 {
		req.MaxResults = c.MaxResults
		if req.MaxResults <= 0 {
			req.MaxResults = DefaultMaxResults
		}
	}
	if req.Page < 0 {
		return fmt.Errorf("validateRequest: page must be positive")
	}
	return nil
}

// Search validates the request and lists the granules, from the first provider that succeeds
func (c *Catalog) Search(ctx context.Context, req *entities.SearchRequest) (entities.Granules, error) {
	if err := c.ValidateRequest(req); err != nil {
		return entities.Granules{}, fmt.Errorf("Search.%w", err)
	}
	if len(c.Providers) == 0 {
		return entities.Granules{}, fmt.Errorf("Search: no catalog is configured")
	}

	log.Logger(ctx).Sugar().Infof("Searching %s from %s to %s (max %d results)...", req.ShortName,
		req.StartTime.Format("2006-01-02"), req.EndTime.Format("2006-01-02"), req.MaxResults)

	var err, e error
	var granules entities.Granules
	for _, provider := range c.Providers {
		granules, e = provider.SearchGranules(ctx, req)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	if err != nil {
		return entities.Granules{}, fmt.Errorf("Search.%w", err)
	}
	if len(granules.Granules) == 0 {
		log.Logger(ctx).Sugar().Infof("No granules found for %s", req.ShortName)
	} else {
		log.Logger(ctx).Sugar().Infof("Found %d granule(s) (%d matching)", len(granules.Granules), granules.Hits)
	}

	if err := service.ToJSON(granules, c.WorkingDir, GranulesFileName); err != nil {
		return entities.Granules{}, fmt.Errorf("Search.%w", err)
	}
	return granules, nil
}

func footprints(granules []*entities.Granule) []string {
	wkts := make([]string, 0, len(granules))
	for _, g := range granules {
		if g.GeometryWKT != "" {
			wkts = append(wkts, g.GeometryWKT)
		}
	}
	return wkts
}

// CoverageGeometry returns the union of the footprints of the granules
func CoverageGeometry(granules []*entities.Granule) (geom.Geometry, error) {
	wkts := footprints(granules)
	if len(wkts) == 0 {
		return nil, fmt.Errorf("CoverageGeometry: no footprint")
	}
	g, err := geometry.GeomUnion(wkts, coverageSimplifyTol)
	if err != nil {
		return nil, fmt.Errorf("CoverageGeometry.%w", err)
	}
	return g, nil
}

// Coverage returns the union of the footprints of the granules as WKT
func Coverage(granules []*entities.Granule) (string, error) {
	wkts := footprints(granules)
	if len(wkts) == 0 {
		return "", fmt.Errorf("Coverage: no footprint")
	}
	wkt, err := geometry.WKTUnion(wkts, coverageSimplifyTol)
	if err != nil {
		return "", fmt.Errorf("Coverage.%w", err)
	}
	return wkt, nil
}
