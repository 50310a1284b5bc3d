package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
)

// Granule is a specialisation of common.Granule for the catalog
type Granule struct {
	common.Granule
	GeometryWKT string            `json:"geometry_wkt"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Granules is the result of a search
// It is (un)marshalled as a geojson FeatureCollection of the footprints of the granules.
type Granules struct {
	Granules []*Granule
	Hits     int // Total number of granules matching the request
}

// Select returns the granules whose id (granule UR or concept-id) is in ids, in the order of ids.
// If ids is empty, all the granules are returned.
func (gs Granules) Select(ids []string) ([]*Granule, error) {
	if len(ids) == 0 {
		return gs.Granules, nil
	}
	byID := map[string]*Granule{}
	for _, g := range gs.Granules {
		byID[g.GranuleUR] = g
		byID[g.ConceptID] = g
	}
	selected := make([]*Granule, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[strings.TrimSpace(id)]
		if !ok {
			return nil, fmt.Errorf("Select: unknown granule %s", id)
		}
		selected = append(selected, g)
	}
	return selected, nil
}

// Files returns the distinct file names of the granules (for the choice of the example file), in order of appearance
func (gs Granules) Files() []string {
	var files []string
	seen := service.StringSet{}
	for _, g := range gs.Granules {
		for _, l := range g.DataLinks {
			if f := common.FileName(l); !seen.Exists(f) {
				seen.Push(f)
				files = append(files, f)
			}
		}
	}
	return files
}

// SearchRequest is the input of the catalog
type SearchRequest struct {
	ShortName  string            `json:"short_name"`
	BBox       []float64         `json:"bbox,omitempty"` // xmin,ymin,xmax,ymax (lon/lat)
	AOI        *geojson.Geometry `json:"aoi,omitempty"`  // (Multi)Polygon or FeatureCollection of polygons
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	MaxResults int               `json:"max_results"`
	Page       int               `json:"page"`
}

// ParseDate parses a user input (2023-10-06, 2023/10/06, 2023-10-06T17:56:31Z...)
func ParseDate(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate[%s]: %w", s, err)
	}
	return t, nil
}

// ParseBBox parses "xmin,ymin,xmax,ymax"
func ParseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("ParseBBox[%s]: expecting xmin,ymin,xmax,ymax", s)
	}
	bbox := make([]float64, 4)
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &bbox[i]); err != nil {
			return nil, fmt.Errorf("ParseBBox[%s]: %w", s, err)
		}
	}
	return bbox, nil
}
