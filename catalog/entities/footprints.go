package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
)

const granuleProperty = "granule"

// WorldWKT is the footprint of a granule without spatial extent
var WorldWKT = "POLYGON ((-180 -90,180 -90,180 90,-180 90,-180 -90))"

// Properties returns the properties of the footprint of the granule
func (g *Granule) Properties() map[string]interface{} {
	links := g.Links()
	props := map[string]interface{}{
		common.TagConceptID:  g.ConceptID,
		common.TagNativeID:   g.GranuleUR,
		common.TagProducerID: g.ProducerID,
		common.TagShortName:  g.ShortName,
		common.TagBeginDate:  formatDate(g.BeginDate),
		common.TagEndDate:    formatDate(g.EndDate),
		common.TagDataLinks:  strings.Join(links[:min(len(links), common.MaxFootprintLinks)], "|"),
		common.TagNumLinks:   len(links),
		granuleProperty:      g.Granule,
	}
	for k, v := range g.Tags {
		if _, ok := props[k]; !ok {
			props[k] = v
		}
	}
	return props
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Geometry returns the footprint of the granule (the world if it is not defined)
func (g *Granule) Geometry() (geom.Geometry, error) {
	w := g.GeometryWKT
	if w == "" {
		w = WorldWKT
	}
	geometry, err := wkt.DecodeString(w)
	if err != nil {
		return nil, fmt.Errorf("Geometry[%s].DecodeString: %w", g.ID(), err)
	}
	return geometry, nil
}

// MarshalJSON marshals the granules as a geojson FeatureCollection
func (gs Granules) MarshalJSON() ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]geojson.Feature, len(gs.Granules))}
	for i, g := range gs.Granules {
		geometry, err := g.Geometry()
		if err != nil {
			return nil, err
		}
		fc.Features[i] = geojson.Feature{
			Geometry:   geojson.Geometry{Geometry: geometry},
			Properties: g.Properties(),
		}
	}
	return json.Marshal(fc)
}

// UnmarshalJSON unmarshals a geojson FeatureCollection created by MarshalJSON
func (gs *Granules) UnmarshalJSON(data []byte) error {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("Granules.UnmarshalJSON: %w", err)
	}
	gs.Granules = make([]*Granule, len(fc.Features))
	for i, f := range fc.Features {
		g := &Granule{Tags: map[string]string{}}
		gb, err := json.Marshal(f.Properties[granuleProperty])
		if err != nil {
			return fmt.Errorf("Granules.UnmarshalJSON: %w", err)
		}
		if err := json.Unmarshal(gb, &g.Granule); err != nil {
			return fmt.Errorf("Granules.UnmarshalJSON[%d]: %w", i, err)
		}
		if f.Geometry.Geometry != nil {
			if g.GeometryWKT, err = wkt.EncodeString(f.Geometry.Geometry); err != nil {
				return fmt.Errorf("Granules.UnmarshalJSON[%s].EncodeString: %w", g.ID(), err)
			}
		}
		for k, v := range f.Properties {
			if s, ok := v.(string); ok && isTag(k) {
				g.Tags[k] = s
			}
		}
		gs.Granules[i] = g
	}
	gs.Hits = len(gs.Granules)
	return nil
}

func isTag(k string) bool {
	switch k {
	case common.TagConceptID, common.TagNativeID, common.TagProducerID, common.TagShortName,
		common.TagBeginDate, common.TagEndDate, common.TagDataLinks, common.TagNumLinks, granuleProperty:
		return false
	}
	return true
}

// LoadGranules reads a granules file written by the catalog
func LoadGranules(path string) (Granules, error) {
	var gs Granules
	b, err := os.ReadFile(path)
	if err != nil {
		return gs, fmt.Errorf("LoadGranules: %w", err)
	}
	if err := json.Unmarshal(b, &gs); err != nil {
		return gs, fmt.Errorf("LoadGranules[%s].%w", path, err)
	}
	return gs, nil
}

// Common returns the common part of the granules
func Common(granules []*Granule) []common.Granule {
	res := make([]common.Granule, len(granules))
	for i, g := range granules {
		res[i] = g.Granule
	}
	return res
}
