package geometry

import (
	"fmt"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// ToleranceGeog is the smallest simplification tolerance in degrees
const ToleranceGeog = 0.000001

// GeosToGeom generates a geom.Geometry from a geos.Geometry
func GeosToGeom(g *geos.Geometry) (geom.Geometry, error) {
	wkt, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.ToWKT: %w", err)
	}
	geometry, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.DecodeString: %w", err)
	}
	return geometry, nil
}

func fromWKTs(wkts []string) ([]*geos.Geometry, error) {
	geoms := make([]*geos.Geometry, 0, len(wkts))
	for i, wkt := range wkts {
		geo, err := geos.FromWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("FromWKT[%d]: %w", i, err)
		}
		geoms = append(geoms, geo)
	}
	return geoms, nil
}

// WKTUnion returns the union of the footprints (WKT polygons) as WKT
func WKTUnion(wkts []string, tolerance float64) (string, error) {
	geoms, err := fromWKTs(wkts)
	if err != nil {
		return "", fmt.Errorf("WKTUnion.%w", err)
	}
	union, err := Union(geoms, tolerance)
	if err != nil {
		return "", fmt.Errorf("WKTUnion.%w", err)
	}
	wkt, err := union.ToWKT()
	if err != nil {
		return "", fmt.Errorf("WKTUnion.ToWKT: %w", err)
	}
	return wkt, nil
}

// GeomUnion returns the union of the footprints (WKT polygons) as a geom.Geometry
func GeomUnion(wkts []string, tolerance float64) (geom.Geometry, error) {
	geoms, err := fromWKTs(wkts)
	if err != nil {
		return nil, fmt.Errorf("GeomUnion.%w", err)
	}
	union, err := Union(geoms, tolerance)
	if err != nil {
		return nil, fmt.Errorf("GeomUnion.%w", err)
	}
	return GeosToGeom(union)
}

// Union merges the polygons and simplifies the result.
// If the polygons cannot be merged at once, they are simplified and merged one by one.
func Union(geoms []*geos.Geometry, tolerance float64) (*geos.Geometry, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("Union: no geometry")
	}
	union, err := UnaryUnion(geoms)
	if err == nil {
		if union, err = union.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		return union, nil
	}
	if union, err = geoms[0].Simplify(tolerance); err != nil {
		return nil, fmt.Errorf("Union.Simplify: %w", err)
	}
	for _, g := range geoms[1:] {
		if g, err = g.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		if union, err = g.Union(union); err != nil {
			return nil, fmt.Errorf("Union: %w", err)
		}
	}
	return union, nil
}

// UnaryUnion merges the polygons
func UnaryUnion(geoms []*geos.Geometry) (*geos.Geometry, error) {
	collection, err := geos.NewCollection(geos.MULTIPOLYGON, geoms...)
	if err != nil {
		return nil, fmt.Errorf("UnaryUnion.NewCollection: %w", err)
	}
	union, err := collection.UnaryUnion()
	if err != nil {
		return nil, fmt.Errorf("UnaryUnion.UnaryUnion: %w", err)
	}
	return union, nil
}
