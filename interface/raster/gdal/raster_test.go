package gdal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/opera-mosaic/mosaic"
)

func createGeoTiff(t *testing.T, path string, epsg int, originX, originY float64) {
	t.Helper()
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	sr, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		t.Fatal(err)
	}
	if err := ds.SetGeoTransform([6]float64{originX, 30, 0, originY, 0, -30}); err != nil {
		t.Fatal(err)
	}
}

func TestRaster(t *testing.T) {
	Register()
	ctx := context.Background()
	dir := t.TempDir()
	a := filepath.Join(dir, "a_B01_WTR.tif")
	b := filepath.Join(dir, "b_B01_WTR.tif")
	createGeoTiff(t, a, 32612, 500000, 4000000)
	createGeoTiff(t, b, 32612, 503000, 4000000)

	r, err := Connector{}.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}

	sr, err := r.Probe(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if sr.Key() != "EPSG:32612" || sr.ShortName() != "UTM zone 12N" {
		t.Errorf("unexpected CRS %s / %s", sr.Key(), sr.ShortName())
	}
	if _, err := r.Probe(ctx, filepath.Join(dir, "missing.tif")); err == nil {
		t.Errorf("probe of a missing file must fail")
	}

	vrt := filepath.Join(dir, mosaic.VRTFileName(sr.ShortName()))
	if err := r.BuildVRT(ctx, vrt, []string{a, b}, mosaic.DefaultVRTOptions); err != nil {
		t.Fatal(err)
	}
	info, err := r.Describe(ctx, vrt, mosaic.SpatialRef{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 200 || info.Height != 100 {
		t.Errorf("unexpected size %dx%d", info.Width, info.Height)
	}
	if *info.Extent != [4]float64{500000, 3997000, 506000, 4000000} {
		t.Errorf("unexpected extent %v", *info.Extent)
	}

	wgs84, err := ParseSpatialRef("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	info, err = r.Describe(ctx, vrt, wgs84)
	if err != nil {
		t.Fatal(err)
	}
	// UTM zone 12N is between -114 and -108 degrees
	if e := info.DisplayExtent; e.MinX() < -114 || e.MaxX() > -108 || e.MinY() < 35 || e.MaxY() > 37 {
		t.Errorf("unexpected reprojected extent %v", *e)
	}
	if err := r.BuildVRT(ctx, vrt, []string{filepath.Join(dir, "missing.tif")}, mosaic.DefaultVRTOptions); err == nil {
		t.Errorf("BuildVRT of missing files must fail")
	}
}

type staticSession []string

func (s staticSession) ConfigOptions() []string { return s }

func TestConnector(t *testing.T) {
	c := Connector{NewSession: func(ctx context.Context) (Session, error) {
		return staticSession{"GDAL_DISABLE_READDIR_ON_OPEN=EMPTY_DIR"}, nil
	}}
	r, err := c.Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if opts := r.(*Raster).options; len(opts) != 1 {
		t.Errorf("unexpected options %v", opts)
	}
	c.NewSession = func(ctx context.Context) (Session, error) { return nil, fmt.Errorf("401") }
	if _, err := c.Connect(context.Background()); err == nil {
		t.Errorf("Connect must fail")
	}
}

func TestSpatialRefFromWKT(t *testing.T) {
	sr := SpatialRefFromWKT(`PROJCS["WGS 84 / UTM zone 13N",GEOGCS["WGS 84"]]`, "", "")
	if sr.Name != "WGS 84 / UTM zone 13N" || sr.ShortName() != "UTM zone 13N" {
		t.Errorf("unexpected %+v", sr)
	}
}
