package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/interface/catalog"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/gorilla/mux"
)

type mokeProvider struct {
	err      error
	granules []*entities.Granule
	requests []entities.SearchRequest
}

func (p *mokeProvider) SearchGranules(ctx context.Context, req *entities.SearchRequest) (entities.Granules, error) {
	p.requests = append(p.requests, *req)
	if p.err != nil {
		return entities.Granules{}, p.err
	}
	return entities.Granules{Granules: p.granules, Hits: len(p.granules)}, nil
}

var today = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func newTestCatalog(providers ...catalog.GranulesProvider) *Catalog {
	return &Catalog{
		Providers: providers,
		Datasets:  common.DefaultDatasets(),
		now:       func() time.Time { return today },
	}
}

func testGranule(id, wkt string) *entities.Granule {
	return &entities.Granule{
		Granule:     common.Granule{ConceptID: "C-" + id, GranuleUR: id, DataLinks: []string{"https://host/" + id + "_B01_WTR.tif"}},
		GeometryWKT: wkt,
	}
}

func TestValidateRequest(t *testing.T) {
	c := newTestCatalog()

	req := entities.SearchRequest{ShortName: "dswx-hls"}
	if err := c.ValidateRequest(&req); err != nil {
		t.Fatal(err)
	}
	if req.ShortName != "OPERA_L3_DSWX-HLS_V1" {
		t.Errorf("expecting OPERA_L3_DSWX-HLS_V1, found %s", req.ShortName)
	}
	if !req.EndTime.Equal(today) || !req.StartTime.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected default window %v - %v", req.StartTime, req.EndTime)
	}
	if req.MaxResults != DefaultMaxResults {
		t.Errorf("expecting %d max results, found %d", DefaultMaxResults, req.MaxResults)
	}

	// Only a start date: until today
	req = entities.SearchRequest{ShortName: "OPERA_L2_RTC-S1_V1", StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), MaxResults: 10}
	if err := c.ValidateRequest(&req); err != nil {
		t.Fatal(err)
	}
	if !req.EndTime.Equal(today) || req.MaxResults != 10 {
		t.Errorf("unexpected request %+v", req)
	}

	for name, req := range map[string]entities.SearchRequest{
		"no short name": {},
		"unknown":       {ShortName: "HLSL30"},
		"bbox size":     {ShortName: "RTC-S1", BBox: []float64{0, 0, 1}},
		"bbox order":    {ShortName: "RTC-S1", BBox: []float64{1, 0, 0, 1}},
		"bbox lonlat":   {ShortName: "RTC-S1", BBox: []float64{0, 0, 200, 1}},
		"point aoi":     {ShortName: "RTC-S1", AOI: &geojson.Geometry{Geometry: geom.Point{1, 2}}},
		"dates":         {ShortName: "RTC-S1", StartTime: today, EndTime: today.AddDate(0, 0, -1)},
	} {
		if err := c.ValidateRequest(&req); err == nil {
			t.Errorf("%s: expecting an error", name)
		}
	}

	c.AnyDataset = true
	req = entities.SearchRequest{ShortName: "HLSL30"}
	if err := c.ValidateRequest(&req); err != nil || req.ShortName != "HLSL30" {
		t.Errorf("unexpected %v %s", err, req.ShortName)
	}
}

func TestSearch(t *testing.T) {
	failing := &mokeProvider{err: errors.New("unavailable")}
	provider := &mokeProvider{granules: []*entities.Granule{testGranule("g1", ""), testGranule("g2", "")}}
	dir, err := os.MkdirTemp("", "catalog")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c := newTestCatalog(failing, provider)
	c.WorkingDir = dir
	granules, err := c.Search(context.Background(), &entities.SearchRequest{ShortName: "DSWx-S1", MaxResults: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(granules.Granules) != 2 || len(failing.requests) != 1 || len(provider.requests) != 1 {
		t.Errorf("unexpected search: %d granules", len(granules.Granules))
	}
	if provider.requests[0].ShortName != "OPERA_L3_DSWX-S1_V1" {
		t.Errorf("request was not validated: %s", provider.requests[0].ShortName)
	}
	if _, err := os.Stat(filepath.Join(dir, GranulesFileName)); err != nil {
		t.Errorf("granules were not written: %v", err)
	}

	if _, err := newTestCatalog(failing).Search(context.Background(), &entities.SearchRequest{ShortName: "DSWx-S1"}); err == nil {
		t.Error("expecting an error")
	}
	if _, err := newTestCatalog().Search(context.Background(), &entities.SearchRequest{ShortName: "DSWx-S1"}); err == nil {
		t.Error("expecting an error without provider")
	}
}

func TestCoverage(t *testing.T) {
	wkt, err := Coverage([]*entities.Granule{
		testGranule("g1", "POLYGON ((129 -11, 130 -11, 130 -12, 129 -12, 129 -11))"),
		testGranule("g2", "POLYGON ((130 -12, 130 -11, 131 -11, 131 -12, 130 -12))"),
		testGranule("g3", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(wkt, "POLYGON") {
		t.Errorf("expecting a single polygon, found %s", wkt)
	}
	if _, err := Coverage([]*entities.Granule{testGranule("g3", "")}); err == nil {
		t.Error("expecting an error")
	}
	if _, err := CoverageGeometry(nil); err == nil {
		t.Error("expecting an error")
	}
}

func TestHandlers(t *testing.T) {
	provider := &mokeProvider{granules: []*entities.Granule{testGranule("g1", "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))")}}
	c := newTestCatalog(provider)
	r := mux.NewRouter()
	c.AddHandler(r)
	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/catalog/granules", "application/json", strings.NewReader(`{"short_name":"dswx-hls","bbox":[0,0,1,1]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status %s", resp.Status)
	}
	var granules entities.Granules
	if err := json.NewDecoder(resp.Body).Decode(&granules); err != nil {
		t.Fatal(err)
	}
	if len(granules.Granules) != 1 || granules.Granules[0].GranuleUR != "g1" {
		t.Errorf("unexpected granules %+v", granules)
	}

	fc, _ := json.Marshal(granules)
	resp2, err := http.Post(ts.URL+"/catalog/coverage", "application/json", strings.NewReader(string(fc)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 200 {
		t.Errorf("unexpected status %s", resp2.Status)
	}

	resp4, err := http.Post(ts.URL+"/catalog/coverage?format=geojson", "application/json", strings.NewReader(string(fc)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp4.Body.Close()
	var coverage struct{ Type string }
	if err := json.NewDecoder(resp4.Body).Decode(&coverage); err != nil || coverage.Type != "Polygon" {
		t.Errorf("unexpected geojson coverage %v %+v", err, coverage)
	}

	resp3, err := http.Post(ts.URL+"/catalog/granules", "application/json", strings.NewReader(`{"short_name":"unknown"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != 400 {
		t.Errorf("expecting 400, found %s", resp3.Status)
	}
}
