package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/downloader"
	"github.com/airbusgeo/opera-mosaic/interface/display/project"
	"github.com/airbusgeo/opera-mosaic/interface/provider"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service"
)

var (
	utm12N = mosaic.SpatialRef{Authority: "EPSG", Code: "32612", Name: "WGS 84 / UTM zone 12N"}
	utm13N = mosaic.SpatialRef{Authority: "EPSG", Code: "32613", Name: "WGS 84 / UTM zone 13N"}
)

type mokeRaster struct {
	crs     map[string]mosaic.SpatialRef // by tile
	extents map[string][4]float64        // by CRS key (default: 0,0,10,10)
	reproj  map[string][4]float64        // by "SRC>DST" CRS keys
	vrts    map[string]string            // first source by VRT path
}

func (r *mokeRaster) Probe(ctx context.Context, path string) (mosaic.SpatialRef, error) {
	for tile, crs := range r.crs {
		if strings.Contains(path, tile) {
			return crs, nil
		}
	}
	return mosaic.SpatialRef{}, fmt.Errorf("cannot open %s", path)
}

func (r *mokeRaster) BuildVRT(ctx context.Context, dst string, srcs []string, opts mosaic.VRTOptions) error {
	if r.vrts == nil {
		r.vrts = map[string]string{}
	}
	r.vrts[dst] = srcs[0]
	return os.WriteFile(dst, []byte("<VRTDataset/>"), 0644)
}

func (r *mokeRaster) Describe(ctx context.Context, path string, target mosaic.SpatialRef) (mosaic.LayerInfo, error) {
	crs, _ := r.Probe(ctx, r.vrts[path])
	ext, ok := r.extents[crs.Key()]
	if !ok {
		ext = [4]float64{0, 0, 10, 10}
	}
	info := mosaic.LayerInfo{Width: 10, Height: 10, CRS: crs, Extent: mosaic.NewExtent(ext), DisplayExtent: mosaic.NewExtent(ext)}
	if !target.IsZero() && !target.Equal(crs) {
		if rext, ok := r.reproj[crs.Key()+">"+target.Key()]; ok {
			info.DisplayExtent = mosaic.NewExtent(rext)
		}
	}
	return info, nil
}

type mokeConnector struct {
	raster *mokeRaster
	err    error
}

func (c *mokeConnector) Connect(ctx context.Context) (mosaic.Raster, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.raster, nil
}

func granule(tile string, bands ...string) common.Granule {
	id := fmt.Sprintf("OPERA_L3_DSWx-HLS_%s_20231006T175631Z_20231008T142503Z_L8_30_v1.1", tile)
	g := common.Granule{GranuleUR: id}
	for _, b := range bands {
		g.DataLinks = append(g.DataLinks, "https://host/"+id+"_"+b+".tif")
		g.S3Links = append(g.S3Links, "s3://bucket/"+id+"_"+b+".tif")
	}
	return g
}

func newTestProcessor(t *testing.T) (*Processor, *mokeConnector) {
	connector := &mokeConnector{raster: &mokeRaster{crs: map[string]mosaic.SpatialRef{"T12STF": utm12N, "T12STG": utm12N, "T13SBA": utm13N}}}
	return &Processor{
		Connector:  connector,
		WorkingDir: t.TempDir(),
		Access:     common.AccessExternal,
		ParseCRS: func(input string) (mosaic.SpatialRef, error) {
			if input == "EPSG:32612" {
				return utm12N, nil
			}
			return mosaic.SpatialRef{}, fmt.Errorf("unknown crs %s", input)
		},
	}, connector
}

func TestSources(t *testing.T) {
	g1 := granule("T12STF", "B01_WTR")
	g2 := granule("T12STG", "B01_WTR")
	g2.Access = common.AccessExternal
	srcs := Sources([]common.Granule{g1, g2}, common.AccessDirect)
	if l := srcs[0].Links(); l[0] != g1.S3Links[0] {
		t.Errorf("the default access must be used, found %v", l)
	}
	if l := srcs[1].Links(); l[0] != g2.DataLinks[0] {
		t.Errorf("the access of the granule must be kept, found %v", l)
	}
}

func TestProcessMosaic(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProcessor(t)
	storageDir := t.TempDir()
	storage, err := service.NewStorageStrategy(ctx, storageDir)
	if err != nil {
		t.Fatal(err)
	}
	p.Storage = storage

	job := common.MosaicJob{
		ID:        "job1",
		Example:   "OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif",
		Granules:  []common.Granule{granule("T12STF", "B01_WTR", "B02_BWTR"), granule("T12STG", "B02_BWTR"), granule("T13SBA", "B01_WTR")},
		CanvasCRS: "EPSG:32612",
	}
	result, report, err := p.ProcessMosaic(ctx, job)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != common.StatusDONE || result.Type != common.ResultTypeMosaic || len(result.Layers) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Layers[0].CRS != "EPSG:32612" || result.Layers[0].Scenes != 1 || !strings.Contains(result.Message, "1 granules without the band") {
		t.Errorf("unexpected result %+v", result)
	}
	if len(report.NotFound) != 1 {
		t.Errorf("expecting 1 granule without the band, found %v", report.NotFound)
	}
	workdir := filepath.Join(p.WorkingDir, job.ID)
	if _, err := os.Stat(filepath.Join(workdir, ReportFileName)); err != nil {
		t.Error(err)
	}
	m, err := project.LoadManifest(filepath.Join(workdir, project.ManifestName+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.CanvasCRS.Equal(utm12N) || len(m.Layers) != 2 {
		t.Errorf("unexpected manifest %+v", m)
	}
	if _, err := os.Stat(filepath.Join(storageDir, job.ID, service.ArtifactFileName(project.BundleName, service.ExtensionZIP))); err != nil {
		t.Errorf("the bundle must be exported: %v", err)
	}
}

func TestProcessMosaicAdoptedCanvas(t *testing.T) {
	ctx := context.Background()
	p, connector := newTestProcessor(t)
	connector.raster.extents = map[string][4]float64{
		utm12N.Key(): {500000, 3600000, 600000, 3700000},
		utm13N.Key(): {200000, 3600000, 300000, 3700000},
	}
	connector.raster.reproj = map[string][4]float64{utm13N.Key() + ">" + utm12N.Key(): {780000, 3590000, 880000, 3700000}}

	job := common.MosaicJob{
		ID:       "adopted",
		Example:  "OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif",
		Granules: []common.Granule{granule("T12STF", "B01_WTR"), granule("T12STG", "B01_WTR"), granule("T13SBA", "B01_WTR")},
	}
	_, report, err := p.ProcessMosaic(ctx, job)
	if err != nil {
		t.Fatal(err)
	}
	m, err := project.LoadManifest(filepath.Join(p.WorkingDir, job.ID, project.ManifestName+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.CanvasCRS.Equal(utm12N) {
		t.Errorf("the canvas must adopt the crs of the first layer, found %s", m.CanvasCRS)
	}
	// union of both zones in UTM 12N, scaled by 1.05
	expected := [4]float64{490500, 3587250, 889500, 3702750}
	for i := range expected {
		if math.Abs(report.Extent[i]-expected[i]) > 1e-6 {
			t.Fatalf("expecting extent %v, found %v", expected, *report.Extent)
		}
	}
}

func TestProcessMosaicErrors(t *testing.T) {
	ctx := context.Background()
	p, connector := newTestProcessor(t)
	example := "OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif"

	if _, _, err := p.ProcessMosaic(ctx, common.MosaicJob{ID: "job"}); err == nil {
		t.Error("a job without example must fail")
	}
	if _, _, err := p.ProcessMosaic(ctx, common.MosaicJob{ID: "job", Example: example, CanvasCRS: "EPSG:1"}); err == nil {
		t.Error("an invalid canvas crs must fail")
	}

	result, _, err := p.ProcessMosaic(ctx, common.MosaicJob{ID: "job", Example: example})
	if !errors.Is(err, mosaic.ErrNoGranules) || service.Temporary(err) || result.Status != common.StatusFAILED {
		t.Errorf("expecting a permanent ErrNoGranules, got %v (%+v)", err, result)
	}

	result, _, err = p.ProcessMosaic(ctx, common.MosaicJob{ID: "job", Example: example, Granules: []common.Granule{granule("T10AAA", "B01_WTR")}})
	if !errors.Is(err, mosaic.ErrNoAccessibleFiles) || service.Temporary(err) {
		t.Errorf("expecting a permanent ErrNoAccessibleFiles, got %v", err)
	}

	connector.err = fmt.Errorf("login failed")
	_, _, err = p.ProcessMosaic(ctx, common.MosaicJob{ID: "job", Example: example, Granules: []common.Granule{granule("T12STF", "B01_WTR")}})
	if !errors.Is(err, mosaic.ErrSession) || !service.Temporary(err) {
		t.Errorf("expecting a temporary ErrSession, got %v", err)
	}
}

type mokeProvider struct {
	missing string
}

func (p *mokeProvider) Name() string              { return "moke" }
func (p *mokeProvider) Supports(link string) bool { return strings.HasPrefix(link, "https://") }
func (p *mokeProvider) Download(ctx context.Context, link, localFile string) error {
	if strings.Contains(link, p.missing) {
		return fmt.Errorf("not found: %s", link)
	}
	return os.WriteFile(localFile, []byte(link), 0644)
}

func TestProcessDownload(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProcessor(t)
	p.Downloader = &downloader.Downloader{Providers: []provider.FileProvider{&mokeProvider{missing: "T13SBA"}}, CacheDir: t.TempDir()}

	job := common.DownloadJob{
		ID:       "dl",
		Example:  "OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif",
		Granules: []common.Granule{granule("T12STF", "B01_WTR", "B02_BWTR"), granule("T13SBA", "B01_WTR")},
	}
	result, files, err := p.ProcessDownload(ctx, job)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || result.Status != common.StatusDONE || len(result.Layers) != 1 || !strings.Contains(result.Message, "1 failed") {
		t.Errorf("unexpected result %+v", result)
	}

	job.Example = ""
	job.Granules = job.Granules[1:]
	if result, _, err = p.ProcessDownload(ctx, job); err == nil || result.Status != common.StatusFAILED {
		t.Errorf("expecting a failure, got %+v", result)
	}
}
