package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/airbusgeo/opera-mosaic/catalog"
	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/interface/earthdata"
	"github.com/airbusgeo/opera-mosaic/interface/raster/gdal"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/processor"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type config struct {
	// One-shot
	Granules   string
	Select     string
	Example    string
	Product    string
	CanvasCRS  string
	Footprints bool

	WorkingDir string
	StorageURI string
	Viewer     string
	Datasets   string
	GS         bool
	Resampling string
	AddAlpha   bool
	Debug      bool

	// Server
	Listen   string
	APIToken string
	CMRURL   string
	CMRRate  float64

	// Worker
	PsProject       string
	JobQueue        string
	EventQueue      string
	PgqDbConnection string

	Earthdata earthdata.Config
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Granules, "granules", "", "granules file (geojson written by the search command)")
	flag.StringVar(&config.Select, "select", "", "ids of the granules to mosaic (comma separated, default: all)")
	flag.StringVar(&config.Example, "example", "", "name of a file of the band to mosaic (e.g. OPERA_L3_DSWx-HLS_..._B01_WTR.tif). Default: the first file of the granules")
	flag.StringVar(&config.Product, "product", mosaic.DefaultProduct, "prefix of the layer names")
	flag.StringVar(&config.CanvasCRS, "canvas-crs", "", "crs of the canvas (EPSG:xxxx, WKT...). Default: crs of the first layer")
	flag.BoolVar(&config.Footprints, "footprints", false, "add the footprints of the granules to the project")

	flag.StringVar(&config.WorkingDir, "workdir", filepath.Join(os.TempDir(), "opera_mosaic"), "directory of the virtual mosaics (one sub-directory per job)")
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri (currently supported: local, gs). To export the bundle of the mosaics (optional)")
	flag.StringVar(&config.Viewer, "viewer", "", "command launched with the manifest and the layers at the end of a one-shot mosaic (e.g. qgis)")
	flag.StringVar(&config.Datasets, "datasets", "", "toml file overriding or extending the OPERA collections")
	flag.BoolVar(&config.GS, "gs", false, "enable gs:// links")
	flag.StringVar(&config.Resampling, "resampling", mosaic.DefaultVRTOptions.Resampling, "resampling of the virtual mosaics")
	flag.BoolVar(&config.AddAlpha, "add-alpha", false, "add an alpha band to the virtual mosaics")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")

	flag.StringVar(&config.Listen, "listen", "", "address of the http api (e.g. :8080). If defined, the mosaics are requested through the api")
	flag.StringVar(&config.APIToken, "api-token", "", "bearer token required by the http api (optional)")
	flag.StringVar(&config.CMRURL, "cmr-url", "", "CMR granule search endpoint of the http api (default: NASA CMR)")
	flag.Float64Var(&config.CMRRate, "cmr-rate", 0, "max requests by second to the CMR (default: 5)")

	flag.StringVar(&config.PgqDbConnection, "pgq-connection", "", "enable pgq messaging system with a connection to the database")
	flag.StringVar(&config.PsProject, "ps-project", "", "pubsub subscription project (gcp only/not required in local usage)")
	flag.StringVar(&config.JobQueue, "job-queue", "", "name of the queue for mosaic jobs (pgqueue or pubsub subscription). If defined, the mosaics are requested through the queue")
	flag.StringVar(&config.EventQueue, "event-queue", "", "name of the queue for job events (pgqueue or pubsub topic)")

	config.Earthdata.SetFlags()
	flag.Parse()

	if config.WorkingDir == "" {
		return nil, fmt.Errorf("missing workdir config flag")
	}
	if config.Listen == "" && config.JobQueue == "" && config.Granules == "" {
		return nil, fmt.Errorf("missing granules, listen or job-queue config flag")
	}
	return &config, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}
	log.SetDebug(config.Debug)

	datasets, err := common.LoadDatasets(config.Datasets)
	if err != nil {
		return err
	}

	// One-shot: the granules are loaded first to find the DAAC of the collection
	var granules []*entities.Granule
	if config.Listen == "" && config.JobQueue == "" {
		gs, err := entities.LoadGranules(config.Granules)
		if err != nil {
			return err
		}
		var ids []string
		if config.Select != "" {
			ids = strings.Split(config.Select, ",")
		}
		if granules, err = gs.Select(ids); err != nil {
			return err
		}
		if config.Earthdata.Access == common.AccessDirect && config.Earthdata.DAAC == "" && len(granules) > 0 {
			if info, ok := datasets.Get(granules[0].ShortName); ok {
				config.Earthdata.DAAC = info.DAAC
			}
		}
	}
	if err := config.Earthdata.Validate(); err != nil {
		return err
	}

	sessions := config.Earthdata.NewSessions(nil)
	p := &processor.Processor{
		Connector: gdal.Connector{
			NewSession: func(ctx context.Context) (gdal.Session, error) {
				s, err := sessions.Get(ctx)
				if err != nil {
					return nil, err
				}
				return s, nil
			},
			GS: config.GS,
		},
		WorkingDir: config.WorkingDir,
		Access:     config.Earthdata.Access,
		Options: mosaic.VRTOptions{
			Resampling: config.Resampling,
			SrcNoData:  mosaic.DefaultVRTOptions.SrcNoData,
			VRTNoData:  mosaic.DefaultVRTOptions.VRTNoData,
			AddAlpha:   config.AddAlpha,
		},
		ParseCRS: gdal.ParseSpatialRef,
	}
	if config.StorageURI != "" {
		if p.Storage, err = service.NewStorageStrategy(ctx, config.StorageURI); err != nil {
			return fmt.Errorf("storage %s: %w", config.StorageURI, err)
		}
	}

	switch {
	case config.Listen != "":
		return serve(ctx, config, datasets, p)
	case config.JobQueue != "":
		return work(ctx, config, p)
	}
	return mosaicOnce(ctx, config, p, entities.Granules{Granules: granules})
}

// mosaicOnce creates the mosaics of the granules, then launches the viewer
func mosaicOnce(ctx context.Context, config *config, p *processor.Processor, granules entities.Granules) error {
	job := common.MosaicJob{
		ID:        uuid.New().String(),
		Product:   config.Product,
		Example:   config.Example,
		Granules:  entities.Common(granules.Granules),
		CanvasCRS: config.CanvasCRS,
	}
	if job.Example == "" {
		files := granules.Files()
		if len(files) == 0 {
			return mosaic.ErrNoGranules
		}
		job.Example = files[0]
		log.Logger(ctx).Sugar().Infof("example file: %s", job.Example)
	}
	ctx = log.With(ctx, "job", job.ID)

	p.Viewer = config.Viewer
	display, err := p.NewJobProject(job)
	if err != nil {
		return err
	}
	if config.Footprints {
		if err := service.ToJSON(granules, display.Dir(), catalog.GranulesFileName); err != nil {
			return err
		}
		if err := display.AddVector(ctx, "footprints", filepath.Join(display.Dir(), catalog.GranulesFileName)); err != nil {
			return err
		}
	}

	result, report, err := p.Mosaic(ctx, job, display)
	if report != nil {
		for _, o := range report.Outcomes {
			log.Logger(ctx).Sugar().Debugf("granule %d %s: %s %s %s", o.Index, o.GranuleID, o.Status, o.CRSKey, o.Reason)
		}
	}
	if err != nil {
		return err
	}
	log.Logger(ctx).Info(result.Message)
	fmt.Println(display.ManifestPath())
	return display.View(ctx)
}
