package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/airbusgeo/opera-mosaic/catalog"
	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	catalogProvider "github.com/airbusgeo/opera-mosaic/interface/catalog"
	"github.com/airbusgeo/opera-mosaic/interface/catalog/cmr"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type config struct {
	Dataset    string
	BBox       string
	AOI        string
	Start      string
	End        string
	MaxResults int
	Page       int
	Months     int
	AnyDataset bool
	Datasets   string
	WorkingDir string
	CMRURL     string
	CMRRate    float64
	Listen     string
	Debug      bool
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Dataset, "dataset", "", "collection short name or product (e.g. OPERA_L3_DSWX-HLS_V1, DSWX-HLS)")
	flag.StringVar(&config.BBox, "bbox", "", "bounding box: xmin,ymin,xmax,ymax (lon/lat)")
	flag.StringVar(&config.AOI, "aoi", "", "geojson file of the area of interest (polygons)")
	flag.StringVar(&config.Start, "start", "", "start date (default: -months before the end)")
	flag.StringVar(&config.End, "end", "", "end date (default: today)")
	flag.IntVar(&config.MaxResults, "max-results", catalog.DefaultMaxResults, "max number of granules")
	flag.IntVar(&config.Page, "page", 0, "page of results (first: 0)")
	flag.IntVar(&config.Months, "months", catalog.DefaultMonths, "temporal window (back from today) when no date is given")
	flag.BoolVar(&config.AnyDataset, "any-dataset", false, "allow collections that are not OPERA datasets")
	flag.StringVar(&config.Datasets, "datasets", "", "toml file overriding or extending the OPERA collections")
	flag.StringVar(&config.WorkingDir, "workdir", ".", "directory of the results ("+catalog.GranulesFileName+", "+catalog.CoverageFileName+")")
	flag.StringVar(&config.CMRURL, "cmr-url", cmr.CMRSearchURL, "CMR granule search endpoint")
	flag.Float64Var(&config.CMRRate, "cmr-rate", 0, "max requests by second to the CMR (default: 5)")
	flag.StringVar(&config.Listen, "listen", "", "address of the http api (e.g. :8080). If defined, the searches are requested through the api")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")
	flag.Parse()

	if config.Listen == "" && config.Dataset == "" {
		return nil, fmt.Errorf("missing dataset config flag")
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
	cmrProvider := cmr.NewProvider(config.CMRRate)
	cmrProvider.URL = config.CMRURL
	c := catalog.Catalog{
		Providers:     []catalogProvider.GranulesProvider{cmrProvider},
		Datasets:      datasets,
		AnyDataset:    config.AnyDataset,
		DefaultMonths: config.Months,
		MaxResults:    config.MaxResults,
	}

	if config.Listen != "" {
		return serve(ctx, config.Listen, &c)
	}

	req, err := newSearchRequest(config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(config.WorkingDir, 0766); err != nil {
		return fmt.Errorf("make directory %s: %w", config.WorkingDir, err)
	}
	c.WorkingDir = config.WorkingDir
	granules, err := c.Search(ctx, &req)
	if err != nil {
		return err
	}
	for _, g := range granules.Granules {
		fmt.Printf("%s\t%s\t%d files\n", g.ID(), g.BeginDate.Format(time.RFC3339), len(g.DataLinks))
	}
	log.Logger(ctx).Sugar().Infof("%d/%d granules written in %s", len(granules.Granules), granules.Hits, filepath.Join(config.WorkingDir, catalog.GranulesFileName))

	if len(granules.Granules) > 0 {
		coverage, err := catalog.Coverage(granules.Granules)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(config.WorkingDir, catalog.CoverageFileName), []byte(coverage), 0644); err != nil {
			return fmt.Errorf("write coverage: %w", err)
		}
	}
	return nil
}

func newSearchRequest(config *config) (entities.SearchRequest, error) {
	req := entities.SearchRequest{
		ShortName:  config.Dataset,
		MaxResults: config.MaxResults,
		Page:       config.Page,
	}
	var err error
	if config.BBox != "" {
		if req.BBox, err = entities.ParseBBox(config.BBox); err != nil {
			return req, err
		}
	}
	if config.AOI != "" {
		b, err := os.ReadFile(config.AOI)
		if err != nil {
			return req, fmt.Errorf("read aoi: %w", err)
		}
		g, err := service.UnmarshalGeometry(b)
		if err != nil {
			return req, fmt.Errorf("aoi %s: %w", config.AOI, err)
		}
		req.AOI = &geojson.Geometry{Geometry: g}
	}
	if config.Start != "" {
		if req.StartTime, err = entities.ParseDate(config.Start); err != nil {
			return req, err
		}
	}
	if config.End != "" {
		if req.EndTime, err = entities.ParseDate(config.End); err != nil {
			return req, err
		}
	}
	return req, nil
}

// serve exposes the catalog through http
func serve(ctx context.Context, addr string, c *catalog.Catalog) error {
	r := mux.NewRouter()
	c.AddHandler(r)
	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	s := http.Server{
		Addr:    addr,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(r),
	}

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Fatal("catalog.ListenAndServe", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cncl := context.WithTimeout(context.Background(), 30*time.Second)
	defer cncl()
	return s.Shutdown(sctx)
}
