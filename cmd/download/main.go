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

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/downloader"
	"github.com/airbusgeo/opera-mosaic/interface/earthdata"
	"github.com/airbusgeo/opera-mosaic/interface/provider"
	"github.com/airbusgeo/opera-mosaic/interface/raster/gdal"
	"github.com/airbusgeo/opera-mosaic/processor"
	"github.com/airbusgeo/opera-mosaic/service/log"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type config struct {
	Granules string
	Select   string
	Example  string
	Show     string
	CacheDir string
	Workers  int
	Viewer   string
	Datasets string
	Debug    bool

	// S3 mirror of the granules
	AWSDefaultConfig bool
	S3Endpoint       string

	PsProject       string
	JobQueue        string
	EventQueue      string
	PgqDbConnection string

	Earthdata earthdata.Config
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Granules, "granules", "", "granules file (geojson written by the search command)")
	flag.StringVar(&config.Select, "select", "", "ids of the granules to download (comma separated, default: all)")
	flag.StringVar(&config.Example, "example", "", "name of a file of the band to download (e.g. OPERA_L3_DSWx-HLS_..._B01_WTR.tif). Default: all the files")
	flag.StringVar(&config.Show, "show", "", "link of a single file to display (streamed if possible, downloaded otherwise)")
	flag.StringVar(&config.CacheDir, "cache-dir", filepath.Join(os.TempDir(), downloader.DefaultCacheDir), "directory of the downloaded files")
	flag.IntVar(&config.Workers, "workers", downloader.DefaultWorkers, "parallel downloads")
	flag.StringVar(&config.Viewer, "viewer", "", "command launched with the manifest and the layer of -show (e.g. qgis)")
	flag.StringVar(&config.Datasets, "datasets", "", "toml file overriding or extending the OPERA collections")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")
	flag.BoolVar(&config.AWSDefaultConfig, "aws-default-config", false, "download s3 links with the default aws credentials (env, shared config, instance role) when no DAAC credentials are available (mirror of the granules)")
	flag.StringVar(&config.S3Endpoint, "s3-endpoint", "", "endpoint of the s3 mirror (optional, path-style addressing)")

	flag.StringVar(&config.PgqDbConnection, "pgq-connection", "", "enable pgq messaging system with a connection to the database")
	flag.StringVar(&config.PsProject, "ps-project", "", "pubsub subscription project (gcp only/not required in local usage)")
	flag.StringVar(&config.JobQueue, "job-queue", "", "name of the queue for download jobs (pgqueue or pubsub subscription). If defined, the downloads are requested through the queue")
	flag.StringVar(&config.EventQueue, "event-queue", "", "name of the queue for job events (pgqueue or pubsub topic)")

	config.Earthdata.SetFlags()
	flag.Parse()

	if config.Granules == "" && config.Show == "" && config.JobQueue == "" {
		return nil, fmt.Errorf("missing granules, show or job-queue config flag")
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

	var granules []*entities.Granule
	if config.Granules != "" {
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
		datasets, err := common.LoadDatasets(config.Datasets)
		if err != nil {
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

	// Load file providers
	sessions := config.Earthdata.NewSessions(nil)
	session, err := sessions.Get(ctx)
	if err != nil {
		return err
	}
	var providers []provider.FileProvider
	providerNames := []string{"HTTPS"}
	providers = append(providers, provider.NewHTTPSProvider(session.Token.AccessToken))
	if session.S3 != nil {
		awsConfig, err := session.AWSConfig()
		if err != nil {
			return err
		}
		providerNames = append(providerNames, "S3 ("+string(config.Earthdata.DAAC)+")")
		providers = append(providers, provider.NewS3Provider(awsConfig, ""))
	} else if config.AWSDefaultConfig {
		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(session.Region))
		if err != nil {
			return fmt.Errorf("aws.LoadDefaultConfig: %w", err)
		}
		providerNames = append(providerNames, "S3 (default credentials)")
		providers = append(providers, provider.NewS3Provider(awsConfig, config.S3Endpoint))
	}
	providerNames = append(providerNames, "URI")
	providers = append(providers, provider.NewURIProvider())
	log.Logger(ctx).Debug("downloading from " + strings.Join(providerNames, ", ") + " to " + config.CacheDir)

	d := &downloader.Downloader{Providers: providers, CacheDir: config.CacheDir, Workers: config.Workers}

	if config.Show != "" {
		return show(ctx, config, d, gdal.Connector{
			NewSession: func(ctx context.Context) (gdal.Session, error) { return session, nil },
		})
	}

	p := &processor.Processor{Downloader: d, Access: config.Earthdata.Access}
	if config.JobQueue != "" {
		return work(ctx, config, p)
	}

	job := common.DownloadJob{ID: uuid.New().String(), Example: config.Example, Granules: entities.Common(granules)}
	result, files, err := p.ProcessDownload(ctx, job)
	for _, f := range files {
		status := "downloaded"
		if f.Error != "" {
			status = "failed: " + f.Error
		} else if f.Cached {
			status = "cached"
		}
		fmt.Printf("%s\t%s\t%s\n", f.GranuleID, f.Path, status)
	}
	if err != nil {
		return err
	}
	log.Logger(ctx).Info(result.Message)
	return nil
}

// show displays a single file in a project of the cache directory, then launches the viewer
func show(ctx context.Context, config *config, d *downloader.Downloader, connector gdal.Connector) error {
	raster, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	p := processor.Processor{Viewer: config.Viewer}
	display, err := p.NewProject(filepath.Join(config.CacheDir, "show"), "")
	if err != nil {
		return err
	}
	shown, err := d.ShowFile(ctx, raster, display, config.Show)
	if err != nil {
		return err
	}
	how := "downloaded"
	if shown.Streamed {
		how = "streamed"
	}
	log.Logger(ctx).Sugar().Infof("%s %s (%s)", shown.Layer.Name, how, shown.Layer.Path)
	fmt.Println(display.ManifestPath())
	return display.View(ctx)
}
