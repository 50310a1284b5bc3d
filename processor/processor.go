package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/downloader"
	"github.com/airbusgeo/opera-mosaic/interface/display/project"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"go.uber.org/zap"
)

// ReportFileName is the name of the report of a mosaic job, written in its working directory
const ReportFileName = "report.json"

// Processor processes the mosaic and download jobs
type Processor struct {
	Connector  mosaic.Connector
	Downloader *downloader.Downloader
	Storage    service.Storage // Optional: the bundles of the mosaic jobs are exported
	WorkingDir string
	Access     common.Access // Default access of the granules
	Options    mosaic.VRTOptions
	Viewer     string
	// ParseCRS returns the canvas CRS of a job. Required if the jobs define a canvas CRS.
	ParseCRS func(input string) (mosaic.SpatialRef, error)
}

// Sources returns the granules as mosaic sources, with the default access if not defined
func Sources(granules []common.Granule, access common.Access) []mosaic.GranuleSource {
	srcs := make([]mosaic.GranuleSource, len(granules))
	for i, g := range granules {
		if g.Access == "" {
			g.Access = access
		}
		srcs[i] = g
	}
	return srcs
}

// NewProject creates the display of a job in dir
func (p *Processor) NewProject(dir, canvasCRS string) (*project.Project, error) {
	var canvas mosaic.SpatialRef
	if canvasCRS != "" {
		if p.ParseCRS == nil {
			return nil, fmt.Errorf("NewProject: canvas crs is not supported")
		}
		var err error
		if canvas, err = p.ParseCRS(canvasCRS); err != nil {
			return nil, fmt.Errorf("NewProject.%w", err)
		}
	}
	var opts []project.Option
	if p.Viewer != "" {
		opts = append(opts, project.WithViewer(p.Viewer))
	}
	return project.New(dir, canvas, opts...), nil
}

// ProcessMosaic creates the mosaic layers of the job in WorkingDir/job.ID, writes its report and exports the bundle (if Storage is defined).
// The returned error is temporary if the job can be retried.
func (p *Processor) ProcessMosaic(ctx context.Context, job common.MosaicJob) (common.Result, *mosaic.Report, error) {
	display, err := p.NewJobProject(job)
	if err != nil {
		return common.Result{Type: common.ResultTypeMosaic, ID: job.ID, Status: common.StatusFAILED, Message: err.Error()}, nil, err
	}
	return p.Mosaic(ctx, job, display)
}

// NewJobProject creates the working directory of the job and its display
func (p *Processor) NewJobProject(job common.MosaicJob) (*project.Project, error) {
	if job.ID == "" || job.Example == "" {
		return nil, fmt.Errorf("NewJobProject: invalid job (id: '%s', example: '%s')", job.ID, job.Example)
	}
	workdir := filepath.Join(p.WorkingDir, job.ID)
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	display, err := p.NewProject(workdir, job.CanvasCRS)
	if err != nil {
		return nil, fmt.Errorf("NewJobProject.%w", err)
	}
	return display, nil
}

// Mosaic creates the mosaic layers of the job in the directory of the display (see ProcessMosaic)
func (p *Processor) Mosaic(ctx context.Context, job common.MosaicJob, display *project.Project) (common.Result, *mosaic.Report, error) {
	result := common.Result{Type: common.ResultTypeMosaic, ID: job.ID, Status: common.StatusFAILED}
	workdir := display.Dir()
	m := mosaic.New(p.Connector, display,
		mosaic.WithDir(workdir),
		mosaic.WithProduct(job.Product),
		mosaic.WithVRTOptions(p.Options))

	report, err := m.Run(ctx, Sources(job.Granules, p.Access), job.Example)
	if report != nil {
		if e := service.ToJSON(report, workdir, ReportFileName); e != nil {
			log.Logger(ctx).Warn("failed to write the report", zap.Error(e))
		}
	}
	if err != nil {
		if errors.Is(err, mosaic.ErrSession) && !service.Temporary(err) {
			err = service.MakeTemporary(err)
		}
		result.Message = err.Error()
		return result, report, fmt.Errorf("Mosaic.%w", err)
	}

	if p.Storage != nil {
		uri, err := display.Bundle(ctx, p.Storage, job.ID)
		if err != nil {
			return result, report, service.MakeTemporary(fmt.Errorf("Mosaic.%w", err))
		}
		log.Logger(ctx).Sugar().Infof("bundle exported to %s", uri)
	}

	result.Status = common.StatusDONE
	result.Layers = make([]common.LayerResult, len(report.Layers))
	for i, l := range report.Layers {
		result.Layers[i] = common.LayerResult{Name: l.Name, File: l.Path, CRS: l.CRSKey, Scenes: l.Scenes}
	}
	result.Message = fmt.Sprintf("%d layer(s), %d scenes", len(report.Layers), report.Scenes())
	if len(report.NotFound) > 0 || len(report.AccessFailed) > 0 || len(report.FailedGroups) > 0 {
		result.Message += fmt.Sprintf(" (%d granules without the band, %d files failed to open, %d groups failed)",
			len(report.NotFound), len(report.AccessFailed), len(report.FailedGroups))
	}
	return result, report, nil
}

// ProcessDownload downloads the files of the job (only the band of the example, if defined) in the cache of the Downloader.
// The job fails if no file could be downloaded.
func (p *Processor) ProcessDownload(ctx context.Context, job common.DownloadJob) (common.Result, []downloader.File, error) {
	result := common.Result{Type: common.ResultTypeDownload, ID: job.ID, Status: common.StatusFAILED}
	if job.ID == "" || len(job.Granules) == 0 {
		err := fmt.Errorf("ProcessDownload: invalid job (id: '%s', %d granules)", job.ID, len(job.Granules))
		result.Message = err.Error()
		return result, nil, err
	}
	band := ""
	if job.Example != "" {
		band = common.BandToken(job.Example)
	}
	granules := make([]common.Granule, len(job.Granules))
	for i, g := range job.Granules {
		if g.Access == "" {
			g.Access = p.Access
		}
		granules[i] = g
	}

	files, err := p.Downloader.DownloadGranules(ctx, granules, band)
	var failed []string
	for _, f := range files {
		if f.Error != "" {
			failed = append(failed, common.FileName(f.Link))
			continue
		}
		result.Layers = append(result.Layers, common.LayerResult{Name: common.FileName(f.Link), File: f.Path})
	}
	if len(result.Layers) == 0 {
		if err == nil {
			err = fmt.Errorf("no file to download")
		}
		result.Message = err.Error()
		return result, files, fmt.Errorf("ProcessDownload.%w", err)
	}
	if err != nil {
		log.Logger(ctx).Warn("some files failed to download", zap.Error(err))
	}
	result.Status = common.StatusDONE
	result.Message = fmt.Sprintf("%d file(s) downloaded", len(result.Layers))
	if len(failed) > 0 {
		result.Message += fmt.Sprintf(", %d failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return result, files, nil
}
