package mosaic

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom"
)

// DefaultProduct is the prefix of the layer names
const DefaultProduct = "OPERA"

// GranuleSource is a granule exposing the ordered links of its files
type GranuleSource interface {
	ID() string
	Links() []string
}

// Connector sets up the access to the remote files
// Connect must succeed before any remote open.
type Connector interface {
	Connect(ctx context.Context) (Raster, error)
}

// Prober opens a remote raster to read its CRS. The dataset is released before Probe returns.
type Prober interface {
	Probe(ctx context.Context, path string) (SpatialRef, error)
}

// VRTBuilder builds virtual mosaics and describes them
type VRTBuilder interface {
	// BuildVRT writes at dst a virtual mosaic referencing srcs (no pixel copy)
	BuildVRT(ctx context.Context, dst string, srcs []string, opts VRTOptions) error
	// Describe opens the raster and returns its size, CRS and extent (also reprojected in target if target is not zero)
	Describe(ctx context.Context, path string, target SpatialRef) (LayerInfo, error)
}

// Raster is the raster toolkit bound to a session
type Raster interface {
	Prober
	VRTBuilder
}

// Display receives the layers of the mosaic and zooms on them
type Display interface {
	CRS() SpatialRef
	AddLayer(ctx context.Context, layer Layer) error
	SetExtent(ctx context.Context, extent *geom.Extent) error
	Refresh(ctx context.Context) error
}

// Progress receives the human-readable progress lines
type Progress func(line string)

// LogProgress returns a Progress writing into the logger of the context
func LogProgress(ctx context.Context) Progress {
	logger := log.Logger(ctx)
	return func(line string) {
		logger.Info(line)
	}
}

// VRTOptions are the options of the virtual mosaic
type VRTOptions struct {
	Resampling string
	SrcNoData  float64
	VRTNoData  float64
	AddAlpha   bool
}

// DefaultVRTOptions: nearest resampling, no alpha, nodata=255
var DefaultVRTOptions = VRTOptions{
	Resampling: "nearest",
	SrcNoData:  255,
	VRTNoData:  255,
}

// Switches returns the gdalbuildvrt switches
func (o VRTOptions) Switches() []string {
	sw := []string{
		"-r", o.Resampling,
		"-srcnodata", strconv.FormatFloat(o.SrcNoData, 'f', -1, 64),
		"-vrtnodata", strconv.FormatFloat(o.VRTNoData, 'f', -1, 64),
	}
	if o.AddAlpha {
		sw = append(sw, "-addalpha")
	}
	return sw
}

// LayerInfo describes an opened raster
type LayerInfo struct {
	Width         int
	Height        int
	CRS           SpatialRef
	Extent        *geom.Extent // in CRS
	DisplayExtent *geom.Extent // in the target CRS
}

// Layer is a mosaic layer, one per CRS group
type Layer struct {
	Name          string       `json:"name"`
	Path          string       `json:"path"`
	CRSKey        string       `json:"crs_key"`
	ShortName     string       `json:"crs_name"`
	Scenes        int          `json:"scenes"`
	Sources       []string     `json:"sources"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	CRS           SpatialRef   `json:"crs"`
	Extent        *geom.Extent `json:"extent"`
	DisplayExtent *geom.Extent `json:"display_extent"`
}

// Mosaicker creates the mosaics of the selected granules, one layer per CRS.
// It is not re-entrant: a concurrent Run returns ErrBusy.
type Mosaicker struct {
	connector Connector
	display   Display
	progress  Progress
	dir       string
	product   string
	options   VRTOptions
	mu        sync.Mutex
}

// Option configures a Mosaicker
type Option func(*Mosaicker)

// WithDir sets the directory of the VRT files (default: os.TempDir())
func WithDir(dir string) Option {
	return func(m *Mosaicker) { m.dir = dir }
}

// WithProduct sets the prefix of the layer names (default: OPERA)
func WithProduct(product string) Option {
	return func(m *Mosaicker) {
		if product != "" {
			m.product = product
		}
	}
}

// WithProgress sets the receiver of the progress lines (default: logger of the context)
func WithProgress(p Progress) Option {
	return func(m *Mosaicker) { m.progress = p }
}

// WithVRTOptions overrides DefaultVRTOptions
func WithVRTOptions(o VRTOptions) Option {
	return func(m *Mosaicker) { m.options = o }
}

// New creates a Mosaicker
func New(connector Connector, display Display, opts ...Option) *Mosaicker {
	m := &Mosaicker{
		connector: connector,
		display:   display,
		dir:       os.TempDir(),
		product:   DefaultProduct,
		options:   DefaultVRTOptions,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run creates the mosaics of the band of the example file for all the granules.
// The granules are scanned sequentially, files are grouped by CRS, a VRT and a layer are created per group,
// then the display is zoomed on the combined extent (+5%).
// Recoverable failures are reported in the Report. The Report is returned even if Run fails.
func (m *Mosaicker) Run(ctx context.Context, granules []GranuleSource, example string) (*Report, error) {
	if !m.mu.TryLock() {
		return nil, ErrBusy
	}
	defer m.mu.Unlock()

	progress := m.progress
	if progress == nil {
		progress = LogProgress(ctx)
	}

	band := common.BandToken(example)
	report := &Report{Band: band, Granules: len(granules)}
	if len(granules) == 0 {
		return report, ErrNoGranules
	}

	progress(fmt.Sprintf("Creating mosaic from %d granules...", len(granules)))
	progress("Layer band: " + band)

	progress("Setting up cloud access...")
	raster, err := m.connector.Connect(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrSession, err)
	}

	resolution, err := Resolve(ctx, raster, granules, band, progress)
	if resolution != nil {
		report.Outcomes = resolution.Outcomes
		report.NotFound = resolution.NotFound
		report.AccessFailed = resolution.AccessFailed
		report.Groups = resolution.Groups
	}
	if err != nil {
		return report, err
	}

	res, err := Build(ctx, raster, m.display, resolution.Groups, BuildConfig{
		Dir:     m.dir,
		Product: m.product,
		Options: m.options,
	}, progress)
	report.Layers = res.Layers
	report.FailedGroups = res.Failures
	report.Extent = res.Extent
	if err != nil {
		return report, err
	}
	progress(fmt.Sprintf("Successfully created %d mosaic layer(s) with %d scenes total!", len(report.Layers), report.Scenes()))
	return report, nil
}
