package gdal

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/airbusgeo/osio"
	osioGcs "github.com/airbusgeo/osio/gcs"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// Register registers the GDAL drivers (once)
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// Session provides the GDAL configuration options of the remote accesses
type Session interface {
	ConfigOptions() []string
}

// Connector implements mosaic.Connector with GDAL
type Connector struct {
	// NewSession sets up the credentials. Called at each Connect.
	NewSession func(ctx context.Context) (Session, error)
	// GS enables the gs:// links (through an osio handler)
	GS bool
}

var gsOnce sync.Once
var gsErr error

// Connect implements mosaic.Connector
func (c Connector) Connect(ctx context.Context) (mosaic.Raster, error) {
	Register()
	var options []string
	if c.NewSession != nil {
		session, err := c.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("Connect.%w", err)
		}
		options = session.ConfigOptions()
	}
	if c.GS {
		if err := RegisterGS(ctx); err != nil {
			return nil, fmt.Errorf("Connect.%w", err)
		}
	}
	return NewRaster(options...), nil
}

// RegisterGS registers a GDAL handler for the gs:// paths (once)
func RegisterGS(ctx context.Context) error {
	gsOnce.Do(func() {
		gcsr, err := osioGcs.Handle(ctx)
		if err != nil {
			gsErr = fmt.Errorf("RegisterGS.GCSHandle: %w", err)
			return
		}
		adapter, err := osio.NewAdapter(gcsr)
		if err != nil {
			gsErr = fmt.Errorf("RegisterGS.NewAdapter: %w", err)
			return
		}
		if err := godal.RegisterVSIHandler("gs://", adapter); err != nil {
			gsErr = fmt.Errorf("RegisterGS.RegisterVSIHandler: %w", err)
		}
	})
	return gsErr
}

// Raster implements mosaic.Raster with godal.
// The configuration options are passed to each call (no global GDAL configuration).
type Raster struct {
	options []string
}

// NewRaster creates a Raster with the configuration options (KEY=VALUE)
func NewRaster(options ...string) *Raster {
	return &Raster{options: options}
}

func (r *Raster) open(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.ConfigOption(r.options...))
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Probe implements mosaic.Prober
func (r *Raster) Probe(ctx context.Context, path string) (mosaic.SpatialRef, error) {
	ds, err := r.open(path)
	if err != nil {
		return mosaic.SpatialRef{}, err
	}
	defer ds.Close()
	sr, err := spatialRef(ds)
	if err != nil {
		return mosaic.SpatialRef{}, err
	}
	log.Logger(ctx).Debug("probe", zap.String("path", path), zap.String("crs", sr.Key()))
	return sr, nil
}

// BuildVRT implements mosaic.VRTBuilder
func (r *Raster) BuildVRT(ctx context.Context, dst string, srcs []string, opts mosaic.VRTOptions) error {
	ds, err := godal.BuildVRT(dst, srcs, opts.Switches(), godal.ConfigOption(r.options...))
	if err != nil {
		return fmt.Errorf("BuildVRT[%s]: %w", dst, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("BuildVRT.Close[%s]: %w", dst, err)
	}
	return nil
}

// Describe implements mosaic.VRTBuilder
func (r *Raster) Describe(ctx context.Context, path string, target mosaic.SpatialRef) (mosaic.LayerInfo, error) {
	ds, err := r.open(path)
	if err != nil {
		return mosaic.LayerInfo{}, fmt.Errorf("Describe.%w", err)
	}
	defer ds.Close()

	st := ds.Structure()
	info := mosaic.LayerInfo{Width: st.SizeX, Height: st.SizeY}
	if info.CRS, err = spatialRef(ds); err != nil {
		return info, fmt.Errorf("Describe[%s].%w", path, err)
	}
	bounds, err := ds.Bounds()
	if err != nil {
		return info, fmt.Errorf("Describe.Bounds[%s]: %w", path, err)
	}
	info.Extent = mosaic.NewExtent(bounds)
	info.DisplayExtent = info.Extent

	if !target.IsZero() && !target.Equal(info.CRS) {
		tsr, err := newSpatialRef(target)
		if err != nil {
			return info, fmt.Errorf("Describe.%w", err)
		}
		defer tsr.Close()
		if bounds, err = ds.Bounds(tsr); err != nil {
			return info, fmt.Errorf("Describe.Bounds[%s->%s]: %w", path, target.Key(), err)
		}
		info.DisplayExtent = mosaic.NewExtent(bounds)
	}
	return info, nil
}

var wktNameRegexp = regexp.MustCompile(`^\s*[A-Z0-9_]+\["([^"]*)"`)

func spatialRef(ds *godal.Dataset) (mosaic.SpatialRef, error) {
	sr := ds.SpatialRef()
	if sr == nil {
		return mosaic.SpatialRef{}, fmt.Errorf("no CRS")
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		return mosaic.SpatialRef{}, fmt.Errorf("WKT: %w", err)
	}
	if wkt == "" {
		return mosaic.SpatialRef{}, fmt.Errorf("no CRS")
	}
	return SpatialRefFromWKT(wkt, sr.AuthorityName(""), sr.AuthorityCode("")), nil
}

// SpatialRefFromWKT returns the SpatialRef named after the root node of the WKT
func SpatialRefFromWKT(wkt, authority, code string) mosaic.SpatialRef {
	sr := mosaic.SpatialRef{Authority: authority, Code: code, WKT: wkt}
	if m := wktNameRegexp.FindStringSubmatch(wkt); m != nil {
		sr.Name = m[1]
	}
	return sr
}

func newSpatialRef(sr mosaic.SpatialRef) (*godal.SpatialRef, error) {
	input := sr.WKT
	if sr.Code != "" {
		input = sr.Key()
	}
	gsr, err := godal.NewSpatialRef(input)
	if err != nil {
		return nil, fmt.Errorf("NewSpatialRef[%s]: %w", sr.Key(), err)
	}
	return gsr, nil
}

// ParseSpatialRef returns the SpatialRef of a user input (EPSG:4326, WKT, proj string...)
func ParseSpatialRef(input string) (mosaic.SpatialRef, error) {
	Register()
	gsr, err := godal.NewSpatialRef(input)
	if err != nil {
		return mosaic.SpatialRef{}, fmt.Errorf("ParseSpatialRef[%s]: %w", input, err)
	}
	defer gsr.Close()
	wkt, err := gsr.WKT()
	if err != nil {
		return mosaic.SpatialRef{}, fmt.Errorf("ParseSpatialRef.WKT: %w", err)
	}
	return SpatialRefFromWKT(wkt, gsr.AuthorityName(""), gsr.AuthorityCode("")), nil
}
