package downloader

import (
	"context"
	"fmt"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"go.uber.org/zap"
)

// Describer opens a raster and describes it
type Describer interface {
	Describe(ctx context.Context, path string, target mosaic.SpatialRef) (mosaic.LayerInfo, error)
}

// Shown is the way a file was displayed
type Shown struct {
	Layer      mosaic.Layer
	Streamed   bool // Displayed through its VSI path, without download
	Downloaded bool // Downloaded (or taken from the cache)
}

// ShowFile displays a single file of a granule.
// A GeoTIFF is first tried as a cloud-optimized layer, read remotely through its VSI path.
// On failure (or for other files), the file is downloaded in the cache and displayed from there.
func (d *Downloader) ShowFile(ctx context.Context, raster Describer, display mosaic.Display, link string) (Shown, error) {
	name := common.FileName(link)
	if common.IsGeoTiff(link) {
		layer, err := addLayer(ctx, raster, display, name, mosaic.VSIPath(link))
		if err == nil {
			log.Logger(ctx).Sugar().Infof("Streaming COG: %s", name)
			return Shown{Layer: layer, Streamed: true}, nil
		}
		log.Logger(ctx).Debug("COG streaming failed, downloading", zap.String("file", name), zap.Error(err))
	}

	local, _, err := d.DownloadFile(ctx, link)
	if err != nil {
		return Shown{}, fmt.Errorf("ShowFile.%w", err)
	}
	layer, err := addLayer(ctx, raster, display, name, local)
	if err != nil {
		return Shown{}, fmt.Errorf("ShowFile.%w", err)
	}
	return Shown{Layer: layer, Downloaded: true}, nil
}

func addLayer(ctx context.Context, raster Describer, display mosaic.Display, name, path string) (mosaic.Layer, error) {
	info, err := raster.Describe(ctx, path, display.CRS())
	if err != nil {
		return mosaic.Layer{}, fmt.Errorf("addLayer.%w", err)
	}
	if info.DisplayExtent == nil {
		info.DisplayExtent = info.Extent
	}
	if !mosaic.ValidExtent(info.DisplayExtent) {
		return mosaic.Layer{}, fmt.Errorf("addLayer: invalid layer %s", path)
	}
	layer := mosaic.Layer{
		Name:          name,
		Path:          path,
		CRSKey:        info.CRS.Key(),
		ShortName:     info.CRS.ShortName(),
		Scenes:        1,
		Sources:       []string{path},
		Width:         info.Width,
		Height:        info.Height,
		CRS:           info.CRS,
		Extent:        info.Extent,
		DisplayExtent: info.DisplayExtent,
	}
	if err := display.AddLayer(ctx, layer); err != nil {
		return mosaic.Layer{}, fmt.Errorf("addLayer.%w", err)
	}
	if err := display.SetExtent(ctx, info.DisplayExtent); err != nil {
		return mosaic.Layer{}, fmt.Errorf("addLayer.%w", err)
	}
	if err := display.Refresh(ctx); err != nil {
		return mosaic.Layer{}, fmt.Errorf("addLayer.%w", err)
	}
	return layer, nil
}
