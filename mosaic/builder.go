package mosaic

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-spatial/geom"
)

// BuildConfig configures Build
type BuildConfig struct {
	Dir     string // directory of the VRT files
	Product string // prefix of the layer names
	Options VRTOptions
}

// BuildResult is the result of Build
type BuildResult struct {
	Layers   []Layer
	Failures []GroupFailure
	Extent   *geom.Extent // combined extent of the layers in the display CRS, buffered (nil if no layer)
}

// VRTFileName returns the deterministic name of the VRT of a CRS group
func VRTFileName(shortName string) string {
	return "opera_mosaic_" + strings.NewReplacer(" ", "_", "/", "_").Replace(shortName) + ".vrt"
}

// LayerName returns the display name of a mosaic layer
func LayerName(product, shortName string, scenes int) string {
	return fmt.Sprintf("%s Mosaic - %s (%d scenes)", product, shortName, scenes)
}

// Build creates a VRT and a layer for each group, then zooms the display on the combined extent (+5%).
// A group that fails (VRT, invalid layer, display) is skipped with a warning.
// Build fails with ErrNoLayers if no layer has been created.
func Build(ctx context.Context, builder VRTBuilder, display Display, groups []*Group, cfg BuildConfig, progress Progress) (BuildResult, error) {
	var res BuildResult
	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}
	if cfg.Options.Resampling == "" {
		cfg.Options = DefaultVRTOptions
	}
	var combined *geom.Extent
	usedNames := map[string]string{}

	fail := func(g *Group, reason string) {
		res.Failures = append(res.Failures, GroupFailure{CRSKey: g.Key, ShortName: g.ShortName, Reason: reason})
	}

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("Build: %w", err)
		}
		progress(fmt.Sprintf("Building mosaic %d/%d for %s (%d files)...", i+1, len(groups), g.ShortName, len(g.Paths)))

		// Two different CRS may share the same short name
		fileName := VRTFileName(g.ShortName)
		for n := 2; usedNames[fileName] != "" && usedNames[fileName] != g.Key; n++ {
			fileName = VRTFileName(fmt.Sprintf("%s %d", g.ShortName, n))
		}
		usedNames[fileName] = g.Key
		vrtPath := filepath.Join(cfg.Dir, fileName)

		if err := builder.BuildVRT(ctx, vrtPath, g.Paths, cfg.Options); err != nil {
			progress(fmt.Sprintf("  Warning: Failed to build VRT for %s: %v", g.ShortName, err))
			fail(g, err.Error())
			continue
		}

		// The display may adopt the CRS of its first layer
		info, err := builder.Describe(ctx, vrtPath, display.CRS())
		if err != nil {
			progress(fmt.Sprintf("  Warning: Failed to load VRT layer for %s: %v", g.ShortName, err))
			fail(g, err.Error())
			continue
		}
		if info.DisplayExtent == nil {
			info.DisplayExtent = info.Extent
		}
		if info.Width <= 0 || info.Height <= 0 || !ValidExtent(info.Extent) || !ValidExtent(info.DisplayExtent) {
			progress(fmt.Sprintf("  Warning: Failed to load VRT layer for %s", g.ShortName))
			fail(g, "invalid layer")
			continue
		}
		progress(fmt.Sprintf("  VRT created: %dx%d pixels", info.Width, info.Height))

		layer := Layer{
			Name:          LayerName(cfg.Product, g.ShortName, len(g.Paths)),
			Path:          vrtPath,
			CRSKey:        g.Key,
			ShortName:     g.ShortName,
			Scenes:        len(g.Paths),
			Sources:       g.Paths,
			Width:         info.Width,
			Height:        info.Height,
			CRS:           g.CRS,
			Extent:        info.Extent,
			DisplayExtent: info.DisplayExtent,
		}
		if !info.CRS.IsZero() {
			layer.CRS = info.CRS
		}
		if err := display.AddLayer(ctx, layer); err != nil {
			progress(fmt.Sprintf("  Warning: Failed to add layer %s: %v", layer.Name, err))
			fail(g, err.Error())
			continue
		}
		res.Layers = append(res.Layers, layer)
		combined = Union(combined, layer.DisplayExtent)
		progress("  Layer added: " + layer.Name)
	}

	if len(res.Layers) == 0 {
		return res, ErrNoLayers
	}

	res.Extent = Scale(combined, ExtentBuffer)
	if err := display.SetExtent(ctx, res.Extent); err != nil {
		return res, fmt.Errorf("Build.SetExtent: %w", err)
	}
	if err := display.Refresh(ctx); err != nil {
		return res, fmt.Errorf("Build.Refresh: %w", err)
	}
	return res, nil
}
