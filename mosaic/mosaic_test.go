package mosaic_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/go-spatial/geom"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const band = "B01_WTR"

var (
	utm12N = mosaic.SpatialRef{Authority: "EPSG", Code: "32612", Name: "WGS 84 / UTM zone 12N"}
	utm13N = mosaic.SpatialRef{Authority: "EPSG", Code: "32613", Name: "WGS 84 / UTM zone 13N"}
	wgs84  = mosaic.SpatialRef{Authority: "EPSG", Code: "4326", Name: "WGS 84"}
)

func fileName(tile, b string) string {
	return fmt.Sprintf("OPERA_L3_DSWx-HLS_%s_20231006T175631Z_20231008T142503Z_L8_30_v1.1_%s.tif", tile, b)
}

func granule(tile string, bands ...string) common.Granule {
	g := common.Granule{
		GranuleUR: fmt.Sprintf("OPERA_L3_DSWx-HLS_%s_20231006T175631Z_20231008T142503Z_L8_30_v1.1", tile),
		ShortName: "OPERA_L3_DSWX-HLS_V1",
	}
	for _, b := range bands {
		g.DataLinks = append(g.DataLinks, "https://archive.podaac.earthdata.nasa.gov/podaac-ops-cumulus-protected/OPERA_L3_DSWX-HLS_V1/"+fileName(tile, b))
	}
	return g
}

func vsi(g common.Granule) string {
	l, _ := common.FindBand(g.Links(), band)
	return mosaic.VSIPath(l)
}

func sources(granules ...common.Granule) []mosaic.GranuleSource {
	srcs := make([]mosaic.GranuleSource, len(granules))
	for i, g := range granules {
		srcs[i] = g
	}
	return srcs
}

func expectExtent(e *geom.Extent, expected [4]float64) {
	ExpectWithOffset(1, e).NotTo(BeNil())
	for i := range expected {
		ExpectWithOffset(1, e[i]).To(BeNumerically("~", expected[i], 1e-6))
	}
}

var _ = Describe("Mosaic", func() {
	var (
		raster    *MokeRaster
		connector *MokeConnector
		display   *MokeDisplay
		lines     []string
		dir       string
		m         *mosaic.Mosaicker
		a, b, c   common.Granule
	)

	BeforeEach(func() {
		raster = NewMokeRaster()
		connector = &MokeConnector{raster: raster}
		display = &MokeDisplay{crs: wgs84}
		lines = nil
		var err error
		dir, err = os.MkdirTemp("", "mosaic")
		Expect(err).NotTo(HaveOccurred())
		m = mosaic.New(connector, display, mosaic.WithDir(dir), mosaic.WithProgress(func(l string) { lines = append(lines, l) }))

		a = granule("T12STF", "B01_WTR", "B02_BWTR")
		b = granule("T12STG", "B02_BWTR", "B01_WTR")
		c = granule("T13SBA", "B01_WTR")
		raster.crs[vsi(a)] = utm12N
		raster.crs[vsi(b)] = utm12N
		raster.crs[vsi(c)] = utm13N
		raster.extents[utm12N.Key()] = [4]float64{0, 0, 10, 10}
		raster.extents[utm13N.Key()] = [4]float64{10, 0, 20, 10}
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	Context("3 granules in 2 UTM zones", func() {
		It("should create one layer per zone and zoom on their union", func() {
			report, err := m.Run(ctx, sources(a, b, c), fileName("T12STF", band))
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Band).To(Equal(band))
			Expect(report.Groups).To(HaveLen(2))
			Expect(report.Groups[0].Key).To(Equal("EPSG:32612"))
			Expect(report.Groups[0].Paths).To(Equal([]string{vsi(a), vsi(b)}))
			Expect(report.Groups[1].Key).To(Equal("EPSG:32613"))
			Expect(report.Groups[1].Paths).To(Equal([]string{vsi(c)}))

			Expect(display.layers).To(HaveLen(2))
			Expect(display.layers[0].Name).To(Equal("OPERA Mosaic - UTM zone 12N (2 scenes)"))
			Expect(display.layers[1].Name).To(Equal("OPERA Mosaic - UTM zone 13N (1 scenes)"))
			Expect(display.layers[0].Path).To(Equal(filepath.Join(dir, "opera_mosaic_UTM_zone_12N.vrt")))
			Expect(display.layers[1].Path).To(Equal(filepath.Join(dir, "opera_mosaic_UTM_zone_13N.vrt")))
			Expect(raster.vrts[display.layers[0].Path]).To(Equal([]string{vsi(a), vsi(b)}))

			// union [0,0,20,10] scaled by 1.05 around its center
			expectExtent(report.Extent, [4]float64{-0.5, -0.25, 20.5, 10.25})
			Expect(display.extent).To(Equal(report.Extent))
			Expect(display.setExtent).To(Equal(1))
			Expect(display.refreshed).To(Equal(1))
			Expect(report.Scenes()).To(Equal(3))
			Expect(report.Files()).To(Equal(3))
		})

		It("should report the progress of each granule", func() {
			_, err := m.Run(ctx, sources(a, b, c), fileName("T12STF", band))
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(ContainElement("Layer band: B01_WTR"))
			Expect(lines).To(ContainElement(fmt.Sprintf("  [1] OK: %s (UTM zone 12N)", fileName("T12STF", band))))
			Expect(lines).To(ContainElement(fmt.Sprintf("  [3] OK: %s (UTM zone 13N)", fileName("T13SBA", band))))
			Expect(lines).To(ContainElement("Found 2 different projection(s)"))
			Expect(lines[len(lines)-1]).To(Equal("Successfully created 2 mosaic layer(s) with 3 scenes total!"))
		})

		It("should name the layers after the product", func() {
			m = mosaic.New(connector, display, mosaic.WithDir(dir), mosaic.WithProduct("DSWx-HLS"), mosaic.WithProgress(func(string) {}))
			_, err := m.Run(ctx, sources(a, c), fileName("T12STF", band))
			Expect(err).NotTo(HaveOccurred())
			Expect(display.layers[0].Name).To(Equal("DSWx-HLS Mosaic - UTM zone 12N (1 scenes)"))
		})
	})

	Context("reprojection to the canvas CRS", func() {
		// union of [500000,3600000,600000,3700000] and [780000,3590000,880000,3700000],
		// scaled by 1.05 around its center
		union := [4]float64{490500, 3587250, 889500, 3702750}

		BeforeEach(func() {
			raster.extents[utm12N.Key()] = [4]float64{500000, 3600000, 600000, 3700000}
			raster.extents[utm13N.Key()] = [4]float64{200000, 3600000, 300000, 3700000}
			raster.reproj[utm13N.Key()+">"+utm12N.Key()] = [4]float64{780000, 3590000, 880000, 3700000}
		})

		It("should fold the extents reprojected in the CRS of the canvas", func() {
			display.crs = utm12N
			report, err := m.Run(ctx, sources(a, b, c), fileName("T12STF", band))
			Expect(err).NotTo(HaveOccurred())
			Expect(display.layers).To(HaveLen(2))
			expectExtent(display.layers[1].Extent, [4]float64{200000, 3600000, 300000, 3700000})
			expectExtent(display.layers[1].DisplayExtent, [4]float64{780000, 3590000, 880000, 3700000})
			expectExtent(report.Extent, union)
		})

		It("should reproject in the CRS adopted by the canvas from its first layer", func() {
			display.crs = mosaic.SpatialRef{}
			report, err := m.Run(ctx, sources(a, b, c), fileName("T12STF", band))
			Expect(err).NotTo(HaveOccurred())
			Expect(display.crs).To(Equal(utm12N))
			Expect(raster.targets[display.layers[0].Path]).To(Equal(""))
			Expect(raster.targets[display.layers[1].Path]).To(Equal(utm12N.Key()))
			expectExtent(display.layers[1].DisplayExtent, [4]float64{780000, 3590000, 880000, 3700000})
			expectExtent(report.Extent, union)
			Expect(display.extent).To(Equal(report.Extent))
		})
	})

	Context("grouping", func() {
		It("should be a partition of the opened files, whatever the order", func() {
			report, err := m.Run(ctx, sources(c, a, b), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Groups).To(HaveLen(2))
			Expect(report.Groups[0].Key).To(Equal("EPSG:32613"))
			Expect(report.Groups[1].Paths).To(Equal([]string{vsi(a), vsi(b)}))

			seen := map[string]int{}
			for _, g := range report.Groups {
				for _, p := range g.Paths {
					seen[p]++
					Expect(raster.crs[p].Key()).To(Equal(g.Key))
				}
			}
			Expect(seen).To(Equal(map[string]int{vsi(a): 1, vsi(b): 1, vsi(c): 1}))
		})

		It("should group unresolvable CRS by their truncated WKT", func() {
			wkt := `PROJCS["unnamed",GEOGCS["unknown",DATUM["unknown",SPHEROID["Spheroid",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"]`
			raster.crs[vsi(a)] = mosaic.SpatialRef{Name: "unnamed", WKT: wkt + `,PARAMETER["central_meridian",-111]]`}
			raster.crs[vsi(b)] = mosaic.SpatialRef{Name: "unnamed", WKT: wkt + `,PARAMETER["central_meridian",-105]]`}
			raster.extents[wkt[:100]] = [4]float64{0, 0, 1, 1}
			report, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			// Known limitation: same 100 first characters => same group
			Expect(report.Groups).To(HaveLen(2))
			Expect(report.Groups[0].Key).To(Equal(wkt[:100]))
			Expect(report.Groups[0].Paths).To(HaveLen(2))
			Expect(display.layers[0].Name).To(Equal("OPERA Mosaic - unnamed (2 scenes)"))
		})
	})

	Context("recoverable failures", func() {
		It("should skip granules without the band and files that cannot be opened", func() {
			d := granule("T12STH", "B02_BWTR", "B03_CONF")
			e := granule("T12STJ", "B01_WTR")
			raster.openErr[vsi(e)] = errors.New("HTTP response code: 403 - Forbidden: the bearer token has expired or is invalid")
			report, err := m.Run(ctx, sources(a, d, e, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())

			Expect(report.NotFound).To(Equal([]string{d.ID()}))
			Expect(report.AccessFailed).To(Equal([]string{fileName("T12STJ", band)}))
			Expect(report.Outcomes).To(HaveLen(4))
			Expect(report.Outcomes[1].Status).To(Equal(mosaic.OutcomeNotFound))
			Expect(report.Outcomes[2].Status).To(Equal(mosaic.OutcomeAccessFailed))
			Expect(len(report.Outcomes[2].Reason)).To(Equal(50))
			Expect(lines).To(ContainElement("  [2] NOT FOUND: No B01_WTR in granule"))
			Expect(lines).To(ContainElement(fmt.Sprintf("  [3] FAILED: %s (%s)", fileName("T12STJ", band), report.Outcomes[2].Reason)))
			Expect(report.Files()).To(Equal(2))
			Expect(display.layers).To(HaveLen(2))
		})

		It("should not create layers if no file is accessible", func() {
			raster.openErr[vsi(a)] = errors.New("cannot open")
			raster.openErr[vsi(c)] = errors.New("cannot open")
			report, err := m.Run(ctx, sources(a, granule("T12STH", "B02_BWTR"), c), band+".tif")
			Expect(errors.Is(err, mosaic.ErrNoAccessibleFiles)).To(BeTrue())
			var nafe mosaic.NoAccessibleFilesError
			Expect(errors.As(err, &nafe)).To(BeTrue())
			Expect(nafe.NotFound).To(Equal(1))
			Expect(nafe.AccessFailed).To(Equal(2))
			Expect(report.Groups).To(BeEmpty())
			Expect(raster.vrts).To(BeEmpty())
			Expect(display.layers).To(BeEmpty())
			Expect(display.setExtent).To(Equal(0))
		})

		It("should create N-1 layers if one of N groups fails to build", func() {
			raster.vrtErr["opera_mosaic_UTM_zone_13N.vrt"] = errors.New("gdalbuildvrt: no valid source")
			report, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(display.layers).To(HaveLen(1))
			Expect(report.FailedGroups).To(HaveLen(1))
			Expect(report.FailedGroups[0].CRSKey).To(Equal("EPSG:32613"))
			expectExtent(report.Extent, [4]float64{-0.25, -0.25, 10.25, 10.25})
		})

		It("should skip invalid layers", func() {
			raster.invalid["opera_mosaic_UTM_zone_12N.vrt"] = true
			report, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(display.layers).To(HaveLen(1))
			Expect(display.layers[0].CRSKey).To(Equal("EPSG:32613"))
			expectExtent(report.Extent, [4]float64{9.75, -0.25, 20.25, 10.25})
		})

		It("should skip layers refused by the display", func() {
			display.addErr = map[string]error{"OPERA Mosaic - UTM zone 12N (2 scenes)": errors.New("refused")}
			report, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Layers).To(HaveLen(1))
			Expect(report.FailedGroups[0].Reason).To(Equal("refused"))
		})

		It("should not overwrite the VRT of another CRS with the same short name", func() {
			raster.crs[vsi(c)] = mosaic.SpatialRef{Authority: "EPSG", Code: "32612", Name: "WGS 84 / UTM zone 12N"}
			raster.crs[vsi(b)] = mosaic.SpatialRef{Authority: "EPSG", Code: "26912", Name: "NAD83 / UTM zone 12N"}
			raster.extents["EPSG:26912"] = [4]float64{0, 0, 1, 1}
			_, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(display.layers).To(HaveLen(2))
			Expect(display.layers[0].Path).NotTo(Equal(display.layers[1].Path))
		})
	})

	Context("fatal failures", func() {
		It("should fail if all groups fail", func() {
			raster.vrtErr["opera_mosaic_UTM_zone_12N.vrt"] = errors.New("failed")
			raster.vrtErr["opera_mosaic_UTM_zone_13N.vrt"] = errors.New("failed")
			report, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(err).To(MatchError(mosaic.ErrNoLayers))
			Expect(report.FailedGroups).To(HaveLen(2))
			Expect(report.Extent).To(BeNil())
			Expect(display.setExtent).To(Equal(0))
			Expect(display.refreshed).To(Equal(0))
		})

		It("should abort if the session cannot be set up", func() {
			connector.err = errors.New("401 Unauthorized")
			_, err := m.Run(ctx, sources(a, b, c), band+".tif")
			Expect(errors.Is(err, mosaic.ErrSession)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("401 Unauthorized"))
			Expect(raster.probed).To(BeEmpty())
		})

		It("should fail without granules", func() {
			_, err := m.Run(ctx, nil, band+".tif")
			Expect(err).To(MatchError(mosaic.ErrNoGranules))
			Expect(connector.calls).To(Equal(0))
		})

		It("should stop if the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := m.Run(cctx, sources(a, b, c), band+".tif")
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(raster.probed).To(BeEmpty())
		})

		It("should not be re-entrant", func() {
			connector.started = make(chan struct{})
			connector.release = make(chan struct{})
			done := make(chan error)
			go func() {
				_, err := m.Run(ctx, sources(a), band+".tif")
				done <- err
			}()
			<-connector.started
			_, err := m.Run(ctx, sources(a), band+".tif")
			Expect(err).To(MatchError(mosaic.ErrBusy))
			close(connector.release)
			Eventually(done, time.Second).Should(Receive(BeNil()))
		})
	})
})

var _ = Describe("Build", func() {
	It("should use the default product and VRT options", func() {
		raster := NewMokeRaster()
		raster.crs["/vsis3/bucket/x_B01_WTR.tif"] = wgs84
		raster.extents[wgs84.Key()] = [4]float64{-10, -10, 10, 10}
		display := &MokeDisplay{}
		groups := []*mosaic.Group{{Key: wgs84.Key(), ShortName: wgs84.ShortName(), CRS: wgs84, Paths: []string{"/vsis3/bucket/x_B01_WTR.tif"}}}
		res, err := mosaic.Build(ctx, raster, display, groups, mosaic.BuildConfig{Dir: os.TempDir()}, func(string) {})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Layers[0].Name).To(Equal("OPERA Mosaic - WGS 84 (1 scenes)"))
		Expect(strings.HasSuffix(res.Layers[0].Path, "opera_mosaic_WGS_84.vrt")).To(BeTrue())
		expectExtent(res.Extent, [4]float64{-10.5, -10.5, 10.5, 10.5})
	})
})
