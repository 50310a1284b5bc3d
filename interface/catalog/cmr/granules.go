package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"golang.org/x/time/rate"
)

const (
	CMRSearchURL    = "https://cmr.earthdata.nasa.gov/search/granules.umm_json"
	CMRCatalogLimit = 2000 // max page_size

	relatedURLGetData       = "GET DATA"
	relatedURLDirectAccess  = "GET DATA VIA DIRECT ACCESS"
	attributeProducerID     = "ProducerGranuleId"
	attributeCloudCover     = "CLOUD_COVERAGE"
	attributeMGRSTileID     = "MGRS_TILE_ID"
	defaultRequestsBySecond = 5
)

// UMM-G (subset)
type searchResult struct {
	Hits  int    `json:"hits"`
	Items []item `json:"items"`
}

type item struct {
	Meta struct {
		ConceptID string `json:"concept-id"`
		NativeID  string `json:"native-id"`
	} `json:"meta"`
	UMM umm `json:"umm"`
}

type umm struct {
	GranuleUR           string `json:"GranuleUR"`
	CollectionReference struct {
		ShortName string `json:"ShortName"`
	} `json:"CollectionReference"`
	TemporalExtent struct {
		RangeDateTime struct {
			BeginningDateTime string `json:"BeginningDateTime"`
			EndingDateTime    string `json:"EndingDateTime"`
		} `json:"RangeDateTime"`
		SingleDateTime string `json:"SingleDateTime"`
	} `json:"TemporalExtent"`
	SpatialExtent struct {
		HorizontalSpatialDomain struct {
			Geometry struct {
				BoundingRectangles []struct {
					West  float64 `json:"WestBoundingCoordinate"`
					East  float64 `json:"EastBoundingCoordinate"`
					North float64 `json:"NorthBoundingCoordinate"`
					South float64 `json:"SouthBoundingCoordinate"`
				} `json:"BoundingRectangles"`
				GPolygons []struct {
					Boundary struct {
						Points []struct {
							Longitude float64 `json:"Longitude"`
							Latitude  float64 `json:"Latitude"`
						} `json:"Points"`
					} `json:"Boundary"`
				} `json:"GPolygons"`
			} `json:"Geometry"`
		} `json:"HorizontalSpatialDomain"`
	} `json:"SpatialExtent"`
	DataGranule struct {
		DayNightFlag       string `json:"DayNightFlag"`
		ProductionDateTime string `json:"ProductionDateTime"`
		Identifiers        []struct {
			Identifier     string `json:"Identifier"`
			IdentifierType string `json:"IdentifierType"`
		} `json:"Identifiers"`
	} `json:"DataGranule"`
	RelatedUrls []struct {
		URL  string `json:"URL"`
		Type string `json:"Type"`
	} `json:"RelatedUrls"`
	AdditionalAttributes []struct {
		Name   string   `json:"Name"`
		Values []string `json:"Values"`
	} `json:"AdditionalAttributes"`
}

// Provider searches granules in the NASA Common Metadata Repository
type Provider struct {
	URL        string
	Limit      int // page size
	HTTPClient *http.Client
	NbRetries  int
	limiter    *rate.Limiter
}

// NewProvider creates a Provider with default settings, limited to requestsBySecond (default: 5)
func NewProvider(requestsBySecond float64) *Provider {
	if requestsBySecond <= 0 {
		requestsBySecond = defaultRequestsBySecond
	}
	return &Provider{
		URL:        CMRSearchURL,
		Limit:      CMRCatalogLimit,
		HTTPClient: &http.Client{Timeout: time.Minute},
		NbRetries:  3,
		limiter:    rate.NewLimiter(rate.Limit(requestsBySecond), 1),
	}
}

// SearchGranules implements catalog.GranulesProvider
func (p *Provider) SearchGranules(ctx context.Context, req *entities.SearchRequest) (entities.Granules, error) {
	params, err := queryParams(req)
	if err != nil {
		return entities.Granules{}, fmt.Errorf("SearchGranules(CMR).%w", err)
	}
	items, hits, err := p.query(ctx, params, req.Page, req.MaxResults)
	if err != nil {
		return entities.Granules{}, fmt.Errorf("SearchGranules(CMR).%w", err)
	}

	granules := entities.Granules{Granules: make([]*entities.Granule, 0, len(items)), Hits: hits}
	for _, it := range items {
		g, err := it.toGranule()
		if err != nil {
			return entities.Granules{}, fmt.Errorf("SearchGranules(CMR).%w", err)
		}
		granules.Granules = append(granules.Granules, g)
	}
	return granules, nil
}

func queryParams(req *entities.SearchRequest) (url.Values, error) {
	params := url.Values{}
	params.Set("short_name", req.ShortName)
	if len(req.BBox) == 4 {
		params.Set("bounding_box", joinFloats(req.BBox))
	}
	if req.AOI != nil && req.AOI.Geometry != nil {
		polygons, err := polygonsParam(req.AOI.Geometry)
		if err != nil {
			return nil, err
		}
		for _, poly := range polygons {
			params.Add("polygon[]", poly)
		}
		if len(polygons) > 1 {
			params.Set("options[polygon][or]", "true")
		}
	}
	if !req.StartTime.IsZero() || !req.EndTime.IsZero() {
		temporal := ""
		if !req.StartTime.IsZero() {
			temporal = req.StartTime.UTC().Format(time.RFC3339)
		}
		temporal += ","
		if !req.EndTime.IsZero() {
			temporal += req.EndTime.UTC().Format(time.RFC3339)
		}
		params.Set("temporal", temporal)
	}
	params.Set("sort_key", "-start_date")
	return params, nil
}

// polygonsParam returns the polygons of the AOI, with points in counter-clockwise order
func polygonsParam(g geom.Geometry) ([]string, error) {
	mp, err := service.MultiPolygon(g)
	if err != nil {
		return nil, fmt.Errorf("polygonsParam.%w", err)
	}
	polygons := make([]string, 0, len(mp))
	for _, p := range mp {
		if len(p) == 0 || len(p[0]) < 3 {
			continue
		}
		polygons = append(polygons, ringParam(p[0]))
	}
	return polygons, nil
}

func ringParam(ring [][2]float64) string {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	area := 0.0
	for i := range ring {
		j := (i + 1) % len(ring)
		area += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	coords := make([]float64, 0, 2*len(ring)+2)
	n := len(ring)
	for i := 0; i <= n; i++ {
		k := i % n
		if area < 0 {
			// clockwise: reverse
			k = (n - i) % n
		}
		coords = append(coords, ring[k][0], ring[k][1])
	}
	return joinFloats(coords)
}

func joinFloats(fs []float64) string {
	s := make([]string, len(fs))
	for i, f := range fs {
		s[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(s, ",")
}

func (p *Provider) query(ctx context.Context, params url.Values, clientPage, clientLimit int) ([]item, int, error) {
	pagesToQuery := service.ComputePagesToQuery(clientPage, clientLimit, p.Limit)
	var items []item
	hits := 0
	for _, pageToQuery := range pagesToQuery {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("query.Wait: %w", err)
		}
		params.Set("page_size", strconv.Itoa(pageToQuery.Limit))
		params.Set("page_num", strconv.Itoa(pageToQuery.Page+1))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, 0, fmt.Errorf("query.NewRequest: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
		log.Logger(ctx).Sugar().Debugf("CMR search page %d (size %d): %s", pageToQuery.Page+1, pageToQuery.Limit, req.URL.String())

		body, _, err := service.DoRetry(p.HTTPClient, req, p.NbRetries)
		if err != nil {
			return nil, 0, fmt.Errorf("query.%w", err)
		}
		var result searchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, 0, fmt.Errorf("query.Unmarshal: %w", err)
		}
		hits = result.Hits
		items = append(items, service.QueryGetResult(&pageToQuery, result.Items)...)
		if len(result.Items) < pageToQuery.Limit {
			break
		}
	}
	return items, hits, nil
}

func (it item) toGranule() (*entities.Granule, error) {
	u := it.UMM
	g := &entities.Granule{
		Granule: common.Granule{
			ConceptID: it.Meta.ConceptID,
			GranuleUR: u.GranuleUR,
			ShortName: u.CollectionReference.ShortName,
		},
		Tags: map[string]string{},
	}
	if g.GranuleUR == "" {
		g.GranuleUR = it.Meta.NativeID
	}
	for _, id := range u.DataGranule.Identifiers {
		if id.IdentifierType == attributeProducerID {
			g.ProducerID = id.Identifier
		}
	}

	var err error
	begin, end := u.TemporalExtent.RangeDateTime.BeginningDateTime, u.TemporalExtent.RangeDateTime.EndingDateTime
	if begin == "" {
		begin, end = u.TemporalExtent.SingleDateTime, u.TemporalExtent.SingleDateTime
	}
	if begin != "" {
		if g.BeginDate, err = entities.ParseDate(begin); err != nil {
			return nil, fmt.Errorf("toGranule[%s].%w", g.ID(), err)
		}
	}
	if end != "" {
		if g.EndDate, err = entities.ParseDate(end); err != nil {
			return nil, fmt.Errorf("toGranule[%s].%w", g.ID(), err)
		}
	}

	for _, ru := range u.RelatedUrls {
		if ru.Type != relatedURLGetData && ru.Type != relatedURLDirectAccess {
			continue
		}
		switch {
		case strings.HasPrefix(ru.URL, "s3://"):
			g.S3Links = append(g.S3Links, ru.URL)
		case strings.HasPrefix(ru.URL, "https://"), strings.HasPrefix(ru.URL, "http://"):
			g.DataLinks = append(g.DataLinks, ru.URL)
		}
	}

	// Footprint: first bounding rectangle, else first polygon (else: the world, see entities.WorldWKT)
	geo := u.SpatialExtent.HorizontalSpatialDomain.Geometry
	var footprint geom.Geometry
	if len(geo.BoundingRectangles) > 0 {
		r := geo.BoundingRectangles[0]
		footprint = geom.Polygon{{{r.West, r.South}, {r.East, r.South}, {r.East, r.North}, {r.West, r.North}}}
	} else if len(geo.GPolygons) > 0 && len(geo.GPolygons[0].Boundary.Points) > 0 {
		var ring [][2]float64
		for _, pt := range geo.GPolygons[0].Boundary.Points {
			ring = append(ring, [2]float64{pt.Longitude, pt.Latitude})
		}
		footprint = geom.Polygon{ring}
	}
	if footprint != nil {
		if g.GeometryWKT, err = wkt.EncodeString(footprint); err != nil {
			return nil, fmt.Errorf("toGranule[%s].EncodeString: %w", g.ID(), err)
		}
	}

	if u.DataGranule.DayNightFlag != "" {
		g.Tags[common.TagDayNightFlag] = u.DataGranule.DayNightFlag
	}
	if u.DataGranule.ProductionDateTime != "" {
		g.Tags[common.TagProductionDate] = u.DataGranule.ProductionDateTime
	}
	for _, attr := range u.AdditionalAttributes {
		if len(attr.Values) == 0 {
			continue
		}
		switch attr.Name {
		case attributeCloudCover:
			g.Tags[common.TagCloudCover] = attr.Values[0]
		case attributeMGRSTileID:
			g.Tags[common.TagTile] = attr.Values[0]
		}
	}
	if info, err := common.Info(g.GranuleUR); err == nil {
		g.Tags[common.TagDataset] = info["DATASET"]
		g.Tags[common.TagSensor] = info["SENSOR"]
		if tile, ok := info["TILE"]; ok {
			g.Tags[common.TagTile] = tile
		} else if burst, ok := info["BURST"]; ok {
			g.Tags[common.TagTile] = burst
		}
	}
	return g, nil
}
