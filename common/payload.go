package common

import (
	"time"
)

const (
	ResultTypeMosaic   = "mosaic"
	ResultTypeDownload = "download"
)

// Access is the way the files of a granule are accessed
type Access string

const (
	AccessExternal Access = "external" // https links (from anywhere)
	AccessDirect   Access = "direct"   // s3 links (in-region only, with DAAC temporary credentials)
)

// Granule is a remote OPERA product, made of several files
type Granule struct {
	ConceptID  string    `json:"concept_id"`
	GranuleUR  string    `json:"granule_ur"`
	ProducerID string    `json:"producer_granule_id,omitempty"`
	ShortName  string    `json:"short_name"`
	BeginDate  time.Time `json:"begin_date"`
	EndDate    time.Time `json:"end_date"`
	DataLinks  []string  `json:"data_links"`         // https links
	S3Links    []string  `json:"s3_links,omitempty"` // s3 links
	Access     Access    `json:"access,omitempty"`
}

// ID returns the native id of the granule (or its concept-id)
func (g Granule) ID() string {
	if g.GranuleUR != "" {
		return g.GranuleUR
	}
	return g.ConceptID
}

// Links returns the links of the files of the granule, according to its Access
// If the granule has no s3 links, the https links are returned.
func (g Granule) Links() []string {
	if g.Access == AccessDirect && len(g.S3Links) > 0 {
		return g.S3Links
	}
	return g.DataLinks
}

// WithAccess returns the granules with the given access
func WithAccess(granules []Granule, access Access) []Granule {
	res := make([]Granule, len(granules))
	for i, g := range granules {
		g.Access = access
		res[i] = g
	}
	return res
}

// MosaicJob is the payload of a mosaic request
type MosaicJob struct {
	ID        string    `json:"id"`
	Product   string    `json:"product,omitempty"` // Prefix of the layer names (default: OPERA)
	Example   string    `json:"example"`           // Name of one of the files to mosaic (e.g. OPERA_..._B01_WTR.tif)
	Granules  []Granule `json:"granules"`
	CanvasCRS string    `json:"canvas_crs,omitempty"`
}

// DownloadJob is the payload of a download request
type DownloadJob struct {
	ID       string    `json:"id"`
	Example  string    `json:"example"`
	Granules []Granule `json:"granules"`
}

// LayerResult describes a layer created by a job
type LayerResult struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	CRS    string `json:"crs,omitempty"`
	Scenes int    `json:"scenes,omitempty"`
}

// Result is the event sent at the end of a job
type Result struct {
	Type    string        `json:"type"` // mosaic (ResultTypeMosaic) or download (ResultTypeDownload)
	ID      string        `json:"id"`
	Status  Status        `json:"status"`
	Message string        `json:"message"`
	Layers  []LayerResult `json:"layers,omitempty"`
}
