package mosaic

import (
	"github.com/go-spatial/geom"
)

// OutcomeStatus is the result of the inspection of a granule
type OutcomeStatus string

const (
	OutcomeOK           OutcomeStatus = "OK"
	OutcomeNotFound     OutcomeStatus = "NOT FOUND"
	OutcomeAccessFailed OutcomeStatus = "FAILED"
)

// Outcome is the result of the inspection of one granule
type Outcome struct {
	Index     int           `json:"index"` // 1-based
	GranuleID string        `json:"granule_id"`
	Status    OutcomeStatus `json:"status"`
	File      string        `json:"file,omitempty"`
	CRSKey    string        `json:"crs_key,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// GroupFailure reports a CRS group that did not produce a layer
type GroupFailure struct {
	CRSKey    string `json:"crs_key"`
	ShortName string `json:"crs_name"`
	Reason    string `json:"reason"`
}

// Report summarizes a mosaic operation
type Report struct {
	Band         string         `json:"band"`
	Granules     int            `json:"granules"`
	Outcomes     []Outcome      `json:"outcomes"`
	NotFound     []string       `json:"not_found,omitempty"`     // granule ids
	AccessFailed []string       `json:"access_failed,omitempty"` // file names
	Groups       []*Group       `json:"groups"`
	Layers       []Layer        `json:"layers"`
	FailedGroups []GroupFailure `json:"failed_groups,omitempty"`
	Extent       *geom.Extent   `json:"extent,omitempty"` // combined extent in the display CRS, buffered
}

// Files returns the number of files grouped by CRS
func (r *Report) Files() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Paths)
	}
	return n
}

// Scenes returns the number of scenes in the created layers
func (r *Report) Scenes() int {
	n := 0
	for _, l := range r.Layers {
		n += l.Scenes
	}
	return n
}
