package mosaic

import (
	"regexp"
	"strings"
)

const (
	wktKeyLength   = 100
	shortNameLimit = 30
	unknownCRS     = "Unknown CRS"
)

var zoneRegexp = regexp.MustCompile(`(?i)(UTM zone \d+[NS]?)`)

// SpatialRef identifies the coordinate reference system of a raster
type SpatialRef struct {
	Authority string `json:"authority,omitempty"` // e.g. EPSG
	Code      string `json:"code,omitempty"`      // e.g. 32612
	Name      string `json:"name,omitempty"`      // e.g. WGS 84 / UTM zone 12N
	WKT       string `json:"wkt,omitempty"`
}

// IsZero returns true if the SpatialRef does not define any CRS
func (sr SpatialRef) IsZero() bool {
	return sr.Code == "" && sr.WKT == ""
}

// Key returns the identity of the CRS used to group the files:
// AUTHORITY:CODE if the CRS is resolvable to an authority code, otherwise the first 100 characters of the WKT.
// Two different CRS sharing the same first 100 characters of WKT (without authority) get the same key.
func (sr SpatialRef) Key() string {
	if sr.Code != "" {
		authority := strings.ToUpper(sr.Authority)
		if authority == "" {
			authority = "EPSG"
		}
		return authority + ":" + sr.Code
	}
	return truncate(sr.WKT, wktKeyLength)
}

// ShortName returns a human-readable name of the CRS (e.g. "UTM zone 12N")
func (sr SpatialRef) ShortName() string {
	if sr.Name == "" {
		return unknownCRS
	}
	if m := zoneRegexp.FindStringSubmatch(sr.Name); m != nil {
		return m[1]
	}
	return truncate(sr.Name, shortNameLimit)
}

// Equal returns true if both SpatialRefs have the same Key
func (sr SpatialRef) Equal(o SpatialRef) bool {
	return sr.Key() == o.Key()
}

func (sr SpatialRef) String() string {
	if sr.Name != "" {
		return sr.Key() + " (" + sr.Name + ")"
	}
	return sr.Key()
}

// truncate returns the n first characters of s
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
