package common

import (
	"path"
	"regexp"
	"strings"
)

var bandRegexp = regexp.MustCompile(`(?i)_(B\d+_[A-Za-z0-9]+)\.tif$`)

// BandToken returns the band identifier of a file of a granule, used to find the same band in other granules.
// e.g. OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif => B01_WTR
// If the filename does not end with _Bxx_yyy.tif, the last two "_"-separated parts are used.
func BandToken(filename string) string {
	if m := bandRegexp.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	parts := strings.Split(strings.ReplaceAll(filename, ".tif", ""), "_")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], "_")
	}
	if len(parts) == 1 && parts[0] != "" {
		return parts[0]
	}
	return filename
}

// MatchesBand returns true if the link (url or filename) is the file of the band (case-insensitive)
func MatchesBand(link, band string) bool {
	link = strings.ToLower(link)
	band = strings.ToLower(band)
	return strings.Contains(link, "_"+band+".tif") || strings.HasSuffix(link, band+".tif")
}

// FindBand returns the first link matching the band
func FindBand(links []string, band string) (string, bool) {
	for _, link := range links {
		if MatchesBand(link, band) {
			return link, true
		}
	}
	return "", false
}

// FileName returns the name of the file pointed by the link
func FileName(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return path.Base(link)
}

// IsGeoTiff returns true if the link points to a tif file
func IsGeoTiff(link string) bool {
	ext := strings.ToLower(path.Ext(FileName(link)))
	return ext == ".tif" || ext == ".tiff"
}
