package common

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DAAC is a NASA Distributed Active Archive Center hosting OPERA collections
type DAAC string

const (
	DAACPODAAC  DAAC = "PODAAC"
	DAACLPCLOUD DAAC = "LPCLOUD"
	DAACASF     DAAC = "ASF"
)

var s3CredentialsEndpoints = map[DAAC]string{
	DAACPODAAC:  "https://archive.podaac.earthdata.nasa.gov/s3credentials",
	DAACLPCLOUD: "https://data.lpdaac.earthdatacloud.nasa.gov/s3credentials",
	DAACASF:     "https://sentinel1.asf.alaska.edu/s3credentials",
}

// S3CredentialsEndpoint returns the url delivering temporary S3 credentials for the collections of the DAAC
func (d DAAC) S3CredentialsEndpoint() (string, error) {
	if e, ok := s3CredentialsEndpoints[DAAC(strings.ToUpper(string(d)))]; ok {
		return e, nil
	}
	return "", fmt.Errorf("unknown DAAC: %s", d)
}

// DatasetInfo describes a searchable OPERA collection
type DatasetInfo struct {
	ShortName   string `toml:"short_name" json:"short_name"`
	Title       string `toml:"title" json:"title"`
	ShortTitle  string `toml:"short_title" json:"short_title"`
	Description string `toml:"description" json:"description"`
	DAAC        DAAC   `toml:"daac" json:"daac"`
}

// Datasets indexes the collections by short name
type Datasets map[string]DatasetInfo

// DefaultDatasets returns the built-in OPERA collections
func DefaultDatasets() Datasets {
	ds := Datasets{}
	for _, d := range []DatasetInfo{
		{"OPERA_L3_DSWX-HLS_V1", "Dynamic Surface Water Extent from Harmonized Landsat Sentinel-2 (Version 1)", "DSWX-HLS", "Surface water extent derived from HLS data", DAACPODAAC},
		{"OPERA_L3_DSWX-S1_V1", "Dynamic Surface Water Extent from Sentinel-1 (Version 1)", "DSWX-S1", "Surface water extent derived from Sentinel-1 SAR data", DAACPODAAC},
		{"OPERA_L3_DIST-ALERT-HLS_V1", "Land Surface Disturbance Alert from HLS (Version 1)", "DIST-ALERT", "Near real-time disturbance alerts", DAACLPCLOUD},
		{"OPERA_L3_DIST-ANN-HLS_V1", "Land Surface Disturbance Annual from HLS (Version 1)", "DIST-ANN", "Annual land surface disturbance product", DAACLPCLOUD},
		{"OPERA_L2_RTC-S1_V1", "Radiometric Terrain Corrected SAR Backscatter from Sentinel-1 (Version 1)", "RTC-S1", "Analysis-ready SAR backscatter data", DAACASF},
		{"OPERA_L2_RTC-S1-STATIC_V1", "RTC-S1 Static Layers (Version 1)", "RTC-S1-STATIC", "Static layers for RTC-S1 product", DAACASF},
		{"OPERA_L2_CSLC-S1_V1", "Coregistered Single-Look Complex from Sentinel-1 (Version 1)", "CSLC-S1", "SLC data coregistered to a common reference", DAACASF},
		{"OPERA_L2_CSLC-S1-STATIC_V1", "CSLC-S1 Static Layers (Version 1)", "CSLC-S1-STATIC", "Static layers for CSLC-S1 product", DAACASF},
	} {
		ds[d.ShortName] = d
	}
	return ds
}

type datasetsFile struct {
	Datasets []DatasetInfo `toml:"dataset"`
}

// LoadDatasets returns the built-in collections, overridden or extended by the [[dataset]] entries of the toml file (if any)
//
//	[[dataset]]
//	short_name = "OPERA_L3_DSWX-HLS_V1"
//	daac = "PODAAC"
func LoadDatasets(path string) (Datasets, error) {
	ds := DefaultDatasets()
	if path == "" {
		return ds, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadDatasets.%w", err)
	}
	var f datasetsFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("LoadDatasets.Unmarshal[%s]: %w", path, err)
	}
	for _, d := range f.Datasets {
		if d.ShortName == "" {
			return nil, fmt.Errorf("LoadDatasets[%s]: dataset without short_name", path)
		}
		d.ShortName = strings.ToUpper(d.ShortName)
		if prev, ok := ds[d.ShortName]; ok {
			d = prev.merge(d)
		}
		if d.DAAC != "" {
			if _, err := d.DAAC.S3CredentialsEndpoint(); err != nil {
				return nil, fmt.Errorf("LoadDatasets[%s]: %w", d.ShortName, err)
			}
		}
		ds[d.ShortName] = d
	}
	return ds, nil
}

func (d DatasetInfo) merge(o DatasetInfo) DatasetInfo {
	if o.Title != "" {
		d.Title = o.Title
	}
	if o.ShortTitle != "" {
		d.ShortTitle = o.ShortTitle
	}
	if o.Description != "" {
		d.Description = o.Description
	}
	if o.DAAC != "" {
		d.DAAC = o.DAAC
	}
	return d
}

// Get returns the collection by short name or short title (case-insensitive)
func (ds Datasets) Get(name string) (DatasetInfo, bool) {
	name = strings.ToUpper(name)
	if d, ok := ds[name]; ok {
		return d, true
	}
	for _, d := range ds {
		if strings.ToUpper(d.ShortTitle) == name {
			return d, true
		}
	}
	return DatasetInfo{}, false
}

// ShortNames returns the sorted short names
func (ds Datasets) ShortNames() []string {
	names := make([]string, 0, len(ds))
	for k := range ds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
