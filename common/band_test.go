package common

import "testing"

func TestBandToken(t *testing.T) {
	for filename, expected := range map[string]string{
		"OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif":              "B01_WTR",
		"OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_b03_conf.TIF":             "b03_conf",
		"OPERA_L3_DIST-ALERT-HLS_T10SGD_20240102T184739Z_20240104T000000Z_S2A_30_v1_VEG-DIST-STATUS.tif": "v1_VEG-DIST-STATUS",
		"scene_output.tif": "scene_output",
		"a_b_c_d.tif":      "c_d",
		"single.tif":       "single",
		"":                 "",
	} {
		if token := BandToken(filename); token != expected {
			t.Errorf("%s: expected %s, got %s", filename, expected, token)
		}
	}
}

func TestMatchesBand(t *testing.T) {
	link := "https://archive.podaac.earthdata.nasa.gov/podaac-ops-cumulus-protected/OPERA_L3_DSWX-HLS_V1/OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1_B01_WTR.tif"
	if !MatchesBand(link, "B01_WTR") || !MatchesBand(link, "b01_wtr") {
		t.Errorf("band must match")
	}
	if MatchesBand(link, "B02_BWTR") {
		t.Errorf("band must not match")
	}
	if !MatchesBand("s3://bucket/scene_output.tif", "scene_output") {
		t.Errorf("suffix must match")
	}
	links := []string{
		"https://host/OPERA_..._v1.1_B02_BWTR.tif",
		"https://host/OPERA_..._v1.1_B01_WTR.tif",
		"https://host/OPERA_..._v1.1_B01_WTR.tif.md5",
	}
	if l, ok := FindBand(links, "B01_WTR"); !ok || l != links[1] {
		t.Errorf("expected %s, got %s", links[1], l)
	}
	if _, ok := FindBand(links, "B03_CONF"); ok {
		t.Errorf("B03_CONF must not be found")
	}
}

func TestFileName(t *testing.T) {
	if f := FileName("https://host/dir/file_B01_WTR.tif?token=1#x"); f != "file_B01_WTR.tif" {
		t.Errorf("unexpected %s", f)
	}
	if !IsGeoTiff("s3://b/k/file.TIFF") || IsGeoTiff("https://host/file.h5") {
		t.Errorf("IsGeoTiff")
	}
}
