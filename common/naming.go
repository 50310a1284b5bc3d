package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

//go:generate go run github.com/dmarkham/enumer -json -type Dataset

// Dataset defines the kind of OPERA product
type Dataset int

const (
	Unknown      Dataset = iota
	DSWxHLS              // OPERA_L3_DSWx-HLS_Ttttttt_YYYYMMDDTHHMMSSZ_YYYYMMDDTHHMMSSZ_SSS_RR_vX.Y
	DSWxS1               // OPERA_L3_DSWx-S1_Ttttttt_YYYYMMDDTHHMMSSZ_YYYYMMDDTHHMMSSZ_SSS_RR_vX.Y
	DISTAlertHLS         // OPERA_L3_DIST-ALERT-HLS_Ttttttt_YYYYMMDDTHHMMSSZ_YYYYMMDDTHHMMSSZ_SSS_RR_vX
	DISTAnnHLS           // OPERA_L3_DIST-ANN-HLS_...
	RTCS1                // OPERA_L2_RTC-S1_Tttt-bbbbbb-IWn_YYYYMMDDTHHMMSSZ_YYYYMMDDTHHMMSSZ_SSS_RR_vX.Y
	RTCS1Static          // OPERA_L2_RTC-S1-STATIC_Tttt-bbbbbb-IWn_YYYYMMDD_SSS_RR_vX.Y
	CSLCS1               // OPERA_L2_CSLC-S1_Tttt-bbbbbb-IWn_YYYYMMDDTHHMMSSZ_YYYYMMDDTHHMMSSZ_SSS_PP_vX.Y
	CSLCS1Static         // OPERA_L2_CSLC-S1-STATIC_Tttt-bbbbbb-IWn_YYYYMMDD_SSS_vX.Y
)

// GetDatasetFromString returns the dataset from the user input (collection short name, product name or granule id)
func GetDatasetFromString(input string) Dataset {
	switch strings.ToUpper(input) {
	case "OPERA_L3_DSWX-HLS_V1", "DSWX-HLS":
		return DSWxHLS
	case "OPERA_L3_DSWX-S1_V1", "DSWX-S1":
		return DSWxS1
	case "OPERA_L3_DIST-ALERT-HLS_V1", "DIST-ALERT", "DIST-ALERT-HLS":
		return DISTAlertHLS
	case "OPERA_L3_DIST-ANN-HLS_V1", "DIST-ANN", "DIST-ANN-HLS":
		return DISTAnnHLS
	case "OPERA_L2_RTC-S1_V1", "RTC-S1":
		return RTCS1
	case "OPERA_L2_RTC-S1-STATIC_V1", "RTC-S1-STATIC":
		return RTCS1Static
	case "OPERA_L2_CSLC-S1_V1", "CSLC-S1":
		return CSLCS1
	case "OPERA_L2_CSLC-S1-STATIC_V1", "CSLC-S1-STATIC":
		return CSLCS1Static
	}
	return GetDatasetFromGranuleID(input)
}

// GetDatasetFromGranuleID returns the dataset of a granule (or of one of its files)
func GetDatasetFromGranuleID(granuleID string) Dataset {
	parts := strings.Split(granuleID, "_")
	if len(parts) < 3 || parts[0] != "OPERA" {
		return Unknown
	}
	switch strings.ToUpper(parts[2]) {
	case "DSWX-HLS":
		return DSWxHLS
	case "DSWX-S1":
		return DSWxS1
	case "DIST-ALERT-HLS":
		return DISTAlertHLS
	case "DIST-ANN-HLS":
		return DISTAnnHLS
	case "RTC-S1":
		return RTCS1
	case "RTC-S1-STATIC":
		return RTCS1Static
	case "CSLC-S1":
		return CSLCS1
	case "CSLC-S1-STATIC":
		return CSLCS1Static
	}
	return Unknown
}

var operaTimeRegexp = regexp.MustCompile(`^\d{8}T\d{6}Z$`)

// GetDateFromGranuleID returns the acquisition (or validity) date of the granule
func GetDateFromGranuleID(granuleID string) (time.Time, error) {
	format, err := Info(granuleID)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", format["DATE"])
}

// Info parses the name of an OPERA granule.
// e.g. OPERA_L3_DSWx-HLS_T12STF_20231006T175631Z_20231008T142503Z_L8_30_v1.1
func Info(granuleID string) (map[string]string, error) {
	dataset := GetDatasetFromGranuleID(granuleID)
	if dataset == Unknown {
		return nil, fmt.Errorf("Info: not an OPERA granule: %s", granuleID)
	}
	parts := strings.Split(granuleID, "_")
	info := map[string]string{
		"GRANULE": granuleID,
		"LEVEL":   parts[1],
		"PRODUCT": parts[2],
		"DATASET": dataset.String(),
	}

	switch dataset {
	case RTCS1Static, CSLCS1Static:
		// OPERA_L2_RTC-S1-STATIC_T069-147170-IW1_20140403_S1A_30_v1.0 or OPERA_L2_CSLC-S1-STATIC_T069-147170-IW1_20140403_S1A_v1.0
		if len(parts) < 7 || len(parts[4]) != 8 {
			return nil, fmt.Errorf("invalid %s granule name: %s", dataset, granuleID)
		}
		info["BURST"] = parts[3]
		info["SENSOR"] = parts[5]
		setDate(info, parts[4])
		if !strings.HasPrefix(parts[6], "v") {
			// RTC-S1-STATIC carries the pixel spacing before the version
			if len(parts) < 8 {
				return nil, fmt.Errorf("invalid %s granule name: %s", dataset, granuleID)
			}
			info["SPACING"] = parts[6]
			parts = parts[1:]
		}
		setVersion(info, parts[6:])
	default:
		// OPERA_<LEVEL>_<PRODUCT>_<TILE|BURST>_<ACQUISITION>_<PRODUCTION>_<SENSOR>_<SPACING|POL>_<VERSION>
		if len(parts) < 9 || !operaTimeRegexp.MatchString(parts[4]) || !operaTimeRegexp.MatchString(parts[5]) {
			return nil, fmt.Errorf("invalid %s granule name: %s", dataset, granuleID)
		}
		switch dataset {
		case RTCS1, CSLCS1:
			info["BURST"] = parts[3]
		default:
			info["TILE"] = parts[3]
			info["MGRS_TILE"] = strings.TrimPrefix(parts[3], "T")
		}
		setDate(info, parts[4])
		info["TIME"] = parts[4][9:15]
		info["HOUR"] = parts[4][9:11]
		info["MINUTE"] = parts[4][11:13]
		info["SECOND"] = parts[4][13:15]
		info["PRODUCTION_DATE"] = parts[5][0:8]
		info["SENSOR"] = parts[6]
		if dataset == CSLCS1 {
			info["POLARIZATION"] = parts[7]
		} else {
			info["SPACING"] = parts[7]
		}
		setVersion(info, parts[8:])
	}
	return info, nil
}

func setDate(info map[string]string, date string) {
	info["DATE"] = date[0:8]
	info["YEAR"] = date[0:4]
	info["MONTH"] = date[4:6]
	info["DAY"] = date[6:8]
}

// setVersion sets the version and, if the name is a file name, the layer (e.g. B01_WTR) and the extension
func setVersion(info map[string]string, parts []string) {
	last := parts[len(parts)-1]
	for _, ext := range fileExtensions {
		if strings.HasSuffix(strings.ToLower(last), ext) {
			info["EXTENSION"] = ext[1:]
			parts[len(parts)-1] = last[:len(last)-len(ext)]
			break
		}
	}
	info["VERSION"] = strings.TrimPrefix(parts[0], "v")
	if len(parts) > 1 {
		info["LAYER"] = strings.Join(parts[1:], "_")
	}
}

var fileExtensions = []string{".tif", ".tiff", ".h5", ".iso.xml", ".xml", ".png"}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be one of GRANULE, LEVEL, PRODUCT, DATASET, TILE, BURST, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), SENSOR, VERSION
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
