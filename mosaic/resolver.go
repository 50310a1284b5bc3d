package mosaic

import (
	"context"
	"fmt"

	"github.com/airbusgeo/opera-mosaic/common"
)

const reasonLength = 50

// Group is a set of files sharing the same CRS
type Group struct {
	Key       string     `json:"key"`
	ShortName string     `json:"name"`
	CRS       SpatialRef `json:"crs"`
	Paths     []string   `json:"paths"` // VSI paths, in discovery order
}

// Resolution is the result of Resolve
type Resolution struct {
	Groups       []*Group // in discovery order
	Outcomes     []Outcome
	NotFound     []string
	AccessFailed []string
}

// Files returns the number of grouped files
func (r *Resolution) Files() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Paths)
	}
	return n
}

// Resolve finds the file of the band in each granule, opens it to read its CRS and groups the files by CRS.
// Granules without the band and files that cannot be opened are reported and skipped.
// It fails with a NoAccessibleFilesError if no file has been grouped.
func Resolve(ctx context.Context, prober Prober, granules []GranuleSource, band string, progress Progress) (*Resolution, error) {
	res := &Resolution{}
	byKey := map[string]*Group{}

	for i, granule := range granules {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("Resolve: %w", err)
		}
		outcome := Outcome{Index: i + 1, GranuleID: granule.ID()}

		link, ok := common.FindBand(granule.Links(), band)
		if !ok {
			outcome.Status = OutcomeNotFound
			res.NotFound = append(res.NotFound, granule.ID())
			res.Outcomes = append(res.Outcomes, outcome)
			progress(fmt.Sprintf("  [%d] NOT FOUND: No %s in granule", outcome.Index, band))
			continue
		}
		outcome.File = common.FileName(link)

		path := VSIPath(link)
		sr, err := prober.Probe(ctx, path)
		if err != nil {
			outcome.Status = OutcomeAccessFailed
			outcome.Reason = truncate(err.Error(), reasonLength)
			res.AccessFailed = append(res.AccessFailed, outcome.File)
			res.Outcomes = append(res.Outcomes, outcome)
			progress(fmt.Sprintf("  [%d] FAILED: %s (%s)", outcome.Index, outcome.File, outcome.Reason))
			continue
		}

		key := sr.Key()
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, ShortName: sr.ShortName(), CRS: sr}
			byKey[key] = g
			res.Groups = append(res.Groups, g)
		}
		g.Paths = append(g.Paths, path)

		outcome.Status = OutcomeOK
		outcome.CRSKey = key
		res.Outcomes = append(res.Outcomes, outcome)
		progress(fmt.Sprintf("  [%d] OK: %s (%s)", outcome.Index, outcome.File, g.ShortName))
	}

	if len(res.NotFound) > 0 {
		progress(fmt.Sprintf("Warning: %d granules missing layer %s", len(res.NotFound), band))
	}
	if len(res.AccessFailed) > 0 {
		progress(fmt.Sprintf("Warning: %d files failed to open", len(res.AccessFailed)))
	}

	files := res.Files()
	if files == 0 {
		return res, NoAccessibleFilesError{NotFound: len(res.NotFound), AccessFailed: len(res.AccessFailed)}
	}
	progress(fmt.Sprintf("Successfully verified %d of %d files", files, len(granules)))
	progress(fmt.Sprintf("Found %d different projection(s)", len(res.Groups)))
	return res, nil
}
