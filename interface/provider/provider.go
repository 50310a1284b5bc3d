package provider

import (
	"context"
	"fmt"

	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
)

// FileProvider is the interface of a file download service
type FileProvider interface {
	// Download the file pointed by link to localFile
	// link is for example https://archive.podaac.earthdata.nasa.gov/.../OPERA_L3_DSWx-HLS_..._B01_WTR.tif
	Download(ctx context.Context, link, localFile string) error

	// Supports returns true if the provider is able to download the link
	Supports(link string) bool

	// Name of the provider
	Name() string
}

// ErrFileNotFound is an error returned when a file is not found or available
type ErrFileNotFound struct {
	Link string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found or unavailable: %s", e.Link)
}

// Download tries the providers supporting the link, until one succeeds
func Download(ctx context.Context, providers []FileProvider, link, localFile string) error {
	var err error
	tried := false
	for _, p := range providers {
		if !p.Supports(link) {
			continue
		}
		tried = true
		log.Logger(ctx).Sugar().Debugf("downloading %s with %s", link, p.Name())
		e := p.Download(ctx, link, localFile)
		if err = service.MergeErrors(false, err, e); err == nil {
			return nil
		}
		log.Logger(ctx).Sugar().Debugf("%s: %v", p.Name(), e)
	}
	if !tried {
		return fmt.Errorf("Download: no provider for %s", link)
	}
	return fmt.Errorf("Download.%w", err)
}
