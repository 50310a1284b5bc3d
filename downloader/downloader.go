package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/interface/provider"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers    = 4
	DefaultCacheDir   = "nasa_opera_cache"
	DefaultTries      = 3
	DefaultRetryDelay = 2 * time.Second
)

// Downloader downloads the files of the granules in a local cache
type Downloader struct {
	Providers []provider.FileProvider
	CacheDir  string // Default: <tmp>/nasa_opera_cache
	Workers   int    // Parallel downloads (default: 4)
	Tries     int    // Tries of a download in case of temporary errors (default: 3)

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// File is a downloaded file
type File struct {
	GranuleID string `json:"granule_id"`
	Link      string `json:"link"`
	Path      string `json:"path"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error,omitempty"`
}

func (d *Downloader) cacheDir() string {
	if d.CacheDir != "" {
		return d.CacheDir
	}
	return filepath.Join(os.TempDir(), DefaultCacheDir)
}

// CachePath returns the path of the file of the link in the cache
func (d *Downloader) CachePath(link string) string {
	return filepath.Join(d.cacheDir(), common.FileName(link))
}

// lock serializes the downloads of the same file
func (d *Downloader) lock(path string) func() {
	d.mu.Lock()
	if d.inflight == nil {
		d.inflight = map[string]*sync.Mutex{}
	}
	m, ok := d.inflight[path]
	if !ok {
		m = &sync.Mutex{}
		d.inflight[path] = m
	}
	d.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// DownloadFile downloads the file of the link in the cache, unless it is already there.
// It returns the local path and whether the file was already cached.
func (d *Downloader) DownloadFile(ctx context.Context, link string) (string, bool, error) {
	localFile := d.CachePath(link)
	defer d.lock(localFile)()

	if info, err := os.Stat(localFile); err == nil && info.Size() > 0 {
		log.Logger(ctx).Sugar().Infof("Using cached file: %s", localFile)
		return localFile, true, nil
	}
	if err := os.MkdirAll(d.cacheDir(), 0766); err != nil {
		return "", false, service.MakeTemporary(fmt.Errorf("DownloadFile: make directory %s: %w", d.cacheDir(), err))
	}

	// Download to a temporary file, so that an interrupted download is never taken for a cached file
	tmpFile := localFile + "." + uuid.New().String() + ".part"
	defer os.Remove(tmpFile)
	log.Logger(ctx).Sugar().Infof("Downloading %s...", common.FileName(link))
	tries := d.Tries
	if tries <= 0 {
		tries = DefaultTries
	}
	err := service.Retriable(ctx, func() error {
		err := provider.Download(ctx, d.Providers, link, tmpFile)
		if err != nil && !service.Temporary(err) {
			return service.MakeFatal(err)
		}
		return err
	}, DefaultRetryDelay, tries)
	if err != nil {
		return "", false, fmt.Errorf("DownloadFile.%w", err)
	}
	if err := os.Rename(tmpFile, localFile); err != nil {
		return "", false, service.MakeTemporary(fmt.Errorf("DownloadFile.Rename: %w", err))
	}
	log.Logger(ctx).Sugar().Infof("Downloaded to: %s", localFile)
	return localFile, false, nil
}

// DownloadGranules downloads the files of the granules matching the band (all the files if band is empty), in parallel.
// A failed file does not stop the others: its error is reported in File.Error and merged in the returned error.
func (d *Downloader) DownloadGranules(ctx context.Context, granules []common.Granule, band string) ([]File, error) {
	var files []File
	for _, g := range granules {
		links := g.Links()
		if band != "" {
			link, ok := common.FindBand(links, band)
			if !ok {
				log.Logger(ctx).Sugar().Warnf("No %s in granule %s", band, g.ID())
				continue
			}
			links = []string{link}
		}
		for _, link := range links {
			files = append(files, File{GranuleID: g.ID(), Link: link})
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("DownloadGranules: nothing to download")
	}

	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	errs := make([]error, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range files {
		eg.Go(func() error {
			f := &files[i]
			var err error
			if f.Path, f.Cached, err = d.DownloadFile(ctx, f.Link); err != nil {
				f.Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", f.GranuleID, err)
			}
			return nil
		})
	}
	eg.Wait()

	var err error
	for _, e := range errs {
		if e != nil {
			err = service.MergeErrors(true, err, e)
		}
	}
	if err != nil {
		return files, fmt.Errorf("DownloadGranules.%w", err)
	}
	return files, nil
}

// IsNotFound returns true if the error is due to a missing remote file
func IsNotFound(err error) bool {
	return errors.As(err, &provider.ErrFileNotFound{})
}
