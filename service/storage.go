package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/mholt/archiver"
)

// Extension of an artifact
type Extension string

// Some supported extensions
const (
	NoExtension      Extension = ""
	ExtensionVRT     Extension = "vrt"
	ExtensionJSON    Extension = "json"
	ExtensionGeoJSON Extension = "geojson"
	ExtensionZIP     Extension = "zip"
	// The content of the whole working directory, stored as one zip file
	ExtensionAll Extension = "*"
)

// ErrFileNotFound is an error returned by ImportArtifact or DeleteArtifact
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// ArtifactFileName returns the name of the stored file given the name of the artifact and its extension
func ArtifactFileName(name string, ext Extension) string {
	switch ext {
	case NoExtension:
		return name
	case ExtensionAll:
		return name + "." + string(ExtensionZIP)
	}
	return name + "." + string(ext)
}

// Storage is a service to store and retrieve the artifacts of a job (virtual mosaics, manifests, bundles)
type Storage interface {
	// SaveArtifact persists the artifact <name>.<ext> of localdir into the storage and returns the uri
	// If ext is ExtensionAll, the whole localdir is stored as <name>.zip
	SaveArtifact(ctx context.Context, jobID, name string, ext Extension, localdir string) (string, error)
	// ImportArtifact imports the artifact from the storage to the given localdir
	// Raise ErrFileNotFound
	ImportArtifact(ctx context.Context, jobID, name string, ext Extension, localdir string) error
	// DeleteArtifact deletes the artifact from the storage
	// Raise ErrFileNotFound
	DeleteArtifact(ctx context.Context, jobID, name string, ext Extension) error
}

// StorageStrategy implements Storage using geocube.Strategy
type StorageStrategy struct {
	storage storage.Strategy
	uri     uri.DefaultUri
}

// NewStorageStrategy creates a new StorageStrategy (local directory or gs://bucket/prefix)
func NewStorageStrategy(ctx context.Context, storageURI string) (*StorageStrategy, error) {
	uri, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.ParseURI: %w", err)
	}

	storageClient, err := uri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy: %w", err)
	}

	return &StorageStrategy{storage: storageClient, uri: uri}, nil
}

// SaveArtifact implements Storage
func (ss *StorageStrategy) SaveArtifact(ctx context.Context, jobID, name string, ext Extension, localdir string) (string, error) {
	src := path.Join(localdir, ArtifactFileName(name, ext))

	if ext == ExtensionAll {
		// Zip the content of the localdir.
		files, err := os.ReadDir(localdir)
		if err != nil {
			return "", fmt.Errorf("SaveArtifact.Archive: %w", err)
		}
		var sources []string
		for _, f := range files {
			if f.Name() != filepath.Base(src) {
				sources = append(sources, path.Join(localdir, f.Name()))
			}
		}
		if len(sources) == 0 {
			return "", fmt.Errorf("SaveArtifact: nothing to archive in %s", localdir)
		}
		zipper := archiver.NewZip()
		zipper.CompressionLevel = flate.BestSpeed
		zipper.OverwriteExisting = true
		if err := zipper.Archive(sources, src); err != nil {
			return "", fmt.Errorf("SaveArtifact.Archive: %w", err)
		}
		defer os.Remove(src)
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("SaveArtifact.Open: %w", err)
	}
	defer f.Close()

	dst := ss.getPath(jobID, ArtifactFileName(name, ext))
	if err := ss.storage.UploadFile(ctx, dst, f); err != nil {
		return "", fmt.Errorf("SaveArtifact.UploadFromFile to %s: %w", dst, err)
	}

	return dst, nil
}

// ImportArtifact implements Storage
// A zipped directory (ExtensionAll) is unarchived in localdir
func (ss *StorageStrategy) ImportArtifact(ctx context.Context, jobID, name string, ext Extension, localdir string) error {
	fileName := ArtifactFileName(name, ext)
	srcFile := ss.getPath(jobID, fileName)
	dstFile := path.Join(localdir, fileName)
	if err := ss.storage.DownloadToFile(ctx, srcFile, dstFile); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{srcFile}
		}
		return fmt.Errorf("ImportArtifact.DownloadToFile from %s: %w", srcFile, err)
	}

	if ext == ExtensionAll {
		defer os.Remove(dstFile)
		zip := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
		if err := zip.Unarchive(dstFile, localdir); err != nil {
			return fmt.Errorf("ImportArtifact.Unarchive: %w", err)
		}
	}
	return nil
}

// DeleteArtifact implements Storage
func (ss *StorageStrategy) DeleteArtifact(ctx context.Context, jobID, name string, ext Extension) error {
	file := ss.getPath(jobID, ArtifactFileName(name, ext))
	if err := ss.storage.Delete(ctx, file); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{file}
		}
		return fmt.Errorf("DeleteArtifact.Delete: %w", err)
	}
	return nil
}

// getPath returns the path of the artifact of the job in the storage
func (ss *StorageStrategy) getPath(jobID, filename string) string {
	uri := ss.uri.String()
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + path.Join(jobID, filename)
}

func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}

func GetExt(filePath string) Extension {
	e := path.Ext(filePath)
	if e == "" {
		return NoExtension
	}
	return Extension(e[1:])
}
