package mosaic

import (
	"errors"
	"fmt"
)

var (
	ErrSession           = errors.New("failed to setup cloud access")
	ErrNoGranules        = errors.New("no granules selected")
	ErrNoAccessibleFiles = errors.New("no accessible files found for selected granules")
	ErrNoLayers          = errors.New("failed to create any mosaic layers")
	ErrBusy              = errors.New("a mosaic is already being created")
)

// NoAccessibleFilesError is returned when no file of the selected granules could be opened
type NoAccessibleFilesError struct {
	NotFound     int
	AccessFailed int
}

func (e NoAccessibleFilesError) Error() string {
	return fmt.Sprintf("%s (%d granules missing the layer, %d files failed to open)", ErrNoAccessibleFiles.Error(), e.NotFound, e.AccessFailed)
}

func (e NoAccessibleFilesError) Is(target error) bool {
	return target == ErrNoAccessibleFiles
}
