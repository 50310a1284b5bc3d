package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/interface/display/project"
	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server exposes the mosaics of a single project through http.
// One mosaic at a time: a concurrent request is refused (409).
type Server struct {
	Processor *Processor
	Display   *project.Project

	busy sync.Mutex
}

// MosaicResponse is the response of the mosaic request
type MosaicResponse struct {
	Result common.Result  `json:"result"`
	Report *mosaic.Report `json:"report,omitempty"`
}

// AddHandler adds the mosaic handlers to the router
func (s *Server) AddHandler(r *mux.Router) {
	r.HandleFunc("/mosaic", s.MosaicHandler).Methods("POST")
	r.HandleFunc("/mosaic/manifest", s.ManifestHandler).Methods("GET")
	r.HandleFunc("/mosaic/files/{name}", s.FileHandler).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "ok") }).Methods("GET")
}

// StatusCode returns the http status of a mosaic error
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, mosaic.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, mosaic.ErrNoGranules):
		return http.StatusBadRequest
	case errors.Is(err, mosaic.ErrSession):
		return http.StatusBadGateway
	case errors.Is(err, mosaic.ErrNoAccessibleFiles), errors.Is(err, mosaic.ErrNoLayers):
		return http.StatusUnprocessableEntity
	case service.Temporary(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// MosaicHandler creates the mosaics of a common.MosaicJob and adds them to the project
func (s *Server) MosaicHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	var job common.MosaicJob
	if err := json.NewDecoder(req.Body).Decode(&job); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "invalid job: %v", err)
		return
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Example == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "missing required field: 'example'")
		return
	}
	ctx = log.With(ctx, "job", job.ID)

	var res MosaicResponse
	var err error
	if !s.busy.TryLock() {
		err = mosaic.ErrBusy
		res.Result = common.Result{Type: common.ResultTypeMosaic, ID: job.ID, Status: common.StatusFAILED, Message: err.Error()}
	} else {
		res.Result, res.Report, err = s.Processor.Mosaic(ctx, job, s.Display)
		s.busy.Unlock()
	}
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("processor.MosaicHandler.%v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Logger(ctx).Sugar().Warnf("processor.MosaicHandler.%v", err)
	}
}

// ManifestHandler returns the manifest of the project
func (s *Server) ManifestHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Display.Manifest()); err != nil {
		log.Logger(req.Context()).Sugar().Warnf("processor.ManifestHandler.%v", err)
	}
}

// FileHandler returns a virtual mosaic, the manifest or a report of the project
func (s *Server) FileHandler(w http.ResponseWriter, req *http.Request) {
	name := filepath.Base(mux.Vars(req)["name"])
	switch service.GetExt(name) {
	case service.ExtensionVRT, service.ExtensionJSON, service.ExtensionGeoJSON:
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := filepath.Join(s.Display.Dir(), name)
	if _, err := os.Stat(path); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.ServeFile(w, req, path)
}
