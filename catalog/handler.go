package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/airbusgeo/opera-mosaic/catalog/entities"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/gorilla/mux"
)

const requestJSONField = "request"
const granulesJSONField = "granules"

func (c *Catalog) AddHandler(r *mux.Router) {
	r.HandleFunc("/catalog/datasets", c.DatasetsHandler).Methods("GET")
	r.HandleFunc("/catalog/granules", c.GranulesHandler).Methods("POST")
	r.HandleFunc("/catalog/coverage", c.CoverageHandler).Methods("POST")
}

// readField reads a form field, a form file or, by default, the body of the request
func readField(req *http.Request, field string) ([]byte, error) {
	if req.Header.Get("Content-Type") == "application/json" {
		return io.ReadAll(req.Body)
	}
	if req.FormValue(field) != "" {
		return []byte(req.FormValue(field)), nil
	}
	file, _, err := req.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	io.Copy(&buf, file)
	return buf.Bytes(), nil
}

func loadRequest(req *http.Request) (entities.SearchRequest, error) {
	sr := entities.SearchRequest{}
	requestJSON, err := readField(req, requestJSONField)
	if err != nil {
		return sr, err
	}
	if len(requestJSON) == 0 {
		return sr, fmt.Errorf("loadRequest: missing required field: '%s' (application/json)", requestJSONField)
	}
	if err := json.Unmarshal(requestJSON, &sr); err != nil {
		return sr, fmt.Errorf("loadRequest: %w\nJSON:\n%s", err, requestJSON)
	}
	return sr, nil
}

// DatasetsHandler returns the known datasets
func (c *Catalog) DatasetsHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.Datasets); err != nil {
		log.Logger(req.Context()).Sugar().Warnf("catalog.DatasetsHandler.%v", err)
	}
}

// GranulesHandler searches the granules and returns them as a geojson FeatureCollection
func (c *Catalog) GranulesHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	sr, err := loadRequest(req)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}
	if err := c.ValidateRequest(&sr); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	granules, err := c.Search(ctx, &sr)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.GranulesHandler.%v", err)
		w.WriteHeader(500)
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(granules); err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.GranulesHandler.%v", err)
	}
}

// CoverageHandler returns the union of the footprints of granules (previous call of GranulesHandler)
// as WKT or, with ?format=geojson, as a geojson geometry
func (c *Catalog) CoverageHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	granulesJSON, err := readField(req, granulesJSONField)
	if err != nil || len(granulesJSON) == 0 {
		w.WriteHeader(400)
		fmt.Fprintf(w, "missing required field: '%s' (application/geo+json)", granulesJSONField)
		return
	}
	var granules entities.Granules
	if err := json.Unmarshal(granulesJSON, &granules); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	if req.URL.Query().Get("format") == "geojson" {
		g, err := CoverageGeometry(granules.Granules)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("catalog.CoverageHandler.%v", err)
			w.WriteHeader(500)
			fmt.Fprintf(w, "%v", err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		json.NewEncoder(w).Encode(geojson.Geometry{Geometry: g})
		return
	}

	wkt, err := Coverage(granules.Granules)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.CoverageHandler.%v", err)
		w.WriteHeader(500)
		fmt.Fprintf(w, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, wkt)
}
