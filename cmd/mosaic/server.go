package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/airbusgeo/opera-mosaic/catalog"
	"github.com/airbusgeo/opera-mosaic/common"
	catalogProvider "github.com/airbusgeo/opera-mosaic/interface/catalog"
	"github.com/airbusgeo/opera-mosaic/interface/catalog/cmr"
	"github.com/airbusgeo/opera-mosaic/processor"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// serve exposes the catalog and the mosaics of a single project through http
func serve(ctx context.Context, config *config, datasets common.Datasets, p *processor.Processor) error {
	display, err := p.NewProject(filepath.Join(config.WorkingDir, "server"), config.CanvasCRS)
	if err != nil {
		return err
	}

	cmrProvider := cmr.NewProvider(config.CMRRate)
	if config.CMRURL != "" {
		cmrProvider.URL = config.CMRURL
	}
	c := catalog.Catalog{
		Providers: []catalogProvider.GranulesProvider{cmrProvider},
		Datasets:  datasets,
	}
	server := processor.Server{Processor: p, Display: display}

	router := mux.NewRouter()
	c.AddHandler(router)
	server.AddHandler(router)
	bearerAuths = map[string]string{"default": config.APIToken}

	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	s := http.Server{
		Addr:    config.Listen,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(BearerAuthenticate(router)),
	}
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Fatal("mosaic.ListenAndServe", zap.Error(err))
		}
	}()
	log.Logger(ctx).Sugar().Infof("mosaic server listening on %s (project: %s)", config.Listen, display.Dir())

	<-ctx.Done()
	sctx, cncl := context.WithTimeout(context.Background(), 30*time.Second)
	defer cncl()
	return s.Shutdown(sctx)
}
