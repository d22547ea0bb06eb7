// Package restserver exposes calculations, archived runs and the sun almanac over HTTP
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/storage"
	"github.com/chrissnell/daylight/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodyBytes caps an uploaded building document
const maxBodyBytes = 8 << 20

// ResultStore archives runs and reads them back. *managers.StorageManager
// implements it.
type ResultStore interface {
	Submit(ctx context.Context, r *compliance.BuildingResult) error
	LatestRun(ctx context.Context, buildingID string) (*compliance.BuildingResult, error)
	HealthStatus() map[string]storage.Health
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	engine     *compliance.Engine
	store      ResultStore
	metrics    http.Handler
	logger     *zap.SugaredLogger
	handlers   *Handlers
	now        func() time.Time
}

// NewController creates a new REST server controller. store and metrics may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, engine *compliance.Engine,
	store ResultStore, metrics http.Handler, logger *zap.SugaredLogger) (*Controller, error) {
	if engine == nil {
		return nil, fmt.Errorf("REST server needs a compliance engine")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		engine:     engine,
		store:      store,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server. It shuts down when the controller's
// context is done.
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/calculate", c.handlers.Calculate).Methods(http.MethodPost)
	api.HandleFunc("/buildings/{id}/latest", c.handlers.GetLatestRun).Methods(http.MethodGet)
	api.HandleFunc("/sun", c.handlers.GetSun).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	if c.metrics != nil {
		router.Handle("/metrics", c.metrics).Methods(http.MethodGet)
	}

	return router
}
