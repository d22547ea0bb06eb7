package managers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/controllers/restserver"
	"github.com/chrissnell/daylight/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
	Count() int
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// ControllerDeps are the shared services handed to every controller
type ControllerDeps struct {
	Engine  *compliance.Engine
	Store   restserver.ResultStore
	Metrics http.Handler
}

// NewControllerManager creates a controller for every enabled front end
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, c *config.ConfigData, deps ControllerDeps, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		config:      c,
		deps:        deps,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	if c.REST.Enabled {
		controller, err := cm.createController("rest")
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	config      *config.ConfigData
	deps        ControllerDeps
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("started %d controllers successfully", len(c.controllers))
	return nil
}

func (c *controllerManager) Count() int {
	return len(c.controllers)
}

// createController creates a controller of the given type
func (cm *controllerManager) createController(kind string) (Controller, error) {
	switch kind {
	case "rest", "restserver":
		return restserver.NewController(cm.ctx, cm.wg, cm.config.REST, cm.deps.Engine, cm.deps.Store, cm.deps.Metrics, cm.logger.Named("rest"))
	default:
		return nil, fmt.Errorf("unknown controller type: %s", kind)
	}
}
