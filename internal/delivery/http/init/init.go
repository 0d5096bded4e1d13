package http_init

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

type Controller interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// ControllerPool gathers route owners and runs them behind one engine.
// Registration is deferred until Register so controllers can be added in
// any order during wiring.
type ControllerPool struct {
	pool   []Controller
	rg     *gin.RouterGroup
	engine *gin.Engine
	server *http.Server
}

func NewControllerPool() *ControllerPool {
	engine := gin.Default()
	rg := engine.Group(apiPrefix)
	return &ControllerPool{
		pool:   make([]Controller, 0, 10),
		rg:     rg,
		engine: engine,
	}
}

func (pool *ControllerPool) Add(c Controller) {
	pool.pool = append(pool.pool, c)
}

func (pool *ControllerPool) Register() {
	for _, c := range pool.pool {
		c.RegisterRoutes(pool.rg)
	}
}

// RunAll blocks until the server stops. Returns nil on a clean shutdown.
func (pool *ControllerPool) RunAll(port string) error {
	pool.server = &http.Server{
		Addr:    ":" + port,
		Handler: pool.engine,
	}
	err := pool.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests. Open websockets are not waited on;
// their pumps exit when the process does.
func (pool *ControllerPool) Shutdown(ctx context.Context) error {
	if pool.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return pool.server.Shutdown(ctx)
}
