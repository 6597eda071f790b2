package ginsrv

import (
	"path"

	"github.com/gin-gonic/gin"
)

type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// SetupRouter builds an engine serving routes. Middlewares are registered
// last to first, so the first one listed sits closest to the handlers.
func SetupRouter(routes []Route, middlewares ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()

	for i := len(middlewares) - 1; i >= 0; i-- {
		router.Use(middlewares[i])
	}

	for _, route := range routes {
		router.Handle(route.Method, route.Path, route.Handler)
	}

	return router
}

// Mount prefixes the path of every route with prefix.
func Mount(prefix string, routes []Route) []Route {
	mounted := make([]Route, len(routes))
	for i, r := range routes {
		r.Path = path.Join("/", prefix, r.Path)
		mounted[i] = r
	}
	return mounted
}
