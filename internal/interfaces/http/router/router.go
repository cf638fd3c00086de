package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts domain groups under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware that runs for every API route, ahead of group middleware
func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// BasePath returns the versioned API prefix
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Route is one endpoint of a domain group. An empty Permission means any
// authenticated caller may use it.
type Route struct {
	Method     string
	Path       string
	Permission string
	Handler    gin.HandlerFunc
}

// DomainGroup collects the routes of one resource under a common prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []Route
	middleware []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, mw...)
	return dg
}

// Handle registers a route guarded by permission
func (dg *DomainGroup) Handle(method, path, permission string, h gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, Route{Method: method, Path: path, Permission: permission, Handler: h})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path, permission string, h gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, permission, h)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path, permission string, h gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, permission, h)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path, permission string, h gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, permission, h)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path, permission string, h gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, permission, h)
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		handlers := make([]gin.HandlerFunc, 0, 2)
		if route.Permission != "" {
			handlers = append(handlers, middleware.RequirePermission(route.Permission))
		}
		handlers = append(handlers, route.Handler)
		group.Handle(route.Method, route.Path, handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Routes returns a copy of the registered routes
func (dg *DomainGroup) Routes() []Route {
	out := make([]Route, len(dg.routes))
	copy(out, dg.routes)
	return out
}
