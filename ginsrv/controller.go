package ginsrv

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/seb7887/gofw/loader"
	"github.com/seb7887/gofw/sietch"
)

// KeyParser converts the :id path parameter to a repository key.
type KeyParser[ID comparable] func(string) (ID, error)

func StringKey(s string) (string, error) {
	return s, nil
}

func IntKey(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &bindingError{fmt.Errorf("invalid key %q: %w", s, err)}
	}
	return n, nil
}

func UUIDKey(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &bindingError{fmt.Errorf("invalid key %q: %w", s, err)}
	}
	return id, nil
}

// bindingError marks a malformed request body or path parameter.
type bindingError struct{ err error }

func (e *bindingError) Error() string { return e.err.Error() }
func (e *bindingError) Unwrap() error { return e.err }

// Controller serves a repository of M over REST.
type Controller[M any, ID comparable] struct {
	repo   sietch.Repository[M, ID]
	loader *loader.Loader[M, ID]
	key    KeyParser[ID]
}

// NewController creates a controller. List requests are queued on a loader
// so they batch inside a LoaderScopeMiddleware scope.
func NewController[M any, ID comparable](repo sietch.Repository[M, ID], key KeyParser[ID]) (*Controller[M, ID], error) {
	l, err := loader.New[M, ID](repo)
	if err != nil {
		return nil, err
	}
	return &Controller[M, ID]{repo: repo, loader: l, key: key}, nil
}

// Routes returns the controller's routes relative to its mount point:
//
//	GET    /          list (see ParseFilter)
//	GET    /defaults  a new, unsaved record with a generated key
//	GET    /:id
//	POST   /          create or update
//	PUT    /:id       create or update under :id
//	DELETE /:id
func (ctl *Controller[M, ID]) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/", Handler: ctl.List},
		{Method: http.MethodGet, Path: "/defaults", Handler: ctl.Defaults},
		{Method: http.MethodGet, Path: "/:id", Handler: ctl.Get},
		{Method: http.MethodPost, Path: "/", Handler: ctl.Post},
		{Method: http.MethodPut, Path: "/:id", Handler: ctl.Put},
		{Method: http.MethodDelete, Path: "/:id", Handler: ctl.Delete},
	}
}

// RepositoryRoutes mounts a controller over repo under prefix.
func RepositoryRoutes[M any, ID comparable](prefix string, repo sietch.Repository[M, ID], key KeyParser[ID]) ([]Route, error) {
	ctl, err := NewController(repo, key)
	if err != nil {
		return nil, err
	}
	return Mount(prefix, ctl.Routes()), nil
}

func (ctl *Controller[M, ID]) List(c *gin.Context) {
	f, err := ParseFilter(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}
	q, err := sietch.FilterQuery[M](f)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	items, err := ctl.loader.QueueFindAll(ctx, q).Await(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (ctl *Controller[M, ID]) Get(c *gin.Context) {
	id, err := ctl.key(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	item, err := ctl.repo.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ctl *Controller[M, ID]) Defaults(c *gin.Context) {
	item, err := ctl.repo.Create(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ctl *Controller[M, ID]) Post(c *gin.Context) {
	item := new(M)
	if err := c.ShouldBindJSON(item); err != nil {
		_ = c.Error(&bindingError{err})
		return
	}
	ctl.save(c, item)
}

func (ctl *Controller[M, ID]) Put(c *gin.Context) {
	id, err := ctl.key(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	item := new(M)
	if err := c.ShouldBindJSON(item); err != nil {
		_ = c.Error(&bindingError{err})
		return
	}
	if err := sietch.SetKey(item, id); err != nil {
		_ = c.Error(err)
		return
	}
	ctl.save(c, item)
}

func (ctl *Controller[M, ID]) save(c *gin.Context, item *M) {
	created, err := ctl.repo.Save(c.Request.Context(), item)
	if err != nil {
		_ = c.Error(err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, item)
}

func (ctl *Controller[M, ID]) Delete(c *gin.Context) {
	id, err := ctl.key(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	removed, err := ctl.repo.Remove(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !removed {
		_ = c.Error(sietch.ErrItemNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
