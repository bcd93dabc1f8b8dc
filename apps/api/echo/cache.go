package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/preschool/core"
)

// cached resources
const (
	resTeachers = "teachers"
	resStudents = "students"
	resProgress = "progress"
	resPlans    = "plans"

	cacheHeader = "X-Cache"
)

var allResources = []string{resTeachers, resStudents, resProgress, resPlans}

// responseCache caches the list responses per resource, user and query.
// Each resource has a generation, changed on invalidation: responses computed
// before an invalidation are stored under the old generation and never served.
type responseCache struct {
	cache   core.Cache
	ttl     time.Duration
	metrics *Metrics
	logger  core.Logger
}

func generationKey(resource string) string {
	return "generation:" + resource
}

func cacheKey(resource, generation, userID string, ctx echo.Context) string {
	return resource + ":" + generation + ":" + userID + ":" + ctx.Request().URL.Query().Encode()
}

// generation returns the current generation of `resource`, "0" until its first invalidation.
func (rc *responseCache) generation(ctx context.Context, resource string) (string, error) {
	gen, ok, err := rc.cache.Get(ctx, generationKey(resource))
	if err != nil || !ok {
		return "0", err
	}
	return string(gen), nil
}

// invalidate moves `resources` to a new generation and drops their cached lists.
func (rc *responseCache) invalidate(ctx context.Context, resources ...string) error {
	prefixes := make([]string, len(resources))
	for i, res := range resources {
		if err := rc.cache.Set(ctx, generationKey(res), []byte(uuid.New().String()), 0); err != nil {
			return err
		}
		prefixes[i] = res + ":"
	}
	return rc.cache.DeletePrefix(ctx, prefixes...)
}

// bodyRecorder copies the response body written through it.
type bodyRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// lists serves successful GET list responses of `resource` from the cache.
func (rc *responseCache) lists(resource string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			reqCtx := ctx.Request().Context()
			gen, err := rc.generation(reqCtx, resource)
			if err != nil {
				rc.logger.Warn(fmt.Sprintf("reading cache generation of %s: %v", resource, err), err)
				return next(ctx)
			}
			key := cacheKey(resource, gen, usr.ID, ctx)

			data, ok, err := rc.cache.Get(reqCtx, key)
			if err != nil {
				rc.logger.Warn(fmt.Sprintf("reading cache %q: %v", key, err), err)
			}
			rc.metrics.cacheResult(resource, ok)
			if ok {
				ctx.Response().Header().Set(cacheHeader, "HIT")
				return ctx.JSONBlob(http.StatusOK, data)
			}
			ctx.Response().Header().Set(cacheHeader, "MISS")

			rec := &bodyRecorder{ResponseWriter: ctx.Response().Writer}
			ctx.Response().Writer = rec
			if err = next(ctx); err != nil {
				return err
			}
			if ctx.Response().Status == http.StatusOK {
				if err = rc.cache.Set(reqCtx, key, rec.body.Bytes(), rc.ttl); err != nil {
					rc.logger.Warn(fmt.Sprintf("writing cache %q: %v", key, err), err)
				}
			}
			return nil
		}
	}
}

// invalidates drops the cached lists of `resources` once the request succeeded.
func (rc *responseCache) invalidates(resources ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := next(ctx); err != nil {
				return err
			}
			if ctx.Response().Status < http.StatusBadRequest {
				if err := rc.invalidate(ctx.Request().Context(), resources...); err != nil {
					rc.logger.Error(fmt.Sprintf("invalidating cache %v: %v", resources, err), err)
				}
			}
			return nil
		}
	}
}
