package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/preschool/core/user"
	"github.com/trezcool/preschool/storage/cache/memcache"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestResponseCacheStaleWrite(t *testing.T) {
	rc := &responseCache{
		cache:   memcache.New(clockwork.NewFakeClock()),
		ttl:     time.Minute,
		metrics: NewMetrics(),
		logger:  nopLogger{},
	}
	e := echo.New()
	usr := user.User{ID: "u1"}

	var body string
	var invalidateDuringList bool
	list := rc.lists(resStudents)(func(ctx echo.Context) error {
		if invalidateDuringList {
			// a write lands after the list was read but before it is cached
			require.NoError(t, rc.invalidate(ctx.Request().Context(), resStudents))
		}
		return ctx.JSONBlob(http.StatusOK, []byte(body))
	})
	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/students?class=lkg", nil), rec)
		ctx.Set(contextUserKey, usr)
		require.NoError(t, list(ctx))
		return rec
	}

	body = `["old"]`
	invalidateDuringList = true
	rec := get()
	assert.Equal(t, "MISS", rec.Header().Get(cacheHeader))
	assert.Equal(t, `["old"]`, rec.Body.String())

	body = `["new"]`
	invalidateDuringList = false
	rec = get()
	assert.Equal(t, "MISS", rec.Header().Get(cacheHeader), "the stale list is not served")
	assert.Equal(t, `["new"]`, rec.Body.String())

	rec = get()
	assert.Equal(t, "HIT", rec.Header().Get(cacheHeader))
	assert.Equal(t, `["new"]`, rec.Body.String())

	require.NoError(t, rc.invalidate(context.Background(), resStudents))
	rec = get()
	assert.Equal(t, "MISS", rec.Header().Get(cacheHeader))
}
