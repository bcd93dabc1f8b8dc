package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

func newTestLogger(debug bool) (*Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	conf := &core.Config{Env: "TEST", TestMode: true, Debug: debug}
	return NewLogger(log.New(buf, "", 0), conf), buf
}

func TestLoggerPrint(t *testing.T) {
	logger, buf := newTestLogger(false)
	usr := user.User{ID: "u1", Username: "asha_r"}

	logger.Error("saving student", errors.New("boom"), usr, map[string]interface{}{"id": "s1"})

	out := buf.String()
	assert.Contains(t, out, "ERROR: saving student")
	assert.Contains(t, out, "error: boom")
	assert.Contains(t, out, "user: asha_r (u1)")
	assert.Contains(t, out, "map[id:s1]")
}

func TestLoggerDebug(t *testing.T) {
	logger, buf := newTestLogger(false)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger, buf = newTestLogger(true)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "DEBUG: shown")
}

func TestPrepare(t *testing.T) {
	logger, _ := newTestLogger(false)
	err := errors.New("boom")
	args := logger.prepare("msg", []interface{}{user.User{ID: "u1"}, err, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
