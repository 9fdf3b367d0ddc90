package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parttrack/pkg/logging"
)

type logEntry struct {
	level  string
	msg    string
	fields []interface{}
}

// captureLogger records calls so tests can assert on level and fields.
type captureLogger struct {
	entries []logEntry
}

func (l *captureLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.entries = append(l.entries, logEntry{level: "info", msg: msg, fields: keysAndValues})
}

func (l *captureLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.entries = append(l.entries, logEntry{level: "warn", msg: msg, fields: keysAndValues})
}

func (l *captureLogger) Errorw(msg string, keysAndValues ...interface{}) {
	l.entries = append(l.entries, logEntry{level: "error", msg: msg, fields: keysAndValues})
}

func fieldValue(fields []interface{}, key string) interface{} {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == key {
			return fields[i+1]
		}
	}
	return nil
}

func TestRequestIDGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, logging.GetRequestID(c.Request.Context()))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	assert.Equal(t, id, rec.Body.String(), "handler context should carry the same id as the response header")
}

func TestRequestIDEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, logging.GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", rec.Body.String())
}

func TestLoggerMiddlewareLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success logs info", status: http.StatusOK, wantLevel: "info"},
		{name: "client error logs warn", status: http.StatusNotFound, wantLevel: "warn"},
		{name: "server error logs error", status: http.StatusInternalServerError, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			log := &captureLogger{}
			router := gin.New()
			router.Use(RequestIDMiddleware(), LoggerMiddleware(log))
			router.GET("/probe", func(c *gin.Context) {
				c.Status(tt.status)
			})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe?q=1", nil))

			require.Len(t, log.entries, 1)
			entry := log.entries[0]
			assert.Equal(t, tt.wantLevel, entry.level)
			assert.Equal(t, "HTTP request", entry.msg)
			assert.Equal(t, tt.status, fieldValue(entry.fields, "status"))
			assert.Equal(t, "/probe?q=1", fieldValue(entry.fields, "path"))
			assert.NotEmpty(t, fieldValue(entry.fields, "request_id"))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := &captureLogger{}
	router := gin.New()
	router.Use(RecoveryMiddleware(log), RequestIDMiddleware())
	router.GET("/probe", func(c *gin.Context) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")

	require.Len(t, log.entries, 1)
	assert.Equal(t, "error", log.entries[0].level)
	assert.Equal(t, "boom", fieldValue(log.entries[0].fields, "panic"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/probe", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/probe", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "If-Match")
	})

	t.Run("normal request passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "ETag")
	})
}
