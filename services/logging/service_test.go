package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewService(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		require.NotNil(t, service)
		assert.NotNil(t, service.Logger())
	})

	t.Run("console format", func(t *testing.T) {
		service, err := NewService(Config{Level: Debug, Format: "console", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("invalid output path", func(t *testing.T) {
		_, err := NewService(Config{Level: Info, Format: "json", OutputPath: "/nonexistent/dir/medgate.log"})

		require.Error(t, err)
	})
}

func TestService_NilSafety(t *testing.T) {
	var service *Service

	service.Debug("debug")
	service.Info("info")
	service.Warn("warn")
	service.Error("error")
	assert.NoError(t, service.Sync())
	assert.Nil(t, service.Logger())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel(Debug))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(Info))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel(Warn))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(LogLevel("bogus")))
}

func TestRequestLogger(t *testing.T) {
	service, err := NewService(Config{Level: Error, Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	e := echo.New()
	e.Use(RequestLogger(service))
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
