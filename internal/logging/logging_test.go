package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestRequestIDIsGeneratedOrPropagated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = GetGinRequestID(c)
		if FromContext(c.Request.Context()).Data["request_id"] != seen {
			t.Errorf("expected request id on context logger")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	if seen != "req-123" || w.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("expected propagated id, got %q / %q", seen, w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if seen == "" || seen == "req-123" || w.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id, got %q", seen)
	}
}

func TestSetupWritesToRotatingFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})
	path := filepath.Join(t.TempDir(), "logs", "storefront.log")
	closer, err := Setup(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Debug("hello from test")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
}
