package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func TestBrotli(t *testing.T) {
	long := strings.Repeat(`{"total": 8.5}`, 200)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/long", func(c *gin.Context) { c.Data(http.StatusOK, "application/json", []byte(long)) })
	r.GET("/short", func(c *gin.Context) { c.Data(http.StatusCreated, "application/json", []byte(`{}`)) })
	r.GET("/xlsx", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte(long))
	})

	tests := []struct {
		name       string
		path       string
		accept     string
		wantStatus int
		wantBr     bool
		wantBody   string
	}{
		{"compressed", "/long", "gzip, br;q=1.0", http.StatusOK, true, long},
		{"no brotli support", "/long", "gzip", http.StatusOK, false, long},
		{"below min length", "/short", "br", http.StatusCreated, false, `{}`},
		{"already compressed format", "/xlsx", "br", http.StatusOK, false, long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept-Encoding", tt.accept)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			gotBr := w.Header().Get("Content-Encoding") == "br"
			if gotBr != tt.wantBr {
				t.Fatalf("Content-Encoding br = %v, want %v", gotBr, tt.wantBr)
			}

			body := w.Body.Bytes()
			if gotBr {
				body, _ = io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
			}
			if string(body) != tt.wantBody {
				t.Errorf("body length = %d, want %d", len(body), len(tt.wantBody))
			}
		})
	}
}
