package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel zapcore.Level
	}{
		{"ok", http.StatusOK, "hello", zapcore.InfoLevel},
		{"implicit ok", 0, "", zapcore.InfoLevel},
		{"not found", http.StatusNotFound, "nope", zapcore.InfoLevel},
		{"server error", http.StatusInternalServerError, "boom", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := chiMiddleware.RequestID(WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			})))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boxes", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			wantStatus := tt.status
			if wantStatus == 0 {
				wantStatus = http.StatusOK
			}
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/boxes", fields["path"])
			assert.EqualValues(t, wantStatus, fields["status"])
			assert.EqualValues(t, len(tt.body), fields["bytes"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}
