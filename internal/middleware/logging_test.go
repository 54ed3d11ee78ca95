package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observeLogs подменяет логгер мидлвари наблюдаемым и восстанавливает его после теста.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	old := sugar
	SetLogger(zap.New(core).Sugar())
	t.Cleanup(func() { SetLogger(old) })
	return logs
}

func TestWithLogging_RecordsRequestFields(t *testing.T) {
	logs := observeLogs(t)

	h := WithLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?y=1", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/x?y=1", fields["uri"])
	assert.Equal(t, "127.0.0.1:5555", fields["remote"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 5, fields["size"])
	assert.IsType(t, time.Duration(0), fields["duration"])
}

func TestWithLogging_ImplicitStatusOK(t *testing.T) {
	logs := observeLogs(t)

	h := WithLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
		_, _ = w.Write([]byte("\n"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.EqualValues(t, 3, fields["size"])
}

func TestWithLogging_DoesNotLogBodies(t *testing.T) {
	logs := observeLogs(t)
	const (
		reqSecret  = "AssociationKeyQUJDREVGRw=="
		respSecret = "hunter2-password"
	)

	h := WithLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"Entries":[{"Password":%q}]}`, respSecret)
	}))
	body := fmt.Sprintf(`{"RequestType":"associate","Key":%q}`, reqSecret)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.NotContains(t, entry.Message, reqSecret)
	for k, v := range entry.ContextMap() {
		s := fmt.Sprint(v)
		assert.NotContains(t, s, reqSecret, "field %s", k)
		assert.NotContains(t, s, respSecret, "field %s", k)
	}
}
