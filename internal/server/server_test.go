package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/info"
	"github.com/younghedong/svcboot/internal/store"
)

func newTestRepo(t *testing.T) store.SnapshotRepository {
	t.Helper()

	db, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	return store.NewSnapshotRepository(db, zap.NewNop())
}

func newTestServer(t *testing.T, repo store.SnapshotRepository) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	provider := info.NewProvider("svcboot-test", "0.0.1", "inst-1")
	return New(nil, provider, repo, zap.NewNop())
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNew_Defaults(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, ":9080", srv.config.ListenAddr)
	assert.Equal(t, 15*time.Second, srv.config.ReadTimeout)
	assert.NotNil(t, srv.Handler())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "svcboot-test", body["service"])
	assert.Equal(t, "0.0.1", body["version"])
	assert.NotEmpty(t, body["time"])
}

func TestServer_Info(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/info")
	assert.Equal(t, http.StatusOK, w.Code)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	for _, key := range []string{"service", "process", "runtime", "host", "build"} {
		assert.Contains(t, doc, key)
	}

	var service map[string]any
	require.NoError(t, json.Unmarshal(doc["service"], &service))
	assert.Equal(t, "svcboot-test", service["name"])
	assert.Equal(t, "inst-1", service["instance_id"])
	assert.Equal(t, "0.0.1", service["service_version"])
}

func TestServer_InfoProcess(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/info/process")
	assert.Equal(t, http.StatusOK, w.Code)

	var snap info.ProcessSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int32(os.Getpid()), snap.PID)
	assert.GreaterOrEqual(t, snap.CPUs, 1)
	assert.Positive(t, snap.Memory.Heap.Used)
	assert.GreaterOrEqual(t, snap.Memory.Heap.Committed, snap.Memory.Heap.Used)
}

func TestServer_Snapshots(t *testing.T) {
	repo := newTestRepo(t)
	srv := newTestServer(t, repo)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		err := repo.Save(ctx, &store.Snapshot{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			PID:       int32(100 + i),
			CPUs:      4,
		})
		require.NoError(t, err)
	}

	w := doRequest(t, srv, "/snapshots")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count     int              `json:"count"`
		Snapshots []store.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	require.Len(t, body.Snapshots, 3)
	// 按采集时间倒序
	assert.Equal(t, int32(102), body.Snapshots[0].PID)
}

func TestServer_Snapshots_Limit(t *testing.T) {
	repo := newTestRepo(t)
	srv := newTestServer(t, repo)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := repo.Save(ctx, &store.Snapshot{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			PID:       int32(200 + i),
		})
		require.NoError(t, err)
	}

	w := doRequest(t, srv, "/snapshots?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count     int              `json:"count"`
		Snapshots []store.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int32(204), body.Snapshots[0].PID)
	assert.Equal(t, int32(203), body.Snapshots[1].PID)
}

func TestServer_Snapshots_BadLimit(t *testing.T) {
	repo := newTestRepo(t)
	srv := newTestServer(t, repo)

	for _, limit := range []string{"abc", "-1", "0", "1.5"} {
		w := doRequest(t, srv, fmt.Sprintf("/snapshots?limit=%s", limit))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestServer_Snapshots_Empty(t *testing.T) {
	repo := newTestRepo(t)
	srv := newTestServer(t, repo)

	w := doRequest(t, srv, "/snapshots")
	assert.Equal(t, http.StatusOK, w.Code)

	// 空结果序列化为空数组而不是 null
	assert.Contains(t, w.Body.String(), `"snapshots":[]`)
}

func TestServer_Snapshots_StoreDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/snapshots")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	// 默认 Registry 必然带有 Go 运行时指标
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	w := doRequest(t, srv, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
