package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"davbackup/internal/backup"
	"davbackup/internal/run"
)

type stubPipeline struct {
	block chan struct{}
}

func (s *stubPipeline) Run(_ context.Context, root string) (backup.Report, error) {
	if s.block != nil {
		<-s.block
	}
	return backup.Report{Root: root, Tasks: 2, Failed: []string{root + "/photos"}}, nil
}

func setupRouter(t *testing.T, p run.Pipeline) (*gin.Engine, *run.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ZerologLogger(zerolog.Nop()))
	manager := run.NewManager(p, run.Options{DataDir: t.TempDir(), Root: "/srv/drive"}, zerolog.Nop())
	handler := NewAPI(manager, zerolog.Nop())
	handler.RegisterRoutes(router)
	handler.RegisterUIRoutes(router)
	return router, manager
}

func startRun(t *testing.T, router *gin.Engine) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func TestStartRunAndFetchReport(t *testing.T) {
	router, manager := setupRouter(t, &stubPipeline{})

	code, resp := startRun(t, router)
	if code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, code)
	}
	id, _ := resp["run_id"].(string)
	if id == "" || resp["status"] != string(run.StatusRunning) {
		t.Fatalf("unexpected start response %v", resp)
	}
	if !manager.WaitAll(context.Background()) {
		t.Fatalf("run did not finish")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		Status string         `json:"status"`
		Report *backup.Report `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != string(run.StatusCompleted) || got.Report == nil || len(got.Report.Failed) != 1 {
		t.Fatalf("unexpected run %s", w.Body.String())
	}
}

func TestStartRunBusy(t *testing.T) {
	p := &stubPipeline{block: make(chan struct{})}
	router, manager := setupRouter(t, p)

	if code, _ := startRun(t, router); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code, _ := startRun(t, router); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	close(p.block)
	manager.WaitAll(context.Background())
}

func TestGetRunNotFound(t *testing.T) {
	router, _ := setupRouter(t, &stubPipeline{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListRunsAndUI(t *testing.T) {
	router, manager := setupRouter(t, &stubPipeline{})
	if _, err := manager.RunNow(context.Background()); err != nil {
		t.Fatalf("run now: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var list struct {
		Runs []map[string]any `json:"runs"`
		Busy bool             `json:"busy"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Runs) != 1 || list.Busy {
		t.Fatalf("unexpected list %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/srv/drive/photos") {
		t.Fatalf("ui page should list failed paths, got %d %s", w.Code, w.Body.String())
	}
}

func TestUIStartRunRedirects(t *testing.T) {
	router, manager := setupRouter(t, &stubPipeline{})
	req := httptest.NewRequest(http.MethodPost, "/ui/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !manager.WaitAll(ctx) || len(manager.ListRuns()) != 1 {
		t.Fatalf("expected one finished run")
	}
}
