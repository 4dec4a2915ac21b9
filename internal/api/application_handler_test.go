package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jobvault/internal/api/middleware"
	"jobvault/internal/backup"
	"jobvault/internal/database"
	"jobvault/internal/kv"
	"jobvault/internal/store"
)

func newTestRouter(t *testing.T, accessToken string) (*gin.Engine, *Sets, *backup.Engine, kv.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	backing := kv.NewGormStore(db)
	sets := &Sets{
		ZH: store.NewSet(ctx, backing, kv.PartitionZH, nil),
		EN: store.NewSet(ctx, backing, kv.PartitionEN, nil),
	}
	engine := backup.NewEngine(backing, sets.ZH, sets.EN, nil)

	applicationHandler := NewApplicationHandler(sets)
	cvHandler := NewCVHandler(sets)
	backupHandler := NewBackupHandler(engine, backing, nil, nil, nil, "", nil)

	router := gin.New()
	v1 := router.Group("/v1")
	auth := middleware.AccessTokenMiddleware(accessToken)

	partitionGroup := v1.Group("/partitions/:partition")
	partitionGroup.Use(auth)
	{
		partitionGroup.GET("/applications", applicationHandler.ListApplications)
		partitionGroup.POST("/applications", applicationHandler.CreateApplication)
		partitionGroup.GET("/applications/:id", applicationHandler.GetApplication)
		partitionGroup.PATCH("/applications/:id/status", applicationHandler.UpdateStatus)
		partitionGroup.DELETE("/applications/:id", applicationHandler.DeleteApplication)
		partitionGroup.POST("/cv-versions", cvHandler.CreateVersion)
		partitionGroup.GET("/cv-versions/:id", cvHandler.GetVersion)
		partitionGroup.PATCH("/cv-versions/:id", cvHandler.UpdateVersion)
	}
	v1.POST("/backups/smart", auth, backupHandler.CreateSmartBackup)
	v1.POST("/backups/import", auth, backupHandler.ImportBackup)

	return router, sets, engine, backing
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestApplicationLifecycleOverHTTP(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "")

	// 创建
	w := doJSON(t, router, http.MethodPost, "/v1/partitions/zh/applications", gin.H{
		"title":   "Backend Engineer",
		"company": "Acme",
		"url":     "https://jobs.example/1",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created store.JobApplication
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Status != store.StatusSaved {
		t.Errorf("created = %+v", created)
	}

	// 列表
	w = doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed []store.JobApplication
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d applications, want 1", len(listed))
	}

	// 状态更新
	w = doJSON(t, router, http.MethodPatch, "/v1/partitions/zh/applications/"+created.ID+"/status",
		gin.H{"status": "interviewing"}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications/"+created.ID, nil, nil)
	var fetched store.JobApplication
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched: %v", err)
	}
	if fetched.Status != store.StatusInterviewing {
		t.Errorf("status = %q", fetched.Status)
	}

	// en 分区看不到 zh 的数据
	w = doJSON(t, router, http.MethodGet, "/v1/partitions/en/applications", nil, nil)
	var enList []store.JobApplication
	if err := json.Unmarshal(w.Body.Bytes(), &enList); err != nil {
		t.Fatalf("decode en list: %v", err)
	}
	if len(enList) != 0 {
		t.Errorf("en partition sees %d zh applications", len(enList))
	}

	// 删除
	w = doJSON(t, router, http.MethodDelete, "/v1/partitions/zh/applications/"+created.ID, nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications/"+created.ID, nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestUnknownPartitionRejected(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodGet, "/v1/partitions/fr/applications", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAccessTokenGate(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "secret-token")

	w := doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token status = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications", nil,
		map[string]string{"X-Access-Token": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/partitions/zh/applications", nil,
		map[string]string{"X-Access-Token": "secret-token"})
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

func TestSmartBackupEndpointReportsSkip(t *testing.T) {
	router, sets, _, _ := newTestRouter(t, "")
	ctx := context.Background()

	app := store.JobApplication{ID: "app-1", Title: "Engineer", Company: "Acme", Status: store.StatusSaved}
	if err := sets.ZH.Applications.Save(ctx, app); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/v1/backups/smart", gin.H{"description": "auto"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first smart backup status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/v1/backups/smart", gin.H{"description": "auto"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second smart backup status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if skipped, _ := resp["skipped"].(bool); !skipped {
		t.Errorf("skipped = %v, want true", resp["skipped"])
	}
}
