package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func doImport(t *testing.T, router *gin.Engine, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "backup.json")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/backups/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportEndpointAcceptsLegacyPayload(t *testing.T) {
	router, _, engine, _ := newTestRouter(t, "")

	payload, err := json.Marshal(gin.H{
		"applications": []gin.H{{"id": "app-1", "title": "Engineer", "company": "Acme", "status": "saved"}},
		"cvVersions":   []gin.H{},
		"sections":     []gin.H{},
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	w := doImport(t, router, payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["version"] != "1.0-legacy" {
		t.Errorf("version = %v, want 1.0-legacy", resp["version"])
	}

	backups := engine.GetAllBackups(context.Background())
	if len(backups) != 1 {
		t.Fatalf("stored %d backups, want 1", len(backups))
	}
	if len(backups[0].ZH.Applications) != 1 {
		t.Errorf("zh applications = %d, want 1", len(backups[0].ZH.Applications))
	}
}

func TestImportEndpointRejectsUnknownShape(t *testing.T) {
	router, _, engine, _ := newTestRouter(t, "")

	w := doImport(t, router, []byte(`{"random": "junk"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if got := engine.GetAllBackups(context.Background()); len(got) != 0 {
		t.Errorf("rejected import stored %d backups", len(got))
	}
}
