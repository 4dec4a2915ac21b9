package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"jobvault/internal/store"
)

func TestUpdateVersionMissingIDReturns404(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodPatch, "/v1/partitions/zh/cv-versions/no-such-version",
		gin.H{"note": "updated"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s, want 404", w.Code, w.Body.String())
	}
}

func TestUpdateVersionRecomputesHashOnContentChange(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/v1/partitions/zh/cv-versions", gin.H{
		"title":   "后端简历",
		"content": "original content",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created store.CVVersion
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	w = doJSON(t, router, http.MethodPatch, "/v1/partitions/zh/cv-versions/"+created.ID,
		gin.H{"content": "revised content"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated store.CVVersion
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Content != "revised content" {
		t.Errorf("content = %q", updated.Content)
	}
	if updated.Hash == created.Hash || updated.Hash != store.HashContent("revised content") {
		t.Errorf("hash = %q, want recomputed digest", updated.Hash)
	}
}
