package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"

	"jobvault/internal/api/middleware"
	"jobvault/internal/store"
)

// CVHandler 处理文档版本相关请求。
type CVHandler struct {
	sets *Sets
}

func NewCVHandler(sets *Sets) *CVHandler {
	return &CVHandler{sets: sets}
}

type createVersionRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Type    string   `json:"type"`
	Format  string   `json:"format"`
	Tags    []string `json:"tags"`
	Note    string   `json:"note"`
}

// ListVersions 列出分区内全部文档版本。
func (h *CVHandler) ListVersions(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, set.Versions.GetAll(c.Request.Context()))
}

// GetVersion 按 id 返回单个版本。
func (h *CVHandler) GetVersion(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	version := set.Versions.GetByID(c.Request.Context(), c.Param("id"))
	if version == nil {
		NotFound(c, "cv version not found")
		return
	}
	c.JSON(http.StatusOK, version)
}

// CreateVersion 新建版本。版本号与内容哈希由服务端分配。
func (h *CVHandler) CreateVersion(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	docType := store.DocumentType(req.Type)
	if docType == "" {
		docType = store.DocumentResume
	}

	version := store.CVVersion{
		ID:                 uuid.NewString(),
		Title:              req.Title,
		Content:            req.Content,
		Hash:               set.Versions.CreateHashForContent(req.Content),
		VersionNumber:      set.Versions.GetNextVersionNumber(c.Request.Context()),
		Type:               docType,
		Format:             req.Format,
		Tags:               req.Tags,
		Note:               req.Note,
		LinkedApplications: []string{},
	}
	if version.Tags == nil {
		version.Tags = []string{}
	}

	if err := set.Versions.Save(c.Request.Context(), version); err != nil {
		middleware.LoggerFromContext(c).Error("create cv version failed", slog.Any("error", err))
		Internal(c, "failed to save cv version")
		return
	}
	c.JSON(http.StatusCreated, set.Versions.GetByID(c.Request.Context(), version.ID))
}

type updateVersionRequest struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags"`
	Note    *string  `json:"note"`
}

// UpdateVersion 局部更新版本。内容变化时重新计算内容哈希。
func (h *CVHandler) UpdateVersion(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req updateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	err := set.Versions.UpdateCV(c.Request.Context(), c.Param("id"), func(v *store.CVVersion) {
		if req.Title != nil {
			v.Title = *req.Title
		}
		if req.Content != nil {
			v.Content = *req.Content
			v.Hash = set.Versions.CreateHashForContent(*req.Content)
		}
		if req.Tags != nil {
			v.Tags = req.Tags
		}
		if req.Note != nil {
			v.Note = *req.Note
		}
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "cv version not found")
			return
		}
		middleware.LoggerFromContext(c).Error("update cv version failed", slog.Any("error", err))
		Internal(c, "failed to update cv version")
		return
	}
	c.JSON(http.StatusOK, set.Versions.GetByID(c.Request.Context(), c.Param("id")))
}

// DeleteVersion 删除版本。仍挂在求职记录上的版本需要 ?confirm=true，
// 否则返回 409 提示调用方先确认。
func (h *CVHandler) DeleteVersion(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	version := set.Versions.GetByID(c.Request.Context(), c.Param("id"))
	if version == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if len(version.LinkedApplications) > 0 && c.Query("confirm") != "true" {
		Conflict(c, "version is linked to applications, pass confirm=true to delete anyway")
		return
	}

	// 只解除指向该版本的槽位，避免误伤记录上挂的其它版本。
	for _, appID := range version.LinkedApplications {
		app := set.Applications.GetByID(c.Request.Context(), appID)
		if app == nil {
			continue
		}
		if app.ResumeVersionID != version.ID && app.CoverLetterVersionID != version.ID {
			continue
		}
		docType := store.DocumentResume
		if app.CoverLetterVersionID == version.ID {
			docType = store.DocumentCoverLetter
		}
		if err := set.Linker.UnlinkDocument(c.Request.Context(), appID, docType); err != nil {
			middleware.LoggerFromContext(c).Warn("unlink before delete failed",
				slog.String("application_id", appID), slog.Any("error", err))
		}
	}

	if err := set.Versions.Delete(c.Request.Context(), version.ID); err != nil {
		middleware.LoggerFromContext(c).Error("delete cv version failed", slog.Any("error", err))
		Internal(c, "failed to delete cv version")
		return
	}
	c.Status(http.StatusNoContent)
}

// VersionsForApplication 列出关联到某条求职记录的全部版本。
func (h *CVHandler) VersionsForApplication(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, set.Versions.GetVersionsForApplication(c.Request.Context(), c.Param("id")))
}
