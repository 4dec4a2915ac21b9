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

// ApplicationHandler 负责处理求职记录相关的 API 请求。
type ApplicationHandler struct {
	sets *Sets
}

// NewApplicationHandler 构造 ApplicationHandler。
func NewApplicationHandler(sets *Sets) *ApplicationHandler {
	return &ApplicationHandler{sets: sets}
}

type createApplicationRequest struct {
	Title        string   `json:"title" binding:"required"`
	Company      string   `json:"company" binding:"required"`
	URL          string   `json:"url"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Salary       string   `json:"salary"`
	Location     string   `json:"location"`
	WorkType     string   `json:"workType"`
	Notes        string   `json:"notes"`
}

// ListApplications 列出分区内全部求职记录。
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, set.Applications.GetAll(c.Request.Context()))
}

// GetApplication 按 id 返回单条记录。
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	app := set.Applications.GetByID(c.Request.Context(), c.Param("id"))
	if app == nil {
		NotFound(c, "application not found")
		return
	}
	c.JSON(http.StatusOK, app)
}

// CreateApplication 新建一条记录，id 由服务端生成。
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	workType := store.WorkType(req.WorkType)
	if workType == "" {
		workType = store.WorkUnknown
	}

	app := store.JobApplication{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Company:      req.Company,
		URL:          req.URL,
		Description:  req.Description,
		Requirements: req.Requirements,
		Salary:       req.Salary,
		Location:     req.Location,
		WorkType:     workType,
		Status:       store.StatusSaved,
		Notes:        req.Notes,
	}
	if app.Requirements == nil {
		app.Requirements = []string{}
	}

	if err := set.Applications.Save(c.Request.Context(), app); err != nil {
		middleware.LoggerFromContext(c).Error("create application failed", slog.Any("error", err))
		Internal(c, "failed to save application")
		return
	}

	saved := set.Applications.GetByID(c.Request.Context(), app.ID)
	c.JSON(http.StatusCreated, saved)
}

// SaveApplication 整体替换一条记录（按 id upsert）。
func (h *ApplicationHandler) SaveApplication(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var app store.JobApplication
	if err := c.ShouldBindJSON(&app); err != nil {
		BadRequest(c, err.Error())
		return
	}
	app.ID = c.Param("id")
	if app.ID == "" {
		BadRequest(c, "application id is required")
		return
	}

	if err := set.Applications.Save(c.Request.Context(), app); err != nil {
		middleware.LoggerFromContext(c).Error("save application failed", slog.Any("error", err))
		Internal(c, "failed to save application")
		return
	}
	c.JSON(http.StatusOK, set.Applications.GetByID(c.Request.Context(), app.ID))
}

// DeleteApplication 按 id 删除记录。
func (h *ApplicationHandler) DeleteApplication(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	if err := set.Applications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.LoggerFromContext(c).Error("delete application failed", slog.Any("error", err))
		Internal(c, "failed to delete application")
		return
	}
	c.Status(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status store.ApplicationStatus `json:"status" binding:"required"`
}

// UpdateStatus 更新记录状态。存储层不校验状态流转。
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	err := set.Applications.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "application not found")
			return
		}
		middleware.LoggerFromContext(c).Error("update status failed", slog.Any("error", err))
		Internal(c, "failed to update status")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetConfig 返回分区内持久化的设置。
func (h *ApplicationHandler) GetConfig(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, set.Applications.GetConfig(c.Request.Context()))
}

// SaveConfig 合并写入设置。
func (h *ApplicationHandler) SaveConfig(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var cfg store.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := set.Applications.SaveConfig(c.Request.Context(), cfg); err != nil {
		middleware.LoggerFromContext(c).Error("save config failed", slog.Any("error", err))
		Internal(c, "failed to save config")
		return
	}
	c.Status(http.StatusNoContent)
}

type linkDocumentRequest struct {
	VersionID string `json:"versionId" binding:"required"`
	Type      string `json:"type"`
}

// LinkDocument 把文档版本挂到记录的简历/求职信槽位（两侧写入）。
func (h *ApplicationHandler) LinkDocument(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req linkDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	docType := store.DocumentType(req.Type)
	if docType == "" {
		docType = store.DocumentResume
	}

	err := set.Linker.LinkDocument(c.Request.Context(), c.Param("id"), req.VersionID, docType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("link document failed", slog.Any("error", err))
		Internal(c, "failed to link document")
		return
	}
	c.Status(http.StatusNoContent)
}

// UnlinkDocument 清空记录上的文档槽位并解除反向链接。
func (h *ApplicationHandler) UnlinkDocument(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	docType := store.DocumentType(c.Param("type"))
	if docType != store.DocumentResume && docType != store.DocumentCoverLetter {
		BadRequest(c, "document type must be resume or cover-letter")
		return
	}

	err := set.Linker.UnlinkDocument(c.Request.Context(), c.Param("id"), docType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("unlink document failed", slog.Any("error", err))
		Internal(c, "failed to unlink document")
		return
	}
	c.Status(http.StatusNoContent)
}
