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

// SectionHandler 处理简历片段与模板相关请求。
type SectionHandler struct {
	sets *Sets
}

func NewSectionHandler(sets *Sets) *SectionHandler {
	return &SectionHandler{sets: sets}
}

// ListSections 列出分区内全部片段，?type= 可按类型过滤，
// ?templates=true 只返回模板。
func (h *SectionHandler) ListSections(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if c.Query("templates") == "true" {
		c.JSON(http.StatusOK, set.Sections.GetTemplates(ctx))
		return
	}
	if t := c.Query("type"); t != "" {
		c.JSON(http.StatusOK, set.Sections.GetSectionsByType(ctx, store.SectionType(t)))
		return
	}
	c.JSON(http.StatusOK, set.Sections.GetAll(ctx))
}

// GetSection 按 id 返回片段。
func (h *SectionHandler) GetSection(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	section := set.Sections.GetByID(c.Request.Context(), c.Param("id"))
	if section == nil {
		NotFound(c, "section not found")
		return
	}
	c.JSON(http.StatusOK, section)
}

type createSectionRequest struct {
	Type         store.SectionType `json:"type" binding:"required"`
	Title        string            `json:"title" binding:"required"`
	Content      string            `json:"content"`
	LatexContent string            `json:"latexContent"`
	Tags         []string          `json:"tags"`
}

// CreateSection 新建普通片段。模板只能通过默认种子产生。
func (h *SectionHandler) CreateSection(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req createSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	section := store.ResumeSection{
		ID:            uuid.NewString(),
		Type:          req.Type,
		Title:         req.Title,
		Content:       req.Content,
		LatexContent:  req.LatexContent,
		Tags:          req.Tags,
		VersionNumber: set.Sections.GetNextVersionNumber(c.Request.Context()),
	}
	if section.Tags == nil {
		section.Tags = []string{}
	}

	if err := set.Sections.Save(c.Request.Context(), section); err != nil {
		middleware.LoggerFromContext(c).Error("create section failed", slog.Any("error", err))
		Internal(c, "failed to save section")
		return
	}
	c.JSON(http.StatusCreated, set.Sections.GetByID(c.Request.Context(), section.ID))
}

// SaveSection 整体替换片段（按 id upsert）。模板不可覆盖。
func (h *SectionHandler) SaveSection(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var section store.ResumeSection
	if err := c.ShouldBindJSON(&section); err != nil {
		BadRequest(c, err.Error())
		return
	}
	section.ID = c.Param("id")

	existing := set.Sections.GetByID(c.Request.Context(), section.ID)
	if existing != nil && existing.IsTemplate {
		Conflict(c, "templates are read-only, clone them instead")
		return
	}
	section.IsTemplate = false

	if err := set.Sections.Save(c.Request.Context(), section); err != nil {
		middleware.LoggerFromContext(c).Error("save section failed", slog.Any("error", err))
		Internal(c, "failed to save section")
		return
	}
	c.JSON(http.StatusOK, set.Sections.GetByID(c.Request.Context(), section.ID))
}

// DeleteSection 删除片段。模板不可删除。
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	existing := set.Sections.GetByID(c.Request.Context(), c.Param("id"))
	if existing != nil && existing.IsTemplate {
		Conflict(c, "templates cannot be deleted")
		return
	}

	if err := set.Sections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.LoggerFromContext(c).Error("delete section failed", slog.Any("error", err))
		Internal(c, "failed to delete section")
		return
	}
	c.Status(http.StatusNoContent)
}

type cloneSectionRequest struct {
	Title string `json:"title"`
}

// CloneTemplate 从模板克隆出一个可编辑的新片段。
func (h *SectionHandler) CloneTemplate(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	// 请求体可选，为空时沿用 "<模板标题> (Copy)" 的默认命名
	var req cloneSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = cloneSectionRequest{}
	}

	section, err := set.Sections.CreateSectionFromTemplate(c.Request.Context(), c.Param("id"),
		store.ResumeSection{Title: req.Title})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "template not found")
			return
		}
		middleware.LoggerFromContext(c).Error("clone template failed", slog.Any("error", err))
		Internal(c, "failed to clone template")
		return
	}
	c.JSON(http.StatusCreated, section)
}
