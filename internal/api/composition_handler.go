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

// CompositionHandler 处理片段组合与 LaTeX 生成请求。
type CompositionHandler struct {
	sets *Sets
}

func NewCompositionHandler(sets *Sets) *CompositionHandler {
	return &CompositionHandler{sets: sets}
}

type compositionRequest struct {
	Name         string   `json:"name" binding:"required"`
	SectionIDs   []string `json:"sectionIds"`
	SectionOrder []int    `json:"sectionOrder"`
}

// ListCompositions 列出分区内全部组合。
func (h *CompositionHandler) ListCompositions(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, set.Compositions.GetAll(c.Request.Context()))
}

// GetComposition 按 id 返回组合。
func (h *CompositionHandler) GetComposition(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	composition := set.Compositions.GetByID(c.Request.Context(), c.Param("id"))
	if composition == nil {
		NotFound(c, "composition not found")
		return
	}
	c.JSON(http.StatusOK, composition)
}

// CreateComposition 新建组合。SectionOrder 缺省为自然顺序。
func (h *CompositionHandler) CreateComposition(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var req compositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order := req.SectionOrder
	if order == nil {
		order = make([]int, len(req.SectionIDs))
		for i := range order {
			order[i] = i
		}
	}

	composition := store.CVComposition{
		ID:           uuid.NewString(),
		Name:         req.Name,
		SectionIDs:   req.SectionIDs,
		SectionOrder: order,
	}
	if composition.SectionIDs == nil {
		composition.SectionIDs = []string{}
	}

	if err := set.Compositions.Save(c.Request.Context(), composition); err != nil {
		middleware.LoggerFromContext(c).Error("create composition failed", slog.Any("error", err))
		Internal(c, "failed to save composition")
		return
	}
	c.JSON(http.StatusCreated, set.Compositions.GetByID(c.Request.Context(), composition.ID))
}

// SaveComposition 整体替换组合（按 id upsert）。
func (h *CompositionHandler) SaveComposition(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	var composition store.CVComposition
	if err := c.ShouldBindJSON(&composition); err != nil {
		BadRequest(c, err.Error())
		return
	}
	composition.ID = c.Param("id")

	if err := set.Compositions.Save(c.Request.Context(), composition); err != nil {
		middleware.LoggerFromContext(c).Error("save composition failed", slog.Any("error", err))
		Internal(c, "failed to save composition")
		return
	}
	c.JSON(http.StatusOK, set.Compositions.GetByID(c.Request.Context(), composition.ID))
}

// DeleteComposition 删除组合，片段本身不受影响。
func (h *CompositionHandler) DeleteComposition(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}
	if err := set.Compositions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.LoggerFromContext(c).Error("delete composition failed", slog.Any("error", err))
		Internal(c, "failed to delete composition")
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateLatex 按组合顺序拼接片段的 LaTeX 内容。
func (h *CompositionHandler) GenerateLatex(c *gin.Context) {
	set, ok := h.sets.setFromPath(c)
	if !ok {
		return
	}

	latex, err := set.Compositions.GenerateLatex(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "composition not found")
			return
		}
		middleware.LoggerFromContext(c).Error("generate latex failed", slog.Any("error", err))
		Internal(c, "failed to generate latex")
		return
	}
	c.JSON(http.StatusOK, gin.H{"latex": latex})
}
