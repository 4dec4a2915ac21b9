package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"log/slog"

	"jobvault/internal/api/middleware"
	"jobvault/internal/extract"
)

// ExtractHandler 用无头浏览器抓取职位页面的可读正文。
type ExtractHandler struct {
	extractor *extract.Extractor
}

func NewExtractHandler(extractor *extract.Extractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

type extractRequest struct {
	URL string `json:"url" binding:"required"`
}

// ExtractPage 抓取页面正文并返回归一化后的文本。
func (h *ExtractHandler) ExtractPage(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		BadRequest(c, "url must be http or https")
		return
	}

	text, err := h.extractor.PageText(req.URL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("extract page failed",
			slog.String("url", req.URL), slog.Any("error", err))
		Error(c, http.StatusBadGateway, "failed to extract page content")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": req.URL, "text": text})
}
