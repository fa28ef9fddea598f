package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"lumina/internal/middleware"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// 盗链提醒 SVG 图片
const hotlinkSVG = `<svg width="200" height="200" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%" height="100%" fill="#f8fafc"/>
  <text x="50%" y="50%" font-family="Arial" font-size="14" fill="#64748b" text-anchor="middle">
    Lumina Press
  </text>
</svg>`

// ImageHandler 输出上传的封面图
// 上传的封面以 data URL 存在文章里，列表页改用 /cover/:id 引用，避免把整张图内联进 HTML
type ImageHandler struct {
	store *store.Store
	now   func() time.Time
}

func NewImageHandler(st *store.Store) *ImageHandler {
	return &ImageHandler{store: st, now: time.Now}
}

// Cover 返回文章封面 (GET /cover/:id)
// 外链封面直接跳转，上传的封面解码后输出，按 ETag 协商缓存
func (h *ImageHandler) Cover(c *gin.Context) {
	article, err := h.store.Article(c.Param("id"))
	if err != nil || !(article.IsVisibleAt(h.now()) || middleware.IsAdmin(c)) {
		c.Status(http.StatusNotFound)
		return
	}

	// 防盗链检测：使用 Sec-Fetch-* 头部
	if !isAllowedRequest(c) {
		c.Header("Content-Type", "image/svg+xml")
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.String(http.StatusOK, hotlinkSVG)
		return
	}

	if !strings.HasPrefix(article.CoverImage, "data:") {
		target, err := services.NormalizeCoverImage(article.CoverImage)
		if err != nil || target == "" {
			target = models.DefaultCoverImage
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	data, mime, err := services.DecodeImage(article.CoverImage)
	if err != nil {
		c.Redirect(http.StatusFound, models.DefaultCoverImage)
		return
	}

	sum := sha256.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, no-cache")
	c.Header("Vary", "Sec-Fetch-Site, Sec-Fetch-Mode")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	// 上传的 SVG 可能带脚本，禁止在本站上下文执行
	c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, mime, data)
}

// isAllowedRequest 使用 Sec-Fetch-* 头部检测是否为合法请求
func isAllowedRequest(c *gin.Context) bool {
	switch c.GetHeader("Sec-Fetch-Site") {
	// 旧浏览器、同源、同站、地址栏直接访问
	case "", "same-origin", "same-site", "none":
		return true
	}
	// 在新标签页打开图片
	return c.GetHeader("Sec-Fetch-Mode") == "navigate"
}
