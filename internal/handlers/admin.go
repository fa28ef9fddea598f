package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"lumina/internal/utils"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	store         *store.Store
	advice        *services.AdviceService
	importer      *services.FeedImporter
	adviceTimeout time.Duration
	now           func() time.Time
}

func NewAdminHandler(st *store.Store, advice *services.AdviceService, importer *services.FeedImporter, adviceTimeout time.Duration) *AdminHandler {
	return &AdminHandler{
		store:         st,
		advice:        advice,
		importer:      importer,
		adviceTimeout: adviceTimeout,
		now:           time.Now,
	}
}

// Dashboard 后台概览
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats := services.Summarize(h.store.Articles(), h.store.Comments())
	Render(c, http.StatusOK, "admin/dashboard.html", gin.H{
		"Title":  "Dashboard",
		"Stats":  stats,
		"Titles": h.articleTitles(),
	})
}

type articleRow struct {
	models.Article
	Visible  bool
	Comments int
}

// Articles 全部文章（存储顺序），含导入表单
func (h *AdminHandler) Articles(c *gin.Context) {
	h.renderArticles(c, http.StatusOK, gin.H{
		"Imported": c.Query("imported"),
		"Skipped":  c.Query("skipped"),
	})
}

func (h *AdminHandler) renderArticles(c *gin.Context, code int, extra gin.H) {
	counts := make(map[string]int)
	for _, cm := range h.store.Comments() {
		counts[cm.ArticleID]++
	}
	now := h.now()
	articles := h.store.Articles()
	rows := make([]articleRow, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, articleRow{Article: a, Visible: a.IsVisibleAt(now), Comments: counts[a.ID]})
	}

	data := gin.H{
		"Title":         "Manage Content",
		"Rows":          rows,
		"ImportDefault": services.DefaultImportLimit,
		"ImportMax":     services.MaxImportLimit,
	}
	for k, v := range extra {
		data[k] = v
	}
	Render(c, code, "admin/articles.html", data)
}

// DeleteArticle 删除文章及其评论
func (h *AdminHandler) DeleteArticle(c *gin.Context) {
	id := c.Param("id")
	var removed int
	err := h.store.Transaction(c.Request.Context(), func(tx *store.Tx) error {
		var err error
		removed, err = tx.DeleteArticle(id)
		return err
	})

	if c.Request.Method == http.MethodDelete || wantsJSON(c) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		case err != nil:
			log.Printf("[admin] delete article %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"deleted": id, "removedComments": removed})
		}
		return
	}

	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[admin] delete article %s: %v", id, err)
		RenderError(c, http.StatusInternalServerError, "Failed to delete the article")
		return
	}
	c.Redirect(http.StatusFound, "/admin/articles")
}

type commentRow struct {
	models.Comment
	ArticleTitle string
}

// Comments 评论审核列表
func (h *AdminHandler) Comments(c *gin.Context) {
	titles := h.articleTitles()
	comments := h.store.Comments()
	rows := make([]commentRow, 0, len(comments))
	for _, cm := range comments {
		title, ok := titles[cm.ArticleID]
		if !ok {
			title = "Unknown Post"
		}
		rows = append(rows, commentRow{Comment: cm, ArticleTitle: title})
	}
	Render(c, http.StatusOK, "admin/comments.html", gin.H{
		"Title": "Comment Moderation",
		"Rows":  rows,
	})
}

// DeleteComment 删除评论，未知 id 直接返回列表
func (h *AdminHandler) DeleteComment(c *gin.Context) {
	id := c.Param("id")
	err := h.store.Transaction(c.Request.Context(), func(tx *store.Tx) error {
		return tx.DeleteComment(id)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[admin] delete comment %s: %v", id, err)
		RenderError(c, http.StatusInternalServerError, "Failed to delete the comment")
		return
	}
	c.Redirect(http.StatusFound, "/admin/comments")
}

// Advice 编辑器的 AI 建议，任何失败都返回 available=false
func (h *AdminHandler) Advice(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	content := strings.TrimSpace(c.PostForm("content"))
	if title == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"available": false, "error": "Add content first!"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.adviceTimeout)
	defer cancel()

	advice := h.advice.Insight(ctx, title, content)
	if advice == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available":      true,
		"summary":        advice.Summary,
		"tags":           advice.Tags,
		"improvementTip": advice.ImprovementTip,
	})
}

// Import 从 RSS/Atom 导入草稿
func (h *AdminHandler) Import(c *gin.Context) {
	req := services.ImportRequest{
		URL:      c.PostForm("url"),
		Category: c.PostForm("category"),
		Limit:    utils.ClampInt(utils.StringToInt(c.PostForm("limit"), services.DefaultImportLimit), 1, services.MaxImportLimit),
		FullText: utils.FormBool(c.PostForm("full_text")),
	}

	res, err := h.importer.Import(c.Request.Context(), req)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, services.ErrInvalidFeedURL) {
			code = http.StatusBadRequest
		}
		log.Printf("[import] %s: %v", req.URL, err)
		h.renderArticles(c, code, gin.H{"ImportError": err.Error(), "ImportURL": req.URL})
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/admin/articles?imported=%d&skipped=%d", len(res.Created), res.Skipped))
}

func (h *AdminHandler) articleTitles() map[string]string {
	titles := make(map[string]string)
	for _, a := range h.store.Articles() {
		titles[a.ID] = a.Title
	}
	return titles
}
