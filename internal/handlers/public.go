package handlers

import (
	"fmt"
	"lumina/internal/middleware"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// relatedLimit 文章页底部推荐的同类文章数
const relatedLimit = 3

type PublicHandler struct {
	store        *store.Store
	listing      *services.ListingService
	pollInterval time.Duration
}

func NewPublicHandler(st *store.Store, listing *services.ListingService, pollInterval time.Duration) *PublicHandler {
	return &PublicHandler{store: st, listing: listing, pollInterval: pollInterval}
}

// Home 首页：分类标签 + 头条 + 文章网格
func (h *PublicHandler) Home(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		category = services.AllCategories
	}
	articles := h.listing.Visible(category)

	var featured *models.Article
	others := articles
	if strings.EqualFold(category, services.AllCategories) && len(articles) > 0 {
		featured = &articles[0]
		others = articles[1:]
	}

	Render(c, http.StatusOK, "home.html", gin.H{
		"Title":          "Home",
		"ActiveCategory": category,
		"Featured":       featured,
		"Articles":       others,
		"Empty":          len(articles) == 0,
		"VisibleIDs":     articleIDs(articles),
		"PollSeconds":    int(h.pollInterval.Seconds()),
	})
}

// Category 分类页，未知分类显示空列表
func (h *PublicHandler) Category(c *gin.Context) {
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	articles := h.listing.Visible(category)

	Render(c, http.StatusOK, "category.html", gin.H{
		"Title":    category,
		"Category": category,
		"Articles": articles,
	})
}

// Categories 所有分类及可见文章数
func (h *PublicHandler) Categories(c *gin.Context) {
	counts := services.CountCategories(h.listing.Visible(""))
	Render(c, http.StatusOK, "categories.html", gin.H{
		"Title":  "Categories",
		"Counts": counts,
	})
}

// commentErrors 评论表单跳转回来时的提示
var commentErrors = map[string]string{
	"empty": "Please write something before posting.",
	"long":  fmt.Sprintf("Comments are limited to %d characters.", services.MaxCommentLength),
}

// Article 文章详情页，不可见的文章跳回首页；管理员可以预览，但不能互动
func (h *PublicHandler) Article(c *gin.Context) {
	id := c.Param("id")
	article, err := h.store.Article(id)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	preview := !article.IsVisibleAt(time.Now())
	if preview && !middleware.IsAdmin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	visitor := middleware.VisitorID(c)
	engagement, err := h.store.Engagement(c.Request.Context(), visitor, id)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Failed to load your reactions")
		return
	}
	held, err := h.store.CommentReactions(c.Request.Context(), visitor)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Failed to load your reactions")
		return
	}

	var related []models.Article
	for _, a := range h.listing.Visible(article.Category) {
		if a.ID != article.ID && len(related) < relatedLimit {
			related = append(related, a)
		}
	}

	Render(c, http.StatusOK, "article.html", gin.H{
		"Title":            article.Title,
		"Article":          article,
		"Engagement":       engagement,
		"Comments":         h.store.CommentsForArticle(id),
		"CommentReactions": held,
		"Palette":          models.ReactionPalette,
		"Related":          related,
		"CommentError":     commentErrors[c.Query("error")],
		"Preview":          preview,
	})
}

func (h *PublicHandler) About(c *gin.Context) {
	Render(c, http.StatusOK, "about.html", gin.H{"Title": "About"})
}

type articleSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	CoverImage  string    `json:"coverImage"`
	PublishedAt time.Time `json:"publishedAt"`
	Likes       int       `json:"likes"`
	Rating      float64   `json:"rating"`
}

// APIArticles 首页轮询接口，返回当前可见文章
func (h *PublicHandler) APIArticles(c *gin.Context) {
	articles := h.listing.Visible(c.Query("category"))
	out := make([]articleSummary, 0, len(articles))
	for _, a := range articles {
		out = append(out, articleSummary{
			ID:          a.ID,
			Title:       a.Title,
			Excerpt:     a.Excerpt,
			Author:      a.Author,
			Category:    a.Category,
			CoverImage:  a.CoverImage,
			PublishedAt: a.EffectiveTime(),
			Likes:       a.Likes,
			Rating:      a.Rating,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"ids":         articleIDs(articles),
		"articles":    out,
		"refreshedAt": h.listing.RefreshedAt(),
	})
}

func articleIDs(articles []models.Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	return ids
}
