package handlers

import (
	"errors"
	"log"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"lumina/internal/utils"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DateTimeLocal 浏览器 datetime-local 输入框的格式
const DateTimeLocal = "2006-01-02T15:04"

var (
	errRequired     = errors.New("Title and content are required")
	errScheduleTime = errors.New("Scheduled posts need a valid date and time")
	errStatus       = errors.New("Unknown status")
)

type EditorHandler struct {
	store         *store.Store
	adviceEnabled bool
	maxImageBytes int64
	location      *time.Location
	now           func() time.Time
}

func NewEditorHandler(st *store.Store, adviceEnabled bool, maxImageBytes int64, loc *time.Location) *EditorHandler {
	if loc == nil {
		loc = time.Local
	}
	return &EditorHandler{
		store:         st,
		adviceEnabled: adviceEnabled,
		maxImageBytes: maxImageBytes,
		location:      loc,
		now:           time.Now,
	}
}

// editorForm 编辑器表单的原始值，校验失败时原样回填
type editorForm struct {
	ID          string
	Title       string
	Excerpt     string
	Content     string
	Author      string
	Category    string
	CoverImage  string
	Status      models.ArticleStatus
	ScheduledAt string
}

func formFromArticle(a models.Article, loc *time.Location) editorForm {
	f := editorForm{
		ID:         a.ID,
		Title:      a.Title,
		Excerpt:    a.Excerpt,
		Content:    a.Content,
		Author:     a.Author,
		Category:   a.Category,
		CoverImage: a.CoverImage,
		Status:     a.Status,
	}
	if a.ScheduledAt != nil {
		f.ScheduledAt = a.ScheduledAt.In(loc).Format(DateTimeLocal)
	}
	return f
}

func (h *EditorHandler) render(c *gin.Context, code int, form editorForm, errMsg string) {
	title := "New Article"
	if form.ID != "" {
		title = "Edit Article"
	}
	Render(c, code, "admin/editor.html", gin.H{
		"Title":         title,
		"Form":          form,
		"Error":         errMsg,
		"AdviceEnabled": h.adviceEnabled,
	})
}

// New 新建文章
func (h *EditorHandler) New(c *gin.Context) {
	h.render(c, http.StatusOK, editorForm{
		Author:     models.DefaultAuthor,
		Category:   models.Categories[0],
		CoverImage: models.DefaultCoverImage,
		Status:     models.StatusDraft,
	}, "")
}

// Edit 编辑已有文章，找不到时回到文章列表
func (h *EditorHandler) Edit(c *gin.Context) {
	article, err := h.store.Article(c.Param("id"))
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/articles")
		return
	}
	h.render(c, http.StatusOK, formFromArticle(article, h.location), "")
}

// Save 保存新建或编辑的文章
func (h *EditorHandler) Save(c *gin.Context) {
	form := editorForm{
		ID:          c.Param("id"),
		Title:       strings.TrimSpace(c.PostForm("title")),
		Excerpt:     strings.TrimSpace(c.PostForm("excerpt")),
		Content:     strings.TrimSpace(strings.ReplaceAll(c.PostForm("content"), "\r\n", "\n")),
		Author:      strings.TrimSpace(c.PostForm("author")),
		Category:    strings.TrimSpace(c.PostForm("category")),
		CoverImage:  strings.TrimSpace(c.PostForm("coverImage")),
		Status:      models.ArticleStatus(c.DefaultPostForm("status", string(models.StatusDraft))),
		ScheduledAt: strings.TrimSpace(c.PostForm("scheduledAt")),
	}

	if form.ID != "" {
		if _, err := h.store.Article(form.ID); err != nil {
			c.Redirect(http.StatusFound, "/admin/articles")
			return
		}
	}

	if file, err := c.FormFile("coverFile"); err == nil && file.Size > 0 {
		f, err := file.Open()
		if err != nil {
			h.render(c, http.StatusBadRequest, form, "Could not read the uploaded image")
			return
		}
		dataURL, err := services.EncodeImage(f, h.maxImageBytes)
		f.Close()
		switch {
		case errors.Is(err, services.ErrImageTooLarge):
			h.render(c, http.StatusBadRequest, form, "The image is too large")
			return
		case err != nil:
			h.render(c, http.StatusBadRequest, form, "Please upload an image file")
			return
		}
		form.CoverImage = dataURL
	}

	article, err := h.build(form)
	if err != nil {
		h.render(c, http.StatusBadRequest, form, err.Error())
		return
	}

	err = h.store.Transaction(c.Request.Context(), func(tx *store.Tx) error {
		return saveArticle(tx, article, form.ID != "")
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// 编辑期间文章被删除
		c.Redirect(http.StatusFound, "/admin/articles")
		return
	case err != nil:
		log.Printf("[editor] save %s: %v", article.ID, err)
		RenderError(c, http.StatusInternalServerError, "Failed to save the article")
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

// saveArticle 在事务内写入文章；编辑时计数取自事务内的最新值，文章已被删除则返回 ErrNotFound
func saveArticle(tx *store.Tx, article models.Article, editing bool) error {
	if editing {
		current, err := tx.Article(article.ID)
		if err != nil {
			return err
		}
		article.Likes = current.Likes
		article.Dislikes = current.Dislikes
		article.Rating = current.Rating
		article.RatingCount = current.RatingCount
		article.RatingTotal = current.RatingSum()
		if article.Status != models.StatusPublished {
			article.PublishedAt = current.PublishedAt
		}
	}
	tx.PutArticle(article)
	return nil
}

// build 校验表单并合成文章，计数和发布时间由 saveArticle 在事务内补齐
func (h *EditorHandler) build(form editorForm) (models.Article, error) {
	if form.Title == "" || form.Content == "" {
		return models.Article{}, errRequired
	}
	if !form.Status.Valid() {
		return models.Article{}, errStatus
	}

	cover, err := services.NormalizeCoverImage(form.CoverImage)
	if err != nil {
		return models.Article{}, err
	}
	if cover == "" {
		cover = models.DefaultCoverImage
	}

	id := form.ID
	if id == "" {
		id = uuid.NewString()
	}
	article := models.Article{
		ID:          id,
		Title:       form.Title,
		Excerpt:     form.Excerpt,
		Content:     form.Content,
		Author:      form.Author,
		CoverImage:  cover,
		Category:    form.Category,
		Status:      form.Status,
		PublishedAt: h.now(),
	}

	if article.Excerpt == "" {
		article.Excerpt = utils.DefaultExcerpt(article.Content, models.ExcerptLength)
	}
	if article.Author == "" {
		article.Author = models.DefaultAuthor
	}
	if article.Category == "" {
		article.Category = models.Categories[0]
	}

	if form.Status == models.StatusScheduled {
		at, err := time.ParseInLocation(DateTimeLocal, form.ScheduledAt, h.location)
		if err != nil {
			return models.Article{}, errScheduleTime
		}
		article.ScheduledAt = &at
	}
	return article, nil
}
