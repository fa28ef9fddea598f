package handlers

import (
	"errors"
	"log"
	"lumina/internal/middleware"
	"lumina/internal/models"
	"lumina/internal/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type EngagementHandler struct {
	svc *services.EngagementService
}

func NewEngagementHandler(svc *services.EngagementService) *EngagementHandler {
	return &EngagementHandler{svc: svc}
}

func isValidationError(err error) bool {
	return errors.Is(err, services.ErrInvalidReaction) ||
		errors.Is(err, services.ErrInvalidRating) ||
		errors.Is(err, services.ErrInvalidEmoji) ||
		errors.Is(err, services.ErrEmptyComment) ||
		errors.Is(err, services.ErrCommentTooLong)
}

// fail 统一处理互动接口的错误：JSON 请求返回错误体，表单请求跳回页面
func fail(c *gin.Context, err error, back string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("[engagement] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if wantsJSON(c) {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	switch code {
	case http.StatusNotFound:
		c.Redirect(http.StatusFound, "/")
	case http.StatusBadRequest:
		c.Redirect(http.StatusFound, back)
	default:
		RenderError(c, code, "Something went wrong, please try again")
	}
}

func articleState(a models.Article, e models.UserEngagement) gin.H {
	return gin.H{
		"id":          a.ID,
		"likes":       a.Likes,
		"dislikes":    a.Dislikes,
		"rating":      a.Rating,
		"ratingCount": a.RatingCount,
		"reaction":    e.Reaction,
		"userRating":  e.Rating,
	}
}

func (h *EngagementHandler) Like(c *gin.Context) {
	h.react(c, models.ReactionLike)
}

func (h *EngagementHandler) Dislike(c *gin.Context) {
	h.react(c, models.ReactionDislike)
}

func (h *EngagementHandler) react(c *gin.Context, reaction models.Reaction) {
	id := c.Param("id")
	back := "/article/" + id + "#engagement"

	article, engagement, err := h.svc.React(c.Request.Context(), middleware.VisitorID(c), id, reaction)
	if err != nil {
		fail(c, err, back)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, articleState(article, engagement))
		return
	}
	c.Redirect(http.StatusFound, back)
}

// Rate 星级评分，表单字段 stars
func (h *EngagementHandler) Rate(c *gin.Context) {
	id := c.Param("id")
	back := "/article/" + id + "#engagement"

	stars, err := strconv.Atoi(c.PostForm("stars"))
	if err != nil {
		fail(c, services.ErrInvalidRating, back)
		return
	}
	article, engagement, err := h.svc.Rate(c.Request.Context(), middleware.VisitorID(c), id, stars)
	if err != nil {
		fail(c, err, back)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, articleState(article, engagement))
		return
	}
	c.Redirect(http.StatusFound, back)
}

// Comment 发表评论
func (h *EngagementHandler) Comment(c *gin.Context) {
	id := c.Param("id")
	back := "/article/" + id + "#comments"

	comment, err := h.svc.AddComment(c.Request.Context(), id, c.PostForm("text"))
	if err != nil {
		if code := commentErrorCode(err); code != "" && !wantsJSON(c) {
			c.Redirect(http.StatusFound, "/article/"+id+"?error="+code+"#comments")
			return
		}
		fail(c, err, back)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, comment)
		return
	}
	c.Redirect(http.StatusFound, back)
}

// commentErrorCode 评论校验错误在跳转地址里的代码，由文章页换成提示文字
func commentErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyComment):
		return "empty"
	case errors.Is(err, services.ErrCommentTooLong):
		return "long"
	}
	return ""
}

// ReactToComment 切换评论表情，表单字段 emoji
func (h *EngagementHandler) ReactToComment(c *gin.Context) {
	id := c.Param("id")

	comment, mine, err := h.svc.ReactToComment(c.Request.Context(), middleware.VisitorID(c), id, c.PostForm("emoji"))
	if err != nil {
		fail(c, err, "/")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"id":        comment.ID,
			"reactions": comment.Reactions,
			"selected":  mine,
		})
		return
	}
	c.Redirect(http.StatusFound, "/article/"+comment.ArticleID+"#comment-"+comment.ID)
}
