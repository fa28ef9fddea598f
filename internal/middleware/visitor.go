package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	VisitorKey    = "visitor_id"
	VisitorCookie = "lumina_visitor"
	visitorMaxAge = 365 * 24 * 60 * 60
)

// Visitor 为每个浏览器分配匿名标识，互动记录按此标识保存
func Visitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(VisitorCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, id, visitorMaxAge, "/", "", false, true)
		}
		c.Set(VisitorKey, id)
		c.Next()
	}
}

// VisitorID 返回当前请求的访客标识
func VisitorID(c *gin.Context) string {
	return c.GetString(VisitorKey)
}
