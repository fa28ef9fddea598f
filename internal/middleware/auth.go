package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// AdminKey 上下文中标记当前会话已通过后台验证
	AdminKey = "is_admin"
	// AdminSessionKey 会话里保存的登录标记
	AdminSessionKey = "admin_auth"
)

// LoadAdmin 从会话中读取登录状态并写入上下文
func LoadAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if ok, _ := session.Get(AdminSessionKey).(bool); ok {
			c.Set(AdminKey, true)
		}
		c.Next()
	}
}

// IsAdmin 判断当前请求是否已登录后台
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(AdminKey)
}

// AdminRequired 未登录时跳转到登录页，并带上原地址
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}
		if strings.Contains(c.GetHeader("Accept"), "application/json") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Redirect(http.StatusFound, "/admin/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// SafeNext 只接受站内 /admin 路径作为登录后的跳转地址
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/admin"
	}
	if strings.HasPrefix(next, "/admin/login") || strings.HasPrefix(next, "/admin/logout") {
		return "/admin"
	}
	return next
}
