package handlers

import (
	"errors"
	"lumina/internal/middleware"
	"lumina/internal/models"
	"lumina/internal/store"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Render 注入公共模板变量（后台登录状态、当前路径、分类）
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	obj["IsAdmin"] = middleware.IsAdmin(c)
	obj["CurrentPath"] = c.Request.URL.Path
	if _, ok := obj["Categories"]; !ok {
		obj["Categories"] = models.Categories
	}

	c.HTML(code, name, obj)
}

// RenderError 渲染错误页
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

// wantsJSON 前端脚本通过 Accept 头请求 JSON，普通表单提交走重定向
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// statusFor 把业务错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case isValidationError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
