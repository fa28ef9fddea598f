package handlers

import (
	"crypto/subtle"
	"log"
	"lumina/internal/middleware"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const loginError = "Invalid password. Access denied."

type AuthHandler struct {
	password     string
	passwordHash string
}

// NewAuthHandler 配置了 bcrypt 哈希时优先按哈希校验
func NewAuthHandler(password, passwordHash string) *AuthHandler {
	return &AuthHandler{password: password, passwordHash: passwordHash}
}

func (h *AuthHandler) check(password string) bool {
	if password == "" {
		return false
	}
	if h.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(h.password), []byte(password)) == 1
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	next := middleware.SafeNext(c.Query("next"))
	if middleware.IsAdmin(c) {
		c.Redirect(http.StatusFound, next)
		return
	}
	Render(c, http.StatusOK, "admin/login.html", gin.H{"Title": "Admin Login", "Next": next})
}

func (h *AuthHandler) Login(c *gin.Context) {
	next := middleware.SafeNext(c.PostForm("next"))
	if !h.check(c.PostForm("password")) {
		log.Printf("[auth] failed admin login from %s", c.ClientIP())
		Render(c, http.StatusUnauthorized, "admin/login.html", gin.H{
			"Title": "Admin Login",
			"Next":  next,
			"Error": loginError,
		})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.AdminSessionKey, true)
	if err := session.Save(); err != nil {
		RenderError(c, http.StatusInternalServerError, "Failed to start session")
		return
	}
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(middleware.AdminSessionKey)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/")
}
