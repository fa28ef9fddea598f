package router

import (
	"lumina/internal/handlers"
	"lumina/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Public     *handlers.PublicHandler
	Engagement *handlers.EngagementHandler
	Auth       *handlers.AuthHandler
	Admin      *handlers.AdminHandler
	Editor     *handlers.EditorHandler
	SEO        *handlers.SEOHandler
	Image      *handlers.ImageHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.Use(middleware.LoadAdmin(), middleware.Visitor())

	// 公共路由 (Public Routes)
	r.GET("/", h.Public.Home)                       // 首页 - 头条与文章网格
	r.GET("/category/:category", h.Public.Category) // 分类文章列表
	r.GET("/categories", h.Public.Categories)       // 所有分类
	r.GET("/article/:id", h.Public.Article)         // 文章详情页
	r.GET("/about", h.Public.About)                 // 关于页面
	r.GET("/api/articles", h.Public.APIArticles)    // 首页轮询的可见文章列表
	r.GET("/cover/:id", h.Image.Cover)              // 上传的封面图

	// 互动路由 (Engagement Routes)，按访客 cookie 记录
	r.POST("/article/:id/like", h.Engagement.Like)            // 点赞/取消
	r.POST("/article/:id/dislike", h.Engagement.Dislike)      // 点踩/取消
	r.POST("/article/:id/rate", h.Engagement.Rate)            // 星级评分
	r.POST("/article/:id/comments", h.Engagement.Comment)     // 发表评论
	r.POST("/comment/:id/react", h.Engagement.ReactToComment) // 评论表情

	// SEO
	r.GET("/feed.xml", h.SEO.RSSFeed)       // RSS 订阅
	r.GET("/sitemap.xml", h.SEO.SitemapXML) // 站点地图
	r.GET("/robots.txt", h.SEO.RobotsTxt)   // 爬虫规则

	// 登录 (Admin Login)
	r.GET("/admin/login", h.Auth.ShowLogin) // 后台登录页面
	r.POST("/admin/login", h.Auth.Login)    // 提交登录
	r.GET("/admin/logout", h.Auth.Logout)   // 退出登录
	r.POST("/admin/logout", h.Auth.Logout)  // 退出登录（表单）

	// 后台路由 (Admin Routes)
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("", h.Admin.Dashboard)                          // 仪表盘概览
		admin.GET("/articles", h.Admin.Articles)                  // 文章管理
		admin.POST("/articles/:id/delete", h.Admin.DeleteArticle) // 删除文章（表单）
		admin.DELETE("/articles/:id", h.Admin.DeleteArticle)      // 删除文章
		admin.GET("/new", h.Editor.New)                           // 新建文章页面
		admin.POST("/new", h.Editor.Save)                         // 提交新文章
		admin.GET("/edit/:id", h.Editor.Edit)                     // 编辑文章页面
		admin.POST("/edit/:id", h.Editor.Save)                    // 提交文章更新
		admin.GET("/comments", h.Admin.Comments)                  // 评论审核
		admin.POST("/comments/:id/delete", h.Admin.DeleteComment) // 删除评论
		admin.POST("/advice", h.Admin.Advice)                     // AI 写作建议
		admin.POST("/import", h.Admin.Import)                     // 从 RSS 导入草稿
	}
}
