package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"lumina/internal/models"
	"lumina/internal/utils"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/multitemplate"
)

//go:embed templates static
var files embed.FS

// 公共页面使用 base.html，后台页面使用 admin.html
var (
	publicViews = []string{
		"home.html",
		"category.html",
		"categories.html",
		"article.html",
		"about.html",
		"error.html",
		"admin/login.html",
	}
	adminViews = []string{
		"admin/dashboard.html",
		"admin/articles.html",
		"admin/editor.html",
		"admin/comments.html",
	}
)

// Static 返回内嵌的静态资源
func Static() http.FileSystem {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// LoadTemplates 每个页面单独组装：布局 + 组件 + 页面
func LoadTemplates(siteName string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()
	funcs := FuncMap(siteName)

	add := func(layout string, views []string) error {
		for _, view := range views {
			tmpl, err := template.New(layout).Funcs(funcs).ParseFS(files,
				"templates/layouts/"+layout,
				"templates/components/*.html",
				"templates/views/"+view,
			)
			if err != nil {
				return fmt.Errorf("parse %s: %w", view, err)
			}
			r.Add(view, tmpl)
		}
		return nil
	}

	if err := add("base.html", publicViews); err != nil {
		return nil, err
	}
	if err := add("admin.html", adminViews); err != nil {
		return nil, err
	}
	return r, nil
}

// FuncMap 模板函数
func FuncMap(siteName string) template.FuncMap {
	return template.FuncMap{
		"siteName": func() string { return siteName },
		"year":     func() int { return time.Now().Year() },
		"dict": func(values ...any) (map[string]any, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add":         func(a, b int) int { return a + b },
		"lower":       strings.ToLower,
		"timeAgo":     TimeAgo,
		"formatDate":  func(t time.Time) string { return t.Format("Jan 2, 2006") },
		"markdown":    utils.RenderArticle,
		"safeURL":     SafeURL,
		"coverURL":    CoverURL,
		"initials":    utils.Initials,
		"avatarColor": utils.AvatarColor,
		"stars":       func() []int { return []int{1, 2, 3, 4, 5} },
		"starClass":   StarClass,
		"statusLabel": func(s models.ArticleStatus) string {
			if s == "" {
				return string(models.StatusDraft)
			}
			return string(s)
		},
	}
}

// TimeAgo 英文相对时间
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	if d < 0 {
		return "in the future"
	}
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 2592000:
		return plural(seconds/86400, "day")
	case seconds < 31536000:
		return plural(seconds/2592000, "month")
	}
	return plural(seconds/31536000, "year")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// SafeURL 只放行 http(s) 和 data:image 地址，其余替换为默认封面
func SafeURL(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "data:image/"):
		return template.URL(s)
	}
	return template.URL(models.DefaultCoverImage)
}

// CoverURL 上传的封面通过 /cover/:id 输出，外链封面原样使用
func CoverURL(a models.Article) template.URL {
	if strings.HasPrefix(a.CoverImage, "data:image/") {
		return template.URL("/cover/" + url.PathEscape(a.ID))
	}
	return SafeURL(a.CoverImage)
}

// StarClass 星级按钮的样式：自己的评分高亮，未评分时淡显平均分
func StarClass(star int, e models.UserEngagement, average float64) string {
	if mine := e.Stars(); mine > 0 {
		if star <= mine {
			return "star selected"
		}
		return "star"
	}
	if star <= int(math.Round(average)) {
		return "star average"
	}
	return "star"
}
