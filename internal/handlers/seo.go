package handlers

import (
	"fmt"
	"html"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/utils"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// feedSize RSS 输出的文章数
const feedSize = 20

type SEOHandler struct {
	listing  *services.ListingService
	siteURL  string
	siteName string
}

func NewSEOHandler(listing *services.ListingService, siteURL, siteName string) *SEOHandler {
	return &SEOHandler{listing: listing, siteURL: strings.TrimSuffix(siteURL, "/"), siteName: siteName}
}

// RobotsTxt 返回 robots.txt
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止爬取管理后台和互动接口
Disallow: /admin/
Disallow: /api/

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// SitemapXML 只包含公开可见的页面
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	today := time.Now().Format("2006-01-02")
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	writeURL := func(loc, lastmod, changefreq string, priority float64) {
		fmt.Fprintf(&b, `  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, escapeXML(loc), lastmod, changefreq, priority)
	}

	writeURL(h.siteURL+"/", today, "daily", 1.0)
	writeURL(h.siteURL+"/categories", today, "weekly", 0.8)
	writeURL(h.siteURL+"/about", today, "monthly", 0.5)

	visible := h.listing.Visible("")
	for _, cc := range services.CountCategories(visible) {
		writeURL(h.siteURL+"/category/"+url.PathEscape(strings.ToLower(cc.Name)), today, "daily", 0.7)
	}
	for _, a := range visible {
		age := time.Since(a.EffectiveTime()).Hours() / 24
		priority, changefreq := 0.6, "weekly"
		if age < 7 {
			priority, changefreq = 0.8, "daily"
		}
		writeURL(h.articleURL(a), a.EffectiveTime().Format("2006-01-02"), changefreq, priority)
	}

	b.WriteString(`</urlset>`)
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed 最新的公开文章
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	visible := h.listing.Visible("")
	if len(visible) > feedSize {
		visible = visible[:feedSize]
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>` + escapeXML(h.siteName) + `</title>
    <link>` + escapeXML(h.siteURL) + `</link>
    <description>Thoughtful stories on technology, lifestyle, business, art and science.</description>
    <language>en</language>
    <lastBuildDate>` + time.Now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + escapeXML(h.siteURL) + `/feed.xml" rel="self" type="application/rss+xml"/>
`)

	for _, a := range visible {
		link := h.articleURL(a)
		b.WriteString(`    <item>
      <title>` + escapeXML(a.Title) + `</title>
      <link>` + escapeXML(link) + `</link>
      <description><![CDATA[` + cdata(feedDescription(a)) + `]]></description>
      <author>` + escapeXML(a.Author) + `</author>
      <category>` + escapeXML(a.Category) + `</category>
      <pubDate>` + a.EffectiveTime().Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + escapeXML(link) + `</guid>
    </item>
`)
	}

	b.WriteString(`  </channel>
</rss>`)
	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

func (h *SEOHandler) articleURL(a models.Article) string {
	return h.siteURL + "/article/" + url.PathEscape(a.ID)
}

// feedDescription 摘要加上前三段正文
func feedDescription(a models.Article) string {
	paragraphs := a.Paragraphs()
	if len(paragraphs) > 3 {
		paragraphs = paragraphs[:3]
	}
	body := string(utils.RenderMarkdown(strings.Join(paragraphs, "\n\n")))
	return "<p><em>" + html.EscapeString(a.Excerpt) + "</em></p>" + body
}

func escapeXML(s string) string {
	return html.EscapeString(s)
}

// cdata 防止正文里的 ]]> 提前结束 CDATA 段
func cdata(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
