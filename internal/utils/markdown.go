package utils

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()
)

func init() {
	policy.AllowImages()
	policy.AllowDataURIImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown 渲染正文：空行分段，支持 GFM，输出经过 bluemonday 清洗
func RenderMarkdown(source string) template.HTML {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	sanitized := policy.SanitizeBytes(buf.Bytes())
	return EnhanceHTMLContent(string(sanitized))
}

// RenderArticle 带缓存的渲染，键包含正文哈希，编辑后自动失效
func RenderArticle(id, content string) template.HTML {
	h := fnv.New64a()
	h.Write([]byte(content))
	key := fmt.Sprintf("article:%s:%x", id, h.Sum64())

	return GetCache().Remember(key, func() any {
		return RenderMarkdown(content)
	}).(template.HTML)
}

// SanitizeHTML 清洗外部抓取的 HTML
func SanitizeHTML(s string) string {
	return policy.Sanitize(s)
}
