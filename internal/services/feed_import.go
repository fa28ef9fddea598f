package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"lumina/internal/models"
	"lumina/internal/store"
	"lumina/internal/utils"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultImportLimit = 10
	MaxImportLimit     = 50
)

var ErrInvalidFeedURL = errors.New("feed url must be an http(s) address")

// ImportRequest 一次导入的参数
type ImportRequest struct {
	URL      string
	Category string
	Limit    int
	FullText bool
}

// ImportResult 导入结果
type ImportResult struct {
	FeedTitle string
	Created   []models.Article
	Skipped   int
}

// FeedImporter 把 RSS/Atom 条目导入为草稿
type FeedImporter struct {
	parser   *gofeed.Parser
	crawler  *CrawlerService
	store    *store.Store
	maxItems int
	now      func() time.Time
}

func NewFeedImporter(st *store.Store, crawler *CrawlerService, timeout time.Duration, maxItems int) *FeedImporter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxItems <= 0 || maxItems > MaxImportLimit {
		maxItems = MaxImportLimit
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}
	return &FeedImporter{
		parser:   parser,
		crawler:  crawler,
		store:    st,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Import 解析订阅源，每个条目生成一篇草稿；标题已存在的条目跳过
func (f *FeedImporter) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ImportResult{}, ErrInvalidFeedURL
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultImportLimit
	}
	limit = min(limit, f.maxItems)

	feed, err := f.parser.ParseURLWithContext(u.String(), ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse feed: %w", err)
	}

	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	// 抓取全文较慢，放在事务外完成
	drafts := make([]models.Article, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		drafts = append(drafts, f.draftFromItem(ctx, item, req))
	}

	result := ImportResult{FeedTitle: feed.Title}
	err = f.store.Transaction(ctx, func(tx *store.Tx) error {
		titles := make(map[string]bool)
		for _, a := range tx.Articles() {
			titles[strings.ToLower(strings.TrimSpace(a.Title))] = true
		}
		// 逆序写入，使订阅源中靠前的条目排在列表最前
		created := make([]models.Article, 0, len(drafts))
		for i := len(drafts) - 1; i >= 0; i-- {
			key := strings.ToLower(strings.TrimSpace(drafts[i].Title))
			if titles[key] {
				result.Skipped++
				continue
			}
			titles[key] = true
			tx.PutArticle(drafts[i])
			created = append([]models.Article{drafts[i]}, created...)
		}
		result.Created = created
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("save imported drafts: %w", err)
	}
	result.Skipped += len(items) - len(drafts)

	log.Printf("[import] %s: %d drafts created, %d skipped", u.Host, len(result.Created), result.Skipped)
	return result, nil
}

func (f *FeedImporter) draftFromItem(ctx context.Context, item *gofeed.Item, req ImportRequest) models.Article {
	body := item.Content
	if body == "" {
		body = item.Description
	}

	paragraphs := utils.HTMLToParagraphs(body)
	if req.FullText && item.Link != "" && f.crawler != nil {
		if full := f.crawler.FetchParagraphs(ctx, item.Link); len(full) > 0 {
			paragraphs = full
		} else {
			log.Printf("[import] full text unavailable for %s, using feed content", item.Link)
		}
	}

	excerpt := utils.StripHTML(item.Description)
	if excerpt == "" {
		excerpt = utils.StripHTML(body)
	}

	author := models.DefaultAuthor
	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		author = item.Authors[0].Name
	}

	category := strings.TrimSpace(req.Category)
	if category == "" && len(item.Categories) > 0 {
		category = item.Categories[0]
	}
	if category == "" {
		category = models.Categories[0]
	}

	published := f.now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return models.Article{
		ID:          uuid.NewString(),
		Title:       utils.CollapseSpaces(item.Title),
		Excerpt:     utils.Truncate(excerpt, models.ExcerptLength),
		Content:     strings.Join(paragraphs, "\n\n"),
		Author:      author,
		CoverImage:  coverFromItem(item, body),
		Category:    category,
		PublishedAt: published,
		Status:      models.StatusDraft,
	}
}

// coverFromItem 依次取条目图片、图片附件、正文第一张图
func coverFromItem(item *gofeed.Item, body string) string {
	if item.Image != nil && isHTTPURL(item.Image.URL) {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	if src := utils.FirstImage(body); isHTTPURL(src) {
		return src
	}
	return models.DefaultCoverImage
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
