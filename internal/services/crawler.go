package services

import (
	"context"
	"fmt"
	"io"
	"lumina/internal/utils"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// maxPageBytes 抓取网页的最大字节数
const maxPageBytes = 5 << 20

// CrawlerService 抓取外部网页正文
type CrawlerService struct {
	client *http.Client
}

func NewCrawlerService(timeout time.Duration) *CrawlerService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CrawlerService{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchArticleContent 从 URL 抓取正文，返回清洗后的 HTML
func (s *CrawlerService) FetchArticleContent(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid page url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LuminaImporter/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	return utils.SanitizeHTML(article.Content), nil
}

// FetchParagraphs 抓取正文并转为段落，失败时返回 nil
func (s *CrawlerService) FetchParagraphs(ctx context.Context, pageURL string) []string {
	content, err := s.FetchArticleContent(ctx, pageURL)
	if err != nil {
		return nil
	}
	return utils.HTMLToParagraphs(content)
}
