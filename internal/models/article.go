package models

import (
	"math"
	"strings"
	"time"
)

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusScheduled ArticleStatus = "scheduled"
)

// Valid 判断状态是否为三种合法取值之一
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled:
		return true
	}
	return false
}

// 编辑器默认值
const (
	DefaultAuthor     = "Admin User"
	DefaultCoverImage = "https://picsum.photos/seed/newpost/1200/600"
	ExcerptLength     = 150
)

// Categories 编辑器下拉框提供的分类（不强制）
var Categories = []string{"Technology", "Lifestyle", "Business", "Art", "Science"}

type Article struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Excerpt     string        `json:"excerpt"`
	Content     string        `json:"content"`
	Author      string        `json:"author"`
	CoverImage  string        `json:"coverImage"`
	Category    string        `json:"category"`
	PublishedAt time.Time     `json:"publishedAt"`
	ScheduledAt *time.Time    `json:"scheduledAt"`
	Status      ArticleStatus `json:"status"`
	Likes       int           `json:"likes"`
	Dislikes    int           `json:"dislikes"`
	Rating      float64       `json:"rating"`
	RatingCount int           `json:"ratingCount"`
	RatingTotal int           `json:"ratingTotal,omitempty"` // 所有评分之和，旧数据中可能缺失
}

// EffectiveTime 排序用的时间：定时文章取 scheduledAt，其余取 publishedAt
func (a Article) EffectiveTime() time.Time {
	if a.Status == StatusScheduled && a.ScheduledAt != nil {
		return *a.ScheduledAt
	}
	return a.PublishedAt
}

// IsVisibleAt 判断文章在 now 时刻是否对读者可见
func (a Article) IsVisibleAt(now time.Time) bool {
	switch a.Status {
	case StatusPublished:
		return !a.PublishedAt.After(now)
	case StatusScheduled:
		return a.ScheduledAt != nil && !a.ScheduledAt.After(now)
	}
	return false
}

// RatingSum 返回评分总和；缺失时按 rating*count 还原
func (a Article) RatingSum() int {
	if a.RatingCount <= 0 {
		return 0
	}
	if a.RatingTotal > 0 {
		return a.RatingTotal
	}
	return int(math.Round(a.Rating * float64(a.RatingCount)))
}

// Paragraphs 按空行切分正文
func (a Article) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(a.Content, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReadingMinutes 按每分钟 200 词估算阅读时长
func (a Article) ReadingMinutes() int {
	words := len(strings.Fields(a.Content))
	minutes := int(math.Ceil(float64(words) / 200))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Clone 返回不共享指针字段的副本
func (a Article) Clone() Article {
	if a.ScheduledAt != nil {
		t := *a.ScheduledAt
		a.ScheduledAt = &t
	}
	return a
}
