package services

import (
	"lumina/internal/models"
	"sort"
	"strings"
	"time"
)

// AllCategories 表示不按分类过滤
const AllCategories = "All"

// ListVisible 返回 now 时刻对读者可见的文章，按生效时间倒序
// 草稿和未到时间的定时文章一律排除；时间相同的保持存储中的相对顺序。
func ListVisible(articles []models.Article, now time.Time, category string) []models.Article {
	visible := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.IsVisibleAt(now) && MatchCategory(a, category) {
			visible = append(visible, a)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].EffectiveTime().After(visible[j].EffectiveTime())
	})
	return visible
}

// MatchCategory 分类比较忽略大小写，空串或 "All" 匹配全部
func MatchCategory(a models.Article, category string) bool {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		return true
	}
	return strings.EqualFold(a.Category, category)
}

// FilterCategory 保持顺序过滤分类
func FilterCategory(articles []models.Article, category string) []models.Article {
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if MatchCategory(a, category) {
			out = append(out, a)
		}
	}
	return out
}

// CategoryCount 分类及其可见文章数
type CategoryCount struct {
	Name  string
	Count int
}

// CountCategories 统计可见文章的分类，默认分类始终列出，其余按首次出现顺序追加
func CountCategories(visible []models.Article) []CategoryCount {
	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string

	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := display[key]; !ok {
			display[key] = name
			order = append(order, key)
		}
	}
	for _, name := range models.Categories {
		add(name)
	}
	for _, a := range visible {
		if strings.TrimSpace(a.Category) == "" {
			continue
		}
		add(a.Category)
		counts[strings.ToLower(a.Category)]++
	}

	out := make([]CategoryCount, 0, len(order))
	for _, key := range order {
		out = append(out, CategoryCount{Name: display[key], Count: counts[key]})
	}
	return out
}
