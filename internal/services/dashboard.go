package services

import "lumina/internal/models"

// RecentLimit 仪表盘上展示的最近文章/评论数量
const RecentLimit = 5

// DashboardStats 后台概览
type DashboardStats struct {
	Published      int
	Scheduled      int
	Drafts         int
	TotalComments  int
	TotalLikes     int
	TotalDislikes  int
	TotalRatings   int
	AverageRating  float64
	RecentArticles []models.Article
	RecentComments []models.Comment
}

// Summarize 按存储顺序统计文章和评论
func Summarize(articles []models.Article, comments []models.Comment) DashboardStats {
	stats := DashboardStats{TotalComments: len(comments)}

	var ratingSum float64
	rated := 0
	for _, a := range articles {
		switch a.Status {
		case models.StatusPublished:
			stats.Published++
		case models.StatusScheduled:
			stats.Scheduled++
		default:
			stats.Drafts++
		}
		stats.TotalLikes += a.Likes
		stats.TotalDislikes += a.Dislikes
		stats.TotalRatings += a.RatingCount
		if a.RatingCount > 0 {
			ratingSum += a.Rating
			rated++
		}
	}
	if rated > 0 {
		stats.AverageRating = round1(ratingSum / float64(rated))
	}

	stats.RecentArticles = articles[:min(len(articles), RecentLimit)]
	stats.RecentComments = comments[:min(len(comments), RecentLimit)]
	return stats
}
