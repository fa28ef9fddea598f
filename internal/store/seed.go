package store

import (
	"lumina/internal/models"
	"time"
)

// DefaultArticles 首次启动或数据损坏时使用的文章
func DefaultArticles(now time.Time) []models.Article {
	return []models.Article{
		{
			ID:      "1",
			Title:   "The Future of Web Architecture: Beyond the Client-Side",
			Excerpt: "Exploring how hybrid rendering and edge computing are reshaping the way we build modern web applications.",
			Content: "The web is evolving faster than ever. From the early days of static HTML to the explosion of Single Page Applications (SPAs), " +
				"we are now witnessing a shift towards hyper-efficiency at the edge. Technologies like React Server Components and edge-native " +
				"frameworks are proving that performance is once again the priority...\n\n### The Rise of Edge\n" +
				"Edge computing allows us to run logic closer to the user, reducing latency and improving security. By offloading complex data " +
				"fetching to regional servers, we can deliver rich experiences on low-powered devices.",
			Author:      "Elena Vance",
			CoverImage:  "https://picsum.photos/seed/tech1/1200/600",
			Category:    "Technology",
			PublishedAt: now.Add(-48 * time.Hour),
			Status:      models.StatusPublished,
			Likes:       42,
			Dislikes:    2,
			Rating:      4.8,
			RatingCount: 15,
			RatingTotal: 72,
		},
		{
			ID:      "2",
			Title:   "Mindfulness in the Digital Age",
			Excerpt: "How to maintain focus and mental clarity in a world of constant notifications and digital noise.",
			Content: "Our attention is the most valuable currency in the modern economy. Every app, website, and device is designed to capture it. " +
				"To thrive, we must develop strong boundaries and deliberate practices for digital detoxing.\n\n### Practical Strategies\n" +
				"1. Disable non-human notifications.\n2. Create device-free zones in your home.\n3. Practice deep work sessions of at least 90 minutes.",
			Author:      "Mark Sterling",
			CoverImage:  "https://picsum.photos/seed/life/1200/600",
			Category:    "Lifestyle",
			PublishedAt: now.Add(-24 * time.Hour),
			Status:      models.StatusPublished,
			Likes:       128,
			Dislikes:    5,
			Rating:      4.5,
			RatingCount: 30,
			RatingTotal: 135,
		},
	}
}

// DefaultComments 默认评论
func DefaultComments(now time.Time) []models.Comment {
	return []models.Comment{
		{
			ID:        "c1",
			ArticleID: "1",
			Author:    "Julian Reed",
			Text:      "Fascinating read! I am really looking forward to seeing how edge computing integrates with current mobile workflows.",
			CreatedAt: now,
			Reactions: map[string]int{"👍": 5, "❤️": 2},
		},
	}
}
