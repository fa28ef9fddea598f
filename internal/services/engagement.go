package services

import (
	"errors"
	"lumina/internal/models"
	"math"
)

var (
	ErrInvalidReaction = errors.New("reaction must be like or dislike")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidEmoji    = errors.New("unsupported reaction emoji")
)

// ApplyReaction 处理点赞/点踩切换
//   - 与已有态度相同：取消，对应计数 -1
//   - 与已有态度相反：切换，原计数 -1，新计数 +1
//   - 没有态度：新计数 +1
//
// 计数不会低于 0。纯函数，不修改入参。
func ApplyReaction(article models.Article, prior models.UserEngagement, requested models.Reaction) (models.Article, models.UserEngagement, error) {
	if requested != models.ReactionLike && requested != models.ReactionDislike {
		return article, prior, ErrInvalidReaction
	}

	next := prior
	switch prior.Reaction {
	case requested:
		bump(&article, requested, -1)
		next.Reaction = models.ReactionNone
	case models.ReactionNone:
		bump(&article, requested, 1)
		next.Reaction = requested
	default:
		bump(&article, prior.Reaction, -1)
		bump(&article, requested, 1)
		next.Reaction = requested
	}
	return article, next, nil
}

func bump(a *models.Article, r models.Reaction, delta int) {
	switch r {
	case models.ReactionLike:
		a.Likes = max(a.Likes+delta, 0)
	case models.ReactionDislike:
		a.Dislikes = max(a.Dislikes+delta, 0)
	}
}

// ApplyRating 处理星级评分
//   - 与已有评分相同：撤销，人数 -1，按剩余总分重新计算平均
//   - 已有不同评分：替换，人数不变
//   - 没有评分：新增，人数 +1
//
// 平均分保留一位小数。
func ApplyRating(article models.Article, prior models.UserEngagement, stars int) (models.Article, models.UserEngagement, error) {
	if stars < 1 || stars > 5 {
		return article, prior, ErrInvalidRating
	}

	total := article.RatingSum()
	count := article.RatingCount
	next := prior

	switch old := prior.Stars(); {
	case old == stars:
		count--
		total -= old
		next.Rating = nil
	case old != 0:
		if count <= 0 {
			count = 1
			total = old
		}
		total += stars - old
		next.Rating = intPtr(stars)
	default:
		count++
		total += stars
		next.Rating = intPtr(stars)
	}

	if count <= 0 || total <= 0 {
		count, total = 0, 0
	}
	article.RatingCount = count
	article.RatingTotal = total
	article.Rating = averageRating(total, count)
	return article, next, nil
}

func averageRating(total, count int) float64 {
	if count == 0 {
		return 0
	}
	return round1(float64(total) / float64(count))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func intPtr(v int) *int {
	return &v
}

// ToggleCommentReaction 切换访客在一条评论上的表情，返回新的计数表和访客的新表情
// 计数为 0 的表情会被移除；入参的 map 不会被修改。
func ToggleCommentReaction(comment models.Comment, prior, requested string) (map[string]int, string, error) {
	if requested == "" {
		return comment.Reactions, prior, ErrInvalidEmoji
	}
	if _, existing := comment.Reactions[requested]; !existing && !models.InPalette(requested) {
		return comment.Reactions, prior, ErrInvalidEmoji
	}

	reactions := make(map[string]int, len(comment.Reactions)+1)
	for k, v := range comment.Reactions {
		if v > 0 {
			reactions[k] = v
		}
	}

	decrement := func(emoji string) {
		if n := reactions[emoji] - 1; n > 0 {
			reactions[emoji] = n
		} else {
			delete(reactions, emoji)
		}
	}

	if prior == requested {
		decrement(requested)
		return reactions, "", nil
	}
	if prior != "" {
		decrement(prior)
	}
	reactions[requested]++
	return reactions, requested, nil
}
