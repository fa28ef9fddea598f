package services

import (
	"context"
	"errors"
	"fmt"
	"lumina/internal/models"
	"lumina/internal/store"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxCommentLength 单条评论的最大字符数
const MaxCommentLength = 2000

var (
	ErrEmptyComment   = errors.New("comment text is required")
	ErrCommentTooLong = fmt.Errorf("comment must be at most %d characters", MaxCommentLength)
)

// EngagementService 把纯函数的计算结果在一个存储事务里写回
type EngagementService struct {
	store *store.Store
	now   func() time.Time
}

func NewEngagementService(st *store.Store) *EngagementService {
	return &EngagementService{store: st, now: time.Now}
}

// visibleArticle 只允许对当前可见的文章互动
func (s *EngagementService) visibleArticle(tx *store.Tx, articleID string) (models.Article, error) {
	article, err := tx.Article(articleID)
	if err != nil {
		return models.Article{}, err
	}
	if !article.IsVisibleAt(s.now()) {
		return models.Article{}, store.ErrNotFound
	}
	return article, nil
}

// React 点赞或点踩（再次点击取消）
func (s *EngagementService) React(ctx context.Context, visitor, articleID string, reaction models.Reaction) (models.Article, models.UserEngagement, error) {
	var (
		article    models.Article
		engagement models.UserEngagement
	)
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		current, err := s.visibleArticle(tx, articleID)
		if err != nil {
			return err
		}
		prior, err := tx.Engagement(visitor, articleID)
		if err != nil {
			return err
		}
		article, engagement, err = ApplyReaction(current, prior, reaction)
		if err != nil {
			return err
		}
		tx.PutArticle(article)
		return tx.SetEngagement(visitor, articleID, engagement)
	})
	if err != nil {
		return models.Article{}, models.UserEngagement{}, fmt.Errorf("react to %s: %w", articleID, err)
	}
	return article, engagement, nil
}

// Rate 星级评分（再次选择同一星级撤销）
func (s *EngagementService) Rate(ctx context.Context, visitor, articleID string, stars int) (models.Article, models.UserEngagement, error) {
	var (
		article    models.Article
		engagement models.UserEngagement
	)
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		current, err := s.visibleArticle(tx, articleID)
		if err != nil {
			return err
		}
		prior, err := tx.Engagement(visitor, articleID)
		if err != nil {
			return err
		}
		article, engagement, err = ApplyRating(current, prior, stars)
		if err != nil {
			return err
		}
		tx.PutArticle(article)
		return tx.SetEngagement(visitor, articleID, engagement)
	})
	if err != nil {
		return models.Article{}, models.UserEngagement{}, fmt.Errorf("rate %s: %w", articleID, err)
	}
	return article, engagement, nil
}

// ReactToComment 切换评论表情，返回更新后的评论和访客当前的表情
func (s *EngagementService) ReactToComment(ctx context.Context, visitor, commentID, emoji string) (models.Comment, string, error) {
	var (
		comment models.Comment
		mine    string
	)
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		current, err := tx.Comment(commentID)
		if err != nil {
			return err
		}
		if _, err := s.visibleArticle(tx, current.ArticleID); err != nil {
			return err
		}
		prior, err := tx.CommentReaction(visitor, commentID)
		if err != nil {
			return err
		}
		reactions, next, err := ToggleCommentReaction(current, prior, emoji)
		if err != nil {
			return err
		}
		current.Reactions = reactions
		comment, mine = current, next
		tx.PutComment(current)
		return tx.SetCommentReaction(visitor, commentID, next)
	})
	if err != nil {
		return models.Comment{}, "", fmt.Errorf("react to comment %s: %w", commentID, err)
	}
	return comment, mine, nil
}

// AddComment 以 Guest Reader 身份发表评论，新评论排在最前
func (s *EngagementService) AddComment(ctx context.Context, articleID, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return models.Comment{}, ErrCommentTooLong
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		ArticleID: articleID,
		Author:    models.GuestAuthor,
		Text:      text,
		CreatedAt: s.now(),
		Reactions: map[string]int{},
	}
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, err := s.visibleArticle(tx, articleID); err != nil {
			return err
		}
		tx.PutComment(comment)
		return nil
	})
	if err != nil {
		return models.Comment{}, fmt.Errorf("comment on %s: %w", articleID, err)
	}
	return comment, nil
}
