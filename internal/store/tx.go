package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"lumina/internal/db"
	"lumina/internal/models"
)

// Tx 事务内的工作副本；闭包返回错误时全部丢弃
type Tx struct {
	ctx context.Context
	s   *Store

	articles      []models.Article
	comments      []models.Comment
	articlesDirty bool
	commentsDirty bool

	engagement map[string]models.EngagementMap      // visitor -> map
	reactions  map[string]models.CommentReactionMap // visitor -> map
	dirty      map[string]bool
}

// maxCommitAttempts 其他进程并发写入时的最大尝试次数
const maxCommitAttempts = 3

// Transaction 在存储锁内执行 fn，成功后把所有改动过的键一次性写入持久层
// 执行前先同步其他进程的修改；提交时发现版本冲突会重新同步并重跑 fn
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	changed, err := s.apply(ctx, fn)
	if changed {
		s.runHooks()
	}
	return err
}

func (s *Store) apply(ctx context.Context, fn func(tx *Tx) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reloaded := false
	for attempt := 1; ; attempt++ {
		synced, err := s.syncLocked(ctx)
		reloaded = reloaded || synced
		if err != nil {
			return reloaded, fmt.Errorf("sync: %w", err)
		}

		tx := &Tx{
			ctx:        ctx,
			s:          s,
			articles:   cloneArticles(s.articles),
			comments:   cloneComments(s.comments),
			engagement: make(map[string]models.EngagementMap),
			reactions:  make(map[string]models.CommentReactionMap),
			dirty:      make(map[string]bool),
		}
		if err := fn(tx); err != nil {
			return reloaded, err
		}

		values := tx.encode()
		if len(values) == 0 {
			return reloaded, nil
		}
		expect := make(map[string]int64)
		for _, key := range rootKeys {
			if _, ok := values[key]; ok {
				expect[key] = s.versions[key]
			}
		}

		written, err := s.blobs.PutMany(ctx, values, expect)
		if errors.Is(err, db.ErrConflict) && attempt < maxCommitAttempts {
			log.Printf("[store] concurrent write detected, retrying (attempt %d)", attempt+1)
			continue
		}
		if err != nil {
			return reloaded, fmt.Errorf("commit: %w", err)
		}

		if tx.articlesDirty {
			s.articles = tx.articles
		}
		if tx.commentsDirty {
			s.comments = tx.comments
		}
		for key := range expect {
			s.versions[key] = written[key]
		}
		return true, nil
	}
}

func (tx *Tx) encode() map[string]string {
	values := make(map[string]string)
	if tx.articlesDirty {
		values[KeyArticles] = mustEncode(tx.articles)
	}
	if tx.commentsDirty {
		values[KeyComments] = mustEncode(tx.comments)
	}
	for visitor, m := range tx.engagement {
		key := EngagementKeyPrefix + visitor
		if tx.dirty[key] {
			values[key] = mustEncode(m)
		}
	}
	for visitor, m := range tx.reactions {
		key := CommentReactionKeyPrefix + visitor
		if tx.dirty[key] {
			values[key] = mustEncode(m)
		}
	}
	return values
}

// Articles 事务内的文章列表（副本）
func (tx *Tx) Articles() []models.Article {
	return cloneArticles(tx.articles)
}

func (tx *Tx) Article(id string) (models.Article, error) {
	for _, a := range tx.articles {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return models.Article{}, ErrNotFound
}

// PutArticle 已存在则原位替换，否则插入到最前面；返回是否为新建
func (tx *Tx) PutArticle(a models.Article) bool {
	tx.articlesDirty = true
	for i := range tx.articles {
		if tx.articles[i].ID == a.ID {
			tx.articles[i] = a.Clone()
			return false
		}
	}
	tx.articles = append([]models.Article{a.Clone()}, tx.articles...)
	return true
}

// DeleteArticle 删除文章及其全部评论，返回被删除的评论数
func (tx *Tx) DeleteArticle(id string) (int, error) {
	idx := -1
	for i, a := range tx.articles {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ErrNotFound
	}
	tx.articles = append(tx.articles[:idx:idx], tx.articles[idx+1:]...)
	tx.articlesDirty = true

	kept := tx.comments[:0:0]
	removed := 0
	for _, c := range tx.comments {
		if c.ArticleID == id {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed > 0 {
		tx.comments = kept
		tx.commentsDirty = true
	}
	return removed, nil
}

func (tx *Tx) Comment(id string) (models.Comment, error) {
	for _, c := range tx.comments {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return models.Comment{}, ErrNotFound
}

// PutComment 已存在则替换，否则插入到最前面
func (tx *Tx) PutComment(c models.Comment) bool {
	c = c.Clone()
	tx.commentsDirty = true
	for i := range tx.comments {
		if tx.comments[i].ID == c.ID {
			tx.comments[i] = c
			return false
		}
	}
	tx.comments = append([]models.Comment{c}, tx.comments...)
	return true
}

func (tx *Tx) DeleteComment(id string) error {
	for i, c := range tx.comments {
		if c.ID == id {
			tx.comments = append(tx.comments[:i:i], tx.comments[i+1:]...)
			tx.commentsDirty = true
			return nil
		}
	}
	return ErrNotFound
}

func (tx *Tx) engagementMap(visitor string) (models.EngagementMap, error) {
	if m, ok := tx.engagement[visitor]; ok {
		return m, nil
	}
	m, err := tx.s.loadEngagement(tx.ctx, visitor)
	if err != nil {
		return nil, err
	}
	tx.engagement[visitor] = m
	return m, nil
}

func (tx *Tx) reactionMap(visitor string) (models.CommentReactionMap, error) {
	if m, ok := tx.reactions[visitor]; ok {
		return m, nil
	}
	m, err := tx.s.loadCommentReactions(tx.ctx, visitor)
	if err != nil {
		return nil, err
	}
	tx.reactions[visitor] = m
	return m, nil
}

// Engagement 访客对文章的互动记录，没有时为零值
func (tx *Tx) Engagement(visitor, articleID string) (models.UserEngagement, error) {
	m, err := tx.engagementMap(visitor)
	if err != nil {
		return models.UserEngagement{}, err
	}
	return m[articleID], nil
}

// SetEngagement 写入互动记录，{none, none} 直接删除
func (tx *Tx) SetEngagement(visitor, articleID string, e models.UserEngagement) error {
	if visitor == "" {
		return fmt.Errorf("visitor id is required")
	}
	m, err := tx.engagementMap(visitor)
	if err != nil {
		return err
	}
	if e.IsZero() {
		delete(m, articleID)
	} else {
		m[articleID] = e
	}
	tx.dirty[EngagementKeyPrefix+visitor] = true
	return nil
}

// CommentReaction 访客在某条评论上的表情，没有时为空串
func (tx *Tx) CommentReaction(visitor, commentID string) (string, error) {
	m, err := tx.reactionMap(visitor)
	if err != nil {
		return "", err
	}
	return m[commentID], nil
}

// SetCommentReaction emoji 为空时删除记录
func (tx *Tx) SetCommentReaction(visitor, commentID, emoji string) error {
	if visitor == "" {
		return fmt.Errorf("visitor id is required")
	}
	m, err := tx.reactionMap(visitor)
	if err != nil {
		return err
	}
	if emoji == "" {
		delete(m, commentID)
	} else {
		m[commentID] = emoji
	}
	tx.dirty[CommentReactionKeyPrefix+visitor] = true
	return nil
}
