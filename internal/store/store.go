package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"lumina/internal/models"
	"sync"
	"time"
)

// 持久化键名
const (
	KeyArticles              = "articles"
	KeyComments              = "comments"
	EngagementKeyPrefix      = "user_engagement:"
	CommentReactionKeyPrefix = "comment_reactions:"
)

var ErrNotFound = errors.New("not found")

// rootKeys 文章和评论两个根集合，写入时按版本号做条件更新
var rootKeys = []string{KeyArticles, KeyComments}

// Blobs 键值持久层，由 db.BlobStore 实现
// PutMany 对 expect 中的键做版本校验，不匹配时返回 db.ErrConflict
type Blobs interface {
	Get(ctx context.Context, key string) (models.Blob, bool, error)
	Versions(ctx context.Context, keys ...string) (map[string]int64, error)
	PutMany(ctx context.Context, values map[string]string, expect map[string]int64) (map[string]int64, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// Store 持有文章和评论两个根集合，所有写操作通过 Transaction 串行执行
type Store struct {
	blobs Blobs
	now   func() time.Time

	mu       sync.RWMutex
	articles []models.Article
	comments []models.Comment
	versions map[string]int64 // 内存快照对应的持久层版本

	hooksMu sync.Mutex
	hooks   []func()
}

type Option func(*Store)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(blobs Blobs, opts ...Option) *Store {
	s := &Store{blobs: blobs, now: time.Now, versions: make(map[string]int64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnCommit 注册提交成功后的回调
func (s *Store) OnCommit(fn func()) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

func (s *Store) runHooks() {
	s.hooksMu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Load 从持久层读取文章与评论；缺失或损坏时使用默认数据并回写
func (s *Store) Load(ctx context.Context) error {
	articles, articlesVer, articlesOK, err := loadCollection[models.Article](ctx, s.blobs, KeyArticles)
	if err != nil {
		return err
	}
	comments, commentsVer, commentsOK, err := loadCollection[models.Comment](ctx, s.blobs, KeyComments)
	if err != nil {
		return err
	}

	versions := map[string]int64{KeyArticles: articlesVer, KeyComments: commentsVer}
	now := s.now()
	pending := make(map[string]string)
	if !articlesOK {
		articles = DefaultArticles(now)
		pending[KeyArticles] = mustEncode(articles)
	}
	if !commentsOK {
		comments = DefaultComments(now)
		pending[KeyComments] = mustEncode(comments)
	}
	normalizeComments(comments)

	expect := make(map[string]int64, len(pending))
	for key := range pending {
		expect[key] = versions[key]
	}
	written, err := s.blobs.PutMany(ctx, pending, expect)
	if err != nil {
		return fmt.Errorf("write default dataset: %w", err)
	}
	for key, v := range written {
		versions[key] = v
	}

	s.mu.Lock()
	s.articles = articles
	s.comments = comments
	s.versions = versions
	s.mu.Unlock()

	log.Printf("[store] loaded %d articles, %d comments", len(articles), len(comments))
	s.runHooks()
	return nil
}

// Sync 其他进程（如 luminactl）改过文章或评论时重新加载，返回是否有变化
func (s *Store) Sync(ctx context.Context) (bool, error) {
	s.mu.Lock()
	changed, err := s.syncLocked(ctx)
	s.mu.Unlock()
	if changed {
		s.runHooks()
	}
	return changed, err
}

// syncLocked 比较持久层版本号，只重新读取变化了的集合；调用方持有 s.mu
func (s *Store) syncLocked(ctx context.Context) (bool, error) {
	current, err := s.blobs.Versions(ctx, rootKeys...)
	if err != nil {
		return false, err
	}

	changed := false
	for _, key := range rootKeys {
		if current[key] == s.versions[key] {
			continue
		}
		if err := s.reloadLocked(ctx, key); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// reloadLocked 重新读取一个根集合；缺失或损坏时保留内存快照，只记录版本以便下次写入覆盖
func (s *Store) reloadLocked(ctx context.Context, key string) error {
	switch key {
	case KeyArticles:
		articles, v, ok, err := loadCollection[models.Article](ctx, s.blobs, key)
		if err != nil {
			return err
		}
		if ok {
			s.articles = articles
		}
		s.versions[key] = v
	case KeyComments:
		comments, v, ok, err := loadCollection[models.Comment](ctx, s.blobs, key)
		if err != nil {
			return err
		}
		if ok {
			normalizeComments(comments)
			s.comments = comments
		}
		s.versions[key] = v
	}
	log.Printf("[store] %s changed by another writer, reloaded", key)
	return nil
}

// Reset 恢复默认数据并清空所有访客的互动记录
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	now := s.now()
	articles := DefaultArticles(now)
	comments := DefaultComments(now)

	for _, prefix := range []string{EngagementKeyPrefix, CommentReactionKeyPrefix} {
		if err := s.blobs.DeletePrefix(ctx, prefix); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	written, err := s.blobs.PutMany(ctx, map[string]string{
		KeyArticles: mustEncode(articles),
		KeyComments: mustEncode(comments),
	}, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("write default dataset: %w", err)
	}
	s.articles = articles
	s.comments = comments
	for key, v := range written {
		s.versions[key] = v
	}
	s.mu.Unlock()

	log.Println("[store] reset to default dataset")
	s.runHooks()
	return nil
}

func normalizeComments(comments []models.Comment) {
	for i := range comments {
		if comments[i].Reactions == nil {
			comments[i].Reactions = map[string]int{}
		}
	}
}

// loadCollection 读取一个 JSON 数组及其版本号；不存在或解析失败时 ok 为 false
func loadCollection[T any](ctx context.Context, blobs Blobs, key string) ([]T, int64, bool, error) {
	blob, found, err := blobs.Get(ctx, key)
	if err != nil {
		return nil, 0, false, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		log.Printf("[store] %s not found, using default dataset", key)
		return nil, 0, false, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(blob.Value), &out); err != nil {
		log.Printf("[store] %s is corrupt (%v), using default dataset", key, err)
		return nil, blob.Version, false, nil
	}
	if out == nil {
		out = []T{}
	}
	return out, blob.Version, true, nil
}

func mustEncode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// 模型均为可序列化的简单结构
		panic(fmt.Sprintf("encode: %v", err))
	}
	return string(data)
}

// Articles 返回全部文章（存储顺序）的副本
func (s *Store) Articles() []models.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneArticles(s.articles)
}

// Article 按 ID 查找文章
func (s *Store) Article(id string) (models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.articles {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return models.Article{}, ErrNotFound
}

// Comments 返回全部评论（存储顺序，新评论在前）
func (s *Store) Comments() []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneComments(s.comments)
}

// CommentsForArticle 返回某篇文章的评论
func (s *Store) CommentsForArticle(articleID string) []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Comment
	for _, c := range s.comments {
		if c.ArticleID == articleID {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Engagement 读取访客对某篇文章的互动记录，没有记录时返回零值
func (s *Store) Engagement(ctx context.Context, visitor, articleID string) (models.UserEngagement, error) {
	m, err := s.loadEngagement(ctx, visitor)
	if err != nil {
		return models.UserEngagement{}, err
	}
	return m[articleID], nil
}

// CommentReactions 读取访客的全部评论表情
func (s *Store) CommentReactions(ctx context.Context, visitor string) (models.CommentReactionMap, error) {
	return s.loadCommentReactions(ctx, visitor)
}

func (s *Store) loadEngagement(ctx context.Context, visitor string) (models.EngagementMap, error) {
	return loadVisitorMap[models.EngagementMap](ctx, s.blobs, EngagementKeyPrefix+visitor)
}

func (s *Store) loadCommentReactions(ctx context.Context, visitor string) (models.CommentReactionMap, error) {
	return loadVisitorMap[models.CommentReactionMap](ctx, s.blobs, CommentReactionKeyPrefix+visitor)
}

// loadVisitorMap 访客数据缺失或损坏时按空记录处理
func loadVisitorMap[M ~map[string]V, V any](ctx context.Context, blobs Blobs, key string) (M, error) {
	blob, found, err := blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	m := M{}
	if !found || blob.Value == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(blob.Value), &m); err != nil {
		log.Printf("[store] %s is corrupt (%v), treating as empty", key, err)
		return M{}, nil
	}
	if m == nil {
		m = M{}
	}
	return m, nil
}

func cloneArticles(in []models.Article) []models.Article {
	out := make([]models.Article, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
