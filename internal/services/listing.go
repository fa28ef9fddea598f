package services

import (
	"context"
	"log"
	"lumina/internal/models"
	"lumina/internal/store"
	"sync"
	"time"
)

// ListingService 缓存当前对读者可见的文章列表
// 后台 worker 按固定间隔同步存储并重算，存储提交后也会触发一次（合并多次请求）。
type ListingService struct {
	store    *store.Store
	interval time.Duration
	now      func() time.Time

	refresh chan struct{} // 容量为 1，用于合并刷新请求

	mu          sync.RWMutex
	visible     []models.Article
	refreshedAt time.Time
}

func NewListingService(st *store.Store, interval time.Duration) *ListingService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &ListingService{
		store:    st,
		interval: interval,
		now:      time.Now,
		refresh:  make(chan struct{}, 1),
	}
	st.OnCommit(s.ScheduleRefresh)
	return s
}

// ScheduleRefresh 请求异步刷新，已有待处理请求时直接跳过
func (s *ListingService) ScheduleRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Refresh 同步重算可见列表
func (s *ListingService) Refresh() {
	now := s.now()
	visible := ListVisible(s.store.Articles(), now, "")

	s.mu.Lock()
	changed := !sameIDs(s.visible, visible)
	s.visible = visible
	s.refreshedAt = now
	s.mu.Unlock()

	if changed {
		log.Printf("[listing] %d articles visible", len(visible))
	}
}

// Start 启动后台 worker，ctx 取消后退出
func (s *ListingService) Start(ctx context.Context) {
	s.Refresh()
	go s.worker(ctx)
}

func (s *ListingService) worker(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[listing] worker stopped")
			return
		case <-s.refresh:
			s.Refresh()
		case <-ticker.C:
			// luminactl 等其他进程写入的内容在这里被发现
			if _, err := s.store.Sync(ctx); err != nil {
				log.Printf("[listing] sync store: %v", err)
			}
			s.Refresh()
		}
	}
}

// Visible 返回指定分类下的可见文章（副本）
func (s *ListingService) Visible(category string) []models.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := FilterCategory(s.visible, category)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// RefreshedAt 最近一次重算的时间
func (s *ListingService) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

func sameIDs(a, b []models.Article) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
