package handlers

import (
	"context"
	"errors"
	"lumina/internal/db"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"path/filepath"
	"testing"
	"time"
)

func newEditorStore(t *testing.T) *store.Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "lumina.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	st := store.New(db.NewBlobStore(conn))
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return st
}

func TestSaveKeepsEngagementCommittedDuringEdit(t *testing.T) {
	st := newEditorStore(t)
	h := NewEditorHandler(st, false, 1<<20, time.UTC)
	ctx := context.Background()

	article, err := h.build(editorForm{
		ID:       "1",
		Title:    "Edited title",
		Content:  "Edited body",
		Category: "Technology",
		Status:   models.StatusPublished,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// 表单提交与保存之间有读者点赞并评分
	engagement := services.NewEngagementService(st)
	if _, _, err := engagement.React(ctx, "v1", "1", models.ReactionLike); err != nil {
		t.Fatal(err)
	}
	if _, _, err := engagement.Rate(ctx, "v1", "1", 2); err != nil {
		t.Fatal(err)
	}

	err = st.Transaction(ctx, func(tx *store.Tx) error {
		return saveArticle(tx, article, true)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := st.Article("1")
	if got.Title != "Edited title" || got.Status != models.StatusPublished {
		t.Errorf("edit not applied: %+v", got)
	}
	if got.Likes != 43 || got.RatingCount != 16 || got.RatingTotal != 74 {
		t.Errorf("engagement lost: likes=%d count=%d total=%d", got.Likes, got.RatingCount, got.RatingTotal)
	}

	// 再次点击取消点赞，计数与访客记录保持一致
	a, e, err := engagement.React(ctx, "v1", "1", models.ReactionLike)
	if err != nil {
		t.Fatal(err)
	}
	if a.Likes != 42 || e.Reaction != models.ReactionNone {
		t.Errorf("expected toggle back to 42, got %d (%v)", a.Likes, e.Reaction)
	}
}

func TestSaveDoesNotResurrectDeletedArticle(t *testing.T) {
	st := newEditorStore(t)
	h := NewEditorHandler(st, false, 1<<20, time.UTC)
	ctx := context.Background()

	article, err := h.build(editorForm{ID: "2", Title: "T", Content: "C", Status: models.StatusPublished})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Transaction(ctx, func(tx *store.Tx) error {
		_, err := tx.DeleteArticle("2")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	err = st.Transaction(ctx, func(tx *store.Tx) error {
		return saveArticle(tx, article, true)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.Article("2"); !errors.Is(err, store.ErrNotFound) {
		t.Error("deleted article came back")
	}
}

func TestSaveNewArticleUsesFreshCounters(t *testing.T) {
	st := newEditorStore(t)
	h := NewEditorHandler(st, false, 1<<20, time.UTC)

	article, err := h.build(editorForm{Title: "Fresh", Content: "Body", Status: models.StatusPublished})
	if err != nil {
		t.Fatal(err)
	}
	if article.ID == "" || article.Author != models.DefaultAuthor {
		t.Errorf("expected generated id and default author, got %+v", article)
	}
	if err := st.Transaction(context.Background(), func(tx *store.Tx) error {
		return saveArticle(tx, article, false)
	}); err != nil {
		t.Fatal(err)
	}
	if got := st.Articles(); got[0].ID != article.ID || got[0].Likes != 0 {
		t.Errorf("new article should be prepended with zero counters, got %+v", got[0])
	}
}
