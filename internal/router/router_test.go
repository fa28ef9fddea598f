package router

import (
	"context"
	"encoding/json"
	"fmt"
	"lumina/internal/db"
	"lumina/internal/handlers"
	"lumina/internal/models"
	"lumina/internal/services"
	"lumina/internal/store"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

const testPassword = "open-sesame"

// stubHTML 只输出模板名和错误信息，页面内容由 web 包的测试覆盖
type stubHTML struct{}

func (stubHTML) Instance(name string, data any) render.Render {
	return stubPage{name: name, data: data}
}

type stubPage struct {
	name string
	data any
}

func (p stubPage) Render(w http.ResponseWriter) error {
	p.WriteContentType(w)
	fmt.Fprintf(w, "template=%s\n", p.name)
	if h, ok := p.data.(gin.H); ok {
		if msg, ok := h["Error"].(string); ok && msg != "" {
			fmt.Fprintf(w, "error=%s\n", msg)
		}
		if preview, _ := h["Preview"].(bool); preview {
			fmt.Fprintln(w, "preview=true")
		}
	}
	return nil
}

func (stubPage) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

type testSite struct {
	engine  *gin.Engine
	store   *store.Store
	listing *services.ListingService
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(filepath.Join(t.TempDir(), "lumina.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	st := store.New(db.NewBlobStore(conn))
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}

	listing := services.NewListingService(st, time.Minute)
	listing.Refresh()
	advice := services.NewAdviceService("http://127.0.0.1:1", "test-model", "", time.Second)
	importer := services.NewFeedImporter(st, services.NewCrawlerService(time.Second), time.Second, 50)

	r := gin.New()
	r.Use(sessions.Sessions("lumina_test", cookie.NewStore([]byte("test-secret"))))
	r.HTMLRender = stubHTML{}
	RegisterRoutes(r, Handlers{
		Public:     handlers.NewPublicHandler(st, listing, time.Minute),
		Engagement: handlers.NewEngagementHandler(services.NewEngagementService(st)),
		Auth:       handlers.NewAuthHandler(testPassword, ""),
		Admin:      handlers.NewAdminHandler(st, advice, importer, time.Second),
		Editor:     handlers.NewEditorHandler(st, false, 1<<20, time.UTC),
		SEO:        handlers.NewSEOHandler(listing, "https://lumina.test", "Lumina Press"),
		Image:      handlers.NewImageHandler(st),
	})
	return &testSite{engine: r, store: st, listing: listing}
}

// client 在请求之间保留 cookie
type client struct {
	site    *testSite
	cookies map[string]*http.Cookie
}

func (s *testSite) client() *client {
	return &client{site: s, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path string, form url.Values, asJSON bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.site.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) login(t *testing.T) {
	t.Helper()
	w := c.do(http.MethodPost, "/admin/login", url.Values{"password": {testPassword}}, false)
	if w.Code != http.StatusFound {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (s *testSite) putDraft(t *testing.T, id, title string) {
	t.Helper()
	err := s.store.Transaction(context.Background(), func(tx *store.Tx) error {
		tx.PutArticle(models.Article{
			ID:          id,
			Title:       title,
			Content:     "Hidden body",
			Category:    "Technology",
			Status:      models.StatusDraft,
			PublishedAt: time.Now().Add(-time.Hour),
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	s.listing.Refresh()
}

func TestPublicPages(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	cases := []struct {
		path     string
		template string
	}{
		{"/", "home.html"},
		{"/?category=Lifestyle", "home.html"},
		{"/category/Technology", "category.html"},
		{"/category/Nowhere", "category.html"},
		{"/categories", "categories.html"},
		{"/article/1", "article.html"},
		{"/about", "about.html"},
		{"/admin/login", "admin/login.html"},
	}
	for _, tc := range cases {
		w := c.do(http.MethodGet, tc.path, nil, false)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tc.path, w.Code)
			continue
		}
		if !strings.Contains(w.Body.String(), "template="+tc.template) {
			t.Errorf("%s: expected %s, got %q", tc.path, tc.template, w.Body.String())
		}
	}
}

func TestHiddenArticleRedirectsHome(t *testing.T) {
	site := newTestSite(t)
	site.putDraft(t, "draft-1", "Work In Progress")
	c := site.client()

	for _, path := range []string{"/article/draft-1", "/article/missing"} {
		w := c.do(http.MethodGet, path, nil, false)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
			t.Errorf("%s: expected redirect home, got %d %q", path, w.Code, w.Header().Get("Location"))
		}
	}

	w := c.do(http.MethodPost, "/article/draft-1/like", nil, true)
	if w.Code != http.StatusNotFound {
		t.Errorf("like on draft: expected 404, got %d", w.Code)
	}
}

func TestAdminPreviewsHiddenArticle(t *testing.T) {
	site := newTestSite(t)
	site.putDraft(t, "draft-1", "Work In Progress")
	c := site.client()
	c.login(t)

	w := c.do(http.MethodGet, "/article/draft-1", nil, false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "template=article.html") {
		t.Fatalf("admin should see the draft, got %d %q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "preview=true") {
		t.Error("draft should render in preview mode")
	}

	w = c.do(http.MethodGet, "/article/1", nil, false)
	if strings.Contains(w.Body.String(), "preview=true") {
		t.Error("published article must not be marked as preview")
	}

	// 预览不开放互动
	if w := c.do(http.MethodPost, "/article/draft-1/like", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("like on previewed draft: expected 404, got %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/article/missing", nil, false); w.Code != http.StatusFound {
		t.Errorf("missing article: expected redirect, got %d", w.Code)
	}
}

func TestLikeToggleIsPerVisitor(t *testing.T) {
	site := newTestSite(t)
	alice := site.client()
	bob := site.client()

	w := alice.do(http.MethodPost, "/article/1/like", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode(t, w)
	if got["likes"] != float64(43) || got["reaction"] != "like" {
		t.Fatalf("unexpected state %v", got)
	}

	got = decode(t, bob.do(http.MethodPost, "/article/1/like", nil, true))
	if got["likes"] != float64(44) {
		t.Errorf("second visitor should add a like, got %v", got["likes"])
	}

	got = decode(t, alice.do(http.MethodPost, "/article/1/like", nil, true))
	if got["likes"] != float64(43) || got["reaction"] != nil {
		t.Errorf("expected alice's like removed, got %v", got)
	}

	got = decode(t, alice.do(http.MethodPost, "/article/1/dislike", nil, true))
	if got["dislikes"] != float64(3) || got["reaction"] != "dislike" {
		t.Errorf("unexpected dislike state %v", got)
	}
}

func TestLikeFormRedirectsBack(t *testing.T) {
	site := newTestSite(t)
	w := site.client().do(http.MethodPost, "/article/1/like", url.Values{}, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/article/1#engagement" {
		t.Errorf("unexpected response %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestRate(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	got := decode(t, c.do(http.MethodPost, "/article/1/rate", url.Values{"stars": {"5"}}, true))
	if got["ratingCount"] != float64(16) || got["userRating"] != float64(5) {
		t.Errorf("unexpected rating state %v", got)
	}

	for _, stars := range []string{"0", "6", "abc"} {
		w := c.do(http.MethodPost, "/article/1/rate", url.Values{"stars": {stars}}, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("stars=%s: expected 400, got %d", stars, w.Code)
		}
	}
}

func TestComment(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	w := c.do(http.MethodPost, "/article/1/comments", url.Values{"text": {"   "}}, false)
	if loc := w.Header().Get("Location"); w.Code != http.StatusFound || loc != "/article/1?error=empty#comments" {
		t.Errorf("empty comment: got %d %q", w.Code, loc)
	}

	long := strings.Repeat("x", services.MaxCommentLength+1)
	w = c.do(http.MethodPost, "/article/1/comments", url.Values{"text": {long}}, false)
	if loc := w.Header().Get("Location"); w.Code != http.StatusFound || loc != "/article/1?error=long#comments" {
		t.Errorf("long comment: got %d %q", w.Code, loc)
	}
	if w := c.do(http.MethodPost, "/article/1/comments", url.Values{"text": {long}}, true); w.Code != http.StatusBadRequest {
		t.Errorf("long comment as JSON: expected 400, got %d", w.Code)
	}

	w = c.do(http.MethodPost, "/article/1/comments", url.Values{"text": {"Lovely read"}}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	got := decode(t, w)
	if got["text"] != "Lovely read" || got["author"] != models.GuestAuthor {
		t.Errorf("unexpected comment %v", got)
	}
	if comments := site.store.CommentsForArticle("1"); len(comments) != 2 || comments[0].Text != "Lovely read" {
		t.Errorf("expected new comment first, got %+v", comments)
	}
}

func TestCommentReaction(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	got := decode(t, c.do(http.MethodPost, "/comment/c1/react", url.Values{"emoji": {"🔥"}}, true))
	if got["selected"] != "🔥" {
		t.Errorf("expected 🔥 selected, got %v", got)
	}
	reactions, _ := got["reactions"].(map[string]any)
	if reactions["🔥"] != float64(1) || reactions["👍"] != float64(5) {
		t.Errorf("unexpected reactions %v", reactions)
	}

	w := c.do(http.MethodPost, "/comment/c1/react", url.Values{"emoji": {"🔥"}}, false)
	if loc := w.Header().Get("Location"); loc != "/article/1#comment-c1" {
		t.Errorf("unexpected redirect %q", loc)
	}

	if w := c.do(http.MethodPost, "/comment/c1/react", url.Values{"emoji": {"🦄"}}, true); w.Code != http.StatusBadRequest {
		t.Errorf("unknown emoji: expected 400, got %d", w.Code)
	}
	if w := c.do(http.MethodPost, "/comment/missing/react", url.Values{"emoji": {"👍"}}, true); w.Code != http.StatusNotFound {
		t.Errorf("unknown comment: expected 404, got %d", w.Code)
	}
}

func TestAdminRequiresLogin(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	w := c.do(http.MethodGet, "/admin", nil, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login?next=%2Fadmin" {
		t.Fatalf("expected login redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = c.do(http.MethodPost, "/admin/login", url.Values{"password": {"wrong"}}, false)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Invalid password. Access denied.") {
		t.Errorf("expected 401 with message, got %d %q", w.Code, w.Body.String())
	}

	w = c.do(http.MethodPost, "/admin/login", url.Values{"password": {testPassword}, "next": {"/admin/articles"}}, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/articles" {
		t.Fatalf("expected redirect to next, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = c.do(http.MethodGet, "/admin", nil, false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "template=admin/dashboard.html") {
		t.Errorf("expected dashboard, got %d %q", w.Code, w.Body.String())
	}

	c.do(http.MethodPost, "/admin/logout", url.Values{}, false)
	if w := c.do(http.MethodGet, "/admin", nil, false); w.Code != http.StatusFound {
		t.Errorf("expected gate after logout, got %d", w.Code)
	}
}

func TestLoginIgnoresExternalNext(t *testing.T) {
	site := newTestSite(t)
	w := site.client().do(http.MethodPost, "/admin/login", url.Values{"password": {testPassword}, "next": {"//evil.example"}}, false)
	if loc := w.Header().Get("Location"); loc != "/admin" {
		t.Errorf("expected /admin, got %q", loc)
	}
}

func TestEditorCreatesArticle(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/new", url.Values{"title": {"Only a title"}}, false)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "error=Title and content are required") {
		t.Fatalf("expected validation error, got %d %q", w.Code, w.Body.String())
	}

	w = c.do(http.MethodPost, "/admin/new", url.Values{
		"title":    {"Fresh Off The Press"},
		"content":  {"First paragraph.\n\nSecond paragraph."},
		"category": {"Science"},
		"status":   {"published"},
	}, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin" {
		t.Fatalf("expected redirect to dashboard, got %d %q", w.Code, w.Header().Get("Location"))
	}

	site.listing.Refresh()
	got := decode(t, c.do(http.MethodGet, "/api/articles", nil, true))
	ids, _ := got["ids"].([]any)
	if len(ids) != 3 {
		t.Fatalf("expected 3 visible articles, got %v", ids)
	}
	articles := site.store.Articles()
	if articles[0].Title != "Fresh Off The Press" || articles[0].Excerpt == "" || articles[0].Author != models.DefaultAuthor {
		t.Errorf("unexpected saved article %+v", articles[0])
	}
	if ids[0] != articles[0].ID {
		t.Errorf("new article should lead the listing, got %v", ids)
	}
}

func TestEditorSchedulesArticle(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/new", url.Values{
		"title":   {"Later"},
		"content": {"Body"},
		"status":  {"scheduled"},
	}, false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing schedule time: expected 400, got %d", w.Code)
	}

	future := time.Now().UTC().Add(48 * time.Hour).Format(handlers.DateTimeLocal)
	w = c.do(http.MethodPost, "/admin/new", url.Values{
		"title":       {"Later"},
		"content":     {"Body"},
		"status":      {"scheduled"},
		"scheduledAt": {future},
	}, false)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d %q", w.Code, w.Body.String())
	}

	site.listing.Refresh()
	for _, a := range site.listing.Visible("") {
		if a.Title == "Later" {
			t.Error("future scheduled article must not be visible")
		}
	}
}

func TestEditorKeepsCounters(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/edit/1", url.Values{
		"title":   {"Renamed"},
		"content": {"New body"},
		"status":  {"published"},
	}, false)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	a, err := site.store.Article("1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "Renamed" || a.Likes != 42 || a.RatingCount != 15 {
		t.Errorf("counters must survive edit, got %+v", a)
	}
}

func TestDeleteArticleCascades(t *testing.T) {
	site := newTestSite(t)
	c := site.client()

	if w := c.do(http.MethodDelete, "/admin/articles/1", nil, true); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", w.Code)
	}

	c.login(t)
	w := c.do(http.MethodDelete, "/admin/articles/1", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode(t, w)
	if got["removedComments"] != float64(1) {
		t.Errorf("expected one comment removed, got %v", got)
	}
	if len(site.store.CommentsForArticle("1")) != 0 {
		t.Error("comments of the deleted article must be gone")
	}

	if w := c.do(http.MethodDelete, "/admin/articles/1", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestDeleteComment(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/comments/c1/delete", url.Values{}, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/comments" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Location"))
	}
	if len(site.store.Comments()) != 0 {
		t.Error("comment should be removed")
	}
	if w := c.do(http.MethodPost, "/admin/comments/c1/delete", url.Values{}, false); w.Code != http.StatusFound {
		t.Errorf("unknown comment should be a no-op redirect, got %d", w.Code)
	}
}

func TestAdviceUnavailableWithoutKey(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/advice", url.Values{"title": {"T"}}, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing content: expected 400, got %d", w.Code)
	}

	got := decode(t, c.do(http.MethodPost, "/admin/advice", url.Values{"title": {"T"}, "content": {"Body"}}, true))
	if got["available"] != false {
		t.Errorf("expected available=false, got %v", got)
	}
}

func TestImportRejectsBadURL(t *testing.T) {
	site := newTestSite(t)
	c := site.client()
	c.login(t)

	w := c.do(http.MethodPost, "/admin/import", url.Values{"url": {"ftp://example.com/feed"}}, false)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "template=admin/articles.html") {
		t.Errorf("expected articles page with 400, got %d %q", w.Code, w.Body.String())
	}
}

func TestFeedAndSitemapOnlyShowVisible(t *testing.T) {
	site := newTestSite(t)
	site.putDraft(t, "secret", "Secret Draft")
	c := site.client()

	feed := c.do(http.MethodGet, "/feed.xml", nil, false)
	if feed.Code != http.StatusOK {
		t.Fatalf("feed: %d", feed.Code)
	}
	body := feed.Body.String()
	if strings.Contains(body, "Secret Draft") {
		t.Error("draft leaked into feed")
	}
	if !strings.Contains(body, "Mindfulness in the Digital Age") || !strings.Contains(body, "https://lumina.test/article/1") {
		t.Error("feed is missing published articles")
	}

	sitemap := c.do(http.MethodGet, "/sitemap.xml", nil, false).Body.String()
	if strings.Contains(sitemap, "/article/secret") {
		t.Error("draft leaked into sitemap")
	}
	if !strings.Contains(sitemap, "https://lumina.test/category/technology") {
		t.Error("sitemap is missing category pages")
	}

	robots := c.do(http.MethodGet, "/robots.txt", nil, false).Body.String()
	if !strings.Contains(robots, "Disallow: /admin/") || !strings.Contains(robots, "Sitemap: https://lumina.test/sitemap.xml") {
		t.Errorf("unexpected robots.txt %q", robots)
	}
}

func TestAPIArticlesByCategory(t *testing.T) {
	site := newTestSite(t)
	got := decode(t, site.client().do(http.MethodGet, "/api/articles?category=lifestyle", nil, true))
	ids, _ := got["ids"].([]any)
	if len(ids) != 1 || ids[0] != "2" {
		t.Errorf("expected only article 2, got %v", ids)
	}
}

// 1x1 PNG
const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAACklEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg=="

func TestCoverImages(t *testing.T) {
	site := newTestSite(t)
	err := site.store.Transaction(context.Background(), func(tx *store.Tx) error {
		tx.PutArticle(models.Article{
			ID:          "pic",
			Title:       "With Upload",
			Content:     "Body",
			CoverImage:  pixelPNG,
			Status:      models.StatusPublished,
			PublishedAt: time.Now().Add(-time.Minute),
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	site.putDraft(t, "hidden", "Hidden")
	c := site.client()

	w := c.do(http.MethodGet, "/cover/pic", nil, false)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/cover/pic", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	site.engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/cover/pic", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	w = httptest.NewRecorder()
	site.engine.ServeHTTP(w, req)
	if w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Errorf("hotlinked cover should get the placeholder, got %q", w.Header().Get("Content-Type"))
	}

	w = c.do(http.MethodGet, "/cover/1", nil, false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://picsum.photos/seed/tech1/1200/600" {
		t.Errorf("linked cover should redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}

	if w := c.do(http.MethodGet, "/cover/hidden", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("draft cover: expected 404, got %d", w.Code)
	}
	c.login(t)
	if w := c.do(http.MethodGet, "/cover/hidden", nil, false); w.Code != http.StatusFound {
		t.Errorf("admin should see draft cover, got %d", w.Code)
	}
}
