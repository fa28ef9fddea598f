package services

import (
	"context"
	"errors"
	"lumina/internal/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sample Wire</title>
  <link>https://example.com</link>
  <description>Sample</description>
  <item>
    <title>Fresh Story</title>
    <link>%s/page/fresh</link>
    <description><![CDATA[<p>First paragraph of the <b>fresh</b> story.</p><p>Second paragraph.</p>]]></description>
    <author>wire@example.com (Ada Writer)</author>
    <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
    <enclosure url="https://cdn.example.com/fresh.jpg" length="1000" type="image/jpeg"/>
  </item>
  <item>
    <title>Mindfulness in the Digital Age</title>
    <link>%s/page/dup</link>
    <description>Already on the site.</description>
  </item>
  <item>
    <title>Third Story</title>
    <link>%s/page/third</link>
    <description><![CDATA[<p>Body with <img src="https://cdn.example.com/inline.png"> image.</p>]]></description>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(strings.ReplaceAll(sampleFeed, "%s", srv.URL)))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedImportCreatesDrafts(t *testing.T) {
	st := newTestStore(t)
	srv := newFeedServer(t)
	importer := NewFeedImporter(st, NewCrawlerService(5*time.Second), 5*time.Second, 50)

	res, err := importer.Import(context.Background(), ImportRequest{URL: srv.URL + "/feed.xml", Category: "Science"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.FeedTitle != "Sample Wire" {
		t.Errorf("unexpected feed title %q", res.FeedTitle)
	}
	if len(res.Created) != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 created and 1 skipped, got %d/%d", len(res.Created), res.Skipped)
	}

	fresh := res.Created[0]
	if fresh.Title != "Fresh Story" {
		t.Fatalf("expected feed order kept, got %q first", fresh.Title)
	}
	if fresh.Status != models.StatusDraft || fresh.Category != "Science" {
		t.Errorf("unexpected status/category %s/%s", fresh.Status, fresh.Category)
	}
	if fresh.Content != "First paragraph of the fresh story.\n\nSecond paragraph." {
		t.Errorf("unexpected content %q", fresh.Content)
	}
	if fresh.CoverImage != "https://cdn.example.com/fresh.jpg" {
		t.Errorf("expected enclosure cover, got %q", fresh.CoverImage)
	}
	if fresh.Author != "Ada Writer" {
		t.Errorf("expected feed author, got %q", fresh.Author)
	}
	if !fresh.PublishedAt.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected published time %v", fresh.PublishedAt)
	}
	if third := res.Created[1]; third.CoverImage != "https://cdn.example.com/inline.png" || third.Author != models.DefaultAuthor {
		t.Errorf("unexpected fallback fields %q / %q", third.CoverImage, third.Author)
	}

	// 草稿不会出现在公开列表
	for _, a := range st.Articles() {
		if a.Title == "Fresh Story" && a.IsVisibleAt(time.Now()) {
			t.Error("imported article must not be visible")
		}
	}
	if got := st.Articles(); len(got) != 4 || got[0].Title != "Fresh Story" {
		t.Errorf("expected imported drafts prepended, got %d articles", len(got))
	}
}

func TestFeedImportSkipsOnSecondRun(t *testing.T) {
	st := newTestStore(t)
	srv := newFeedServer(t)
	importer := NewFeedImporter(st, nil, time.Second*5, 50)

	if _, err := importer.Import(context.Background(), ImportRequest{URL: srv.URL + "/feed.xml", Limit: 1}); err != nil {
		t.Fatal(err)
	}
	res, err := importer.Import(context.Background(), ImportRequest{URL: srv.URL + "/feed.xml", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 0 || res.Skipped != 1 {
		t.Errorf("expected duplicate skipped, got %d created %d skipped", len(res.Created), res.Skipped)
	}
}

func TestFeedImportFullTextFallsBackToFeed(t *testing.T) {
	st := newTestStore(t)
	srv := newFeedServer(t)
	importer := NewFeedImporter(st, NewCrawlerService(5*time.Second), 5*time.Second, 50)

	// 文章页面返回 404，保留订阅源里的正文
	res, err := importer.Import(context.Background(), ImportRequest{URL: srv.URL + "/feed.xml", Limit: 1, FullText: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 1 || !strings.HasPrefix(res.Created[0].Content, "First paragraph") {
		t.Errorf("expected feed content, got %+v", res.Created)
	}
}

func TestFeedImportErrors(t *testing.T) {
	st := newTestStore(t)
	srv := newFeedServer(t)
	importer := NewFeedImporter(st, nil, 5*time.Second, 50)

	for _, raw := range []string{"", "ftp://example.com/feed", "not a url"} {
		if _, err := importer.Import(context.Background(), ImportRequest{URL: raw}); !errors.Is(err, ErrInvalidFeedURL) {
			t.Errorf("%q: expected ErrInvalidFeedURL, got %v", raw, err)
		}
	}
	if _, err := importer.Import(context.Background(), ImportRequest{URL: srv.URL + "/missing.xml"}); err == nil {
		t.Error("expected error for missing feed")
	}
	if len(st.Articles()) != 2 {
		t.Error("failed imports must not write")
	}
}
