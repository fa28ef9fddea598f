package main

import (
	"context"
	"log"
	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/handlers"
	"lumina/internal/router"
	"lumina/internal/services"
	"lumina/internal/store"
	"lumina/internal/utils"
	"lumina/web"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load config (.env < config.yaml < env vars)
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db.Init(cfg.Database.URL)

	// 内存快照 + 持久化
	st := store.New(db.NewBlobStore(db.DB))
	if err := st.Load(ctx); err != nil {
		log.Fatalf("Failed to load content store: %v", err)
	}

	utils.InitCache(cfg.Cache.Size, cfg.CacheTTL())

	// Services
	listing := services.NewListingService(st, cfg.RefreshInterval())
	engagement := services.NewEngagementService(st)
	advice := services.NewAdviceService(cfg.Advice.Endpoint, cfg.Advice.Model, cfg.Advice.APIKey, cfg.AdviceTimeout())
	crawler := services.NewCrawlerService(cfg.ImportTimeout())
	importer := services.NewFeedImporter(st, crawler, cfg.ImportTimeout(), cfg.Import.MaxItems)

	// Initialize Gin
	r := gin.Default()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Setup Sessions
	secret := cfg.Session.Secret
	if secret == "" {
		log.Println("session.secret not set, using development secret")
		secret = "lumina_dev_secret_change_me"
	}
	sessionStore := cookie.NewStore([]byte(secret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   0, // 浏览器会话结束即失效
		HttpOnly: true,
		Secure:   cfg.Server.Mode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.Session.Name, sessionStore))

	// Templates & static assets are embedded in the binary
	renderer, err := web.LoadTemplates(cfg.Server.SiteName)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	r.HTMLRender = renderer
	r.StaticFS("/static", web.Static())

	router.RegisterRoutes(r, router.Handlers{
		Public:     handlers.NewPublicHandler(st, listing, cfg.ClientPollInterval()),
		Engagement: handlers.NewEngagementHandler(engagement),
		Auth:       handlers.NewAuthHandler(cfg.Admin.Password, cfg.Admin.PasswordHash),
		Admin:      handlers.NewAdminHandler(st, advice, importer, cfg.AdviceTimeout()),
		Editor:     handlers.NewEditorHandler(st, cfg.AdviceEnabled(), cfg.Upload.MaxImageBytes, cfg.Location()),
		SEO:        handlers.NewSEOHandler(listing, cfg.Server.SiteURL, cfg.Server.SiteName),
		Image:      handlers.NewImageHandler(st),
	})

	// 定时发布的文章由后台 worker 到点放出
	listing.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("%s server starting on :%s", cfg.Server.SiteName, cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
