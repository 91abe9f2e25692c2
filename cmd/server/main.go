package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/cas"
	"github.com/tigerpop/marketplace/internal/config"
	"github.com/tigerpop/marketplace/internal/database"
	"github.com/tigerpop/marketplace/internal/handler"
	"github.com/tigerpop/marketplace/internal/mailer"
	"github.com/tigerpop/marketplace/internal/middleware"
	"github.com/tigerpop/marketplace/internal/queue"
	"github.com/tigerpop/marketplace/internal/repository"
	"github.com/tigerpop/marketplace/internal/router"
	"github.com/tigerpop/marketplace/internal/service"
	"github.com/tigerpop/marketplace/internal/storage"
	"github.com/tigerpop/marketplace/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		utils.Fatal("database open failed", map[string]any{"error": err.Error()})
	}
	defer db.Close()

	// Redis backs the response cache and the rate limiter; both degrade
	// to no-ops when it is absent.
	rdb := config.NewRedisClient()
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	images, err := storage.NewImageStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioUseSSL, cfg.MinioPublicURL)
	cancel()
	if err != nil {
		utils.Fatal("image store init failed", map[string]any{"error": err.Error()})
	}

	users := repository.NewUserRepo(db, cfg.EmailDomain)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	bids := repository.NewBidRepo(db)
	hearts := repository.NewHeartRepo(db)

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	notifier := service.NewNotifier(cfg.AMQPURL, mail)

	// The consumer drains the notification queue into SMTP.  It
	// reconnects on its own; a dead broker only delays mail.
	go func() {
		if err := queue.StartNotificationConsumer(cfg.AMQPURL, mail); err != nil {
			utils.Error("notification consumer stopped", map[string]any{"error": err.Error()})
		}
	}()

	casClient := cas.New(cfg.CASBaseURL)

	authH := handler.NewAuthHandler(cfg, users, tokens, casClient)
	listingH := handler.NewListingHandler(listings, users, notifier)
	bidH := handler.NewBidHandler(bids, users, notifier)
	heartH := handler.NewHeartHandler(cfg, hearts, listings, users, notifier)
	uploadH := handler.NewUploadHandler(images)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(rateCfg, rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterBrowse(e, listingH, heartH, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterListings(e, listingH, cfg.JWTSecret)
	router.RegisterAuction(e, bidH, cfg.JWTSecret)
	router.RegisterHearts(e, heartH, cfg.JWTSecret)
	router.RegisterUploads(e, uploadH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	utils.Info("listening", map[string]any{"addr": addr, "env": cfg.Env})

	if err := e.Start(addr); err != nil {
		utils.Fatal("server stopped", map[string]any{"error": err.Error()})
	}
}
