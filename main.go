package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	apirest "github.com/gamelive/server/api/rest"
	"github.com/gamelive/server/assets"
	"github.com/gamelive/server/cache"
	"github.com/gamelive/server/config"
	dbadapter "github.com/gamelive/server/db"
	"github.com/gamelive/server/game/character"
	"github.com/gamelive/server/game/quest"
	mw "github.com/gamelive/server/middleware"
	"github.com/gamelive/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.DevAuth {
		logger.Warn("security.dev_auth is enabled; do not run this in production")
	}
	if cfg.Security.BotToken == "" {
		logger.Warn("security.bot_token is not set; Telegram sign-in will fail")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Asset catalog ----
	catalog := assets.Load(cfg.Assets.CatalogPath, logger)

	// ---- Services ----
	charSvc := character.NewService(db, catalog, logger)
	questSvc := quest.NewService(db, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	charH := apirest.NewCharacterHandler(charSvc)
	questH := apirest.NewQuestHandler(questSvc)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/telegram", authH.Telegram)
		authG.POST("/dev", authH.Dev)
		authG.POST("/logout", authH.Logout)

		auth := mw.Auth(cfg.Security, c)
		api.GET("/character", auth, charH.Get)
		api.POST("/character", auth, charH.Save)

		questsG := api.Group("/quests")
		questsG.Use(auth)
		questsG.GET("", questH.List)
		questsG.POST("", questH.Create)
		questsG.PATCH("/:id", questH.Patch)
		questsG.DELETE("/:id", questH.Delete)
		questsG.POST("/:id/complete", questH.Complete)
		questsG.POST("/:id/steps", questH.AddStep)

		api.PATCH("/steps/:id", auth, questH.PatchStep)
		api.DELETE("/steps/:id", auth, questH.DeleteStep)
	}

	// ---- Web client static files ----
	// Serves the Telegram WebApp shell. The NoRoute fallback returns
	// index.html for client-side routes; real files under the dir win.
	if cfg.Server.StaticDir != "" {
		staticDir := cfg.Server.StaticDir
		r.Static("/assets", filepath.Join(staticDir, "assets"))
		r.StaticFile("/", filepath.Join(staticDir, "index.html"))
		r.NoRoute(func(ctx *gin.Context) {
			if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
				ctx.JSON(404, gin.H{"code": "not_found", "message": "Not found"})
				return
			}
			path := filepath.Join(staticDir, filepath.Clean(ctx.Request.URL.Path))
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				ctx.File(path)
				return
			}
			ctx.File(filepath.Join(staticDir, "index.html"))
		})
		logger.Info("Serving web client", zap.String("dir", staticDir))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
