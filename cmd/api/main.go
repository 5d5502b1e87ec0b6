package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/bot"
	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/handlers"
	"miniapp-games/internal/logger"
	"miniapp-games/internal/middleware"
	"miniapp-games/internal/services"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.Env)
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	tables, err := config.LoadTables(cfg.GameTablesPath)
	if err != nil {
		log.Fatalf("Failed to load game tables: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store     services.AccountStore
		users     handlers.UserStore
		directory bot.Directory
		limiter   middleware.RateLimiter
	)
	redisService, err := services.NewRedisService(ctx, cfg)
	switch {
	case err == nil:
		defer redisService.Close()
		store, users, directory, limiter = redisService, redisService, redisService, redisService
	case cfg.IsProduction():
		log.Fatalf("Failed to connect to Redis: %v", err)
	default:
		log.WithError(err).Warn("Redis unavailable, accounts are kept in memory only")
		store = services.NewMemoryStore()
	}

	events := services.NewEventBus(64, log)
	outcomes := services.NewOutcomeGenerator(services.DefaultSource(), tables.Crash.Bands)
	gameEngine := services.NewGameEngine(store, tables, outcomes, events, clock.New(), log)
	defer gameEngine.Shutdown()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gameEngine.EvictIdle(cfg.SessionIdleTTL)
			}
		}
	}()

	var paymentBot *bot.Bot
	if cfg.PaymentsEnabled {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatalf("Failed to create bot API: %v", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := api.GetUpdatesChan(u)
		go func() {
			<-ctx.Done()
			api.StopReceivingUpdates()
		}()
		paymentBot = bot.NewBot(api, gameEngine, directory, bot.Options{
			AdminUsername: cfg.AdminUsername,
			WebAppURL:     cfg.WebAppURL,
		}, log)
		go paymentBot.Run(ctx, updates)
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handlers.NewAuthHandler(users, jwtService, cfg.BotToken, cfg.TokenTTL, log)
	userHandler := handlers.NewUserHandler(users, gameEngine, log)
	gameHandler := handlers.NewGameHandler(gameEngine, log)
	rewardsHandler := handlers.NewRewardsHandler(gameEngine, log)
	wsHandler := handlers.NewWebSocketHandler(gameEngine, events, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/telegram", authHandler.Authenticate)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService, users, log))
	if limiter != nil {
		protected.Use(middleware.RateLimitMiddleware(limiter, log))
	}
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)
		protected.POST("/bonus/daily", userHandler.ClaimDailyBonus)
		protected.GET("/history", userHandler.GetHistory)
		protected.GET("/balance", gameHandler.GetBalance)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", userHandler.GetTasks)
			tasks.POST("/:id/claim", userHandler.ClaimTask)
		}

		mines := protected.Group("/mines")
		{
			mines.GET("", gameHandler.GetMinesState)
			mines.POST("/start", gameHandler.StartMines)
			mines.POST("/reveal", gameHandler.RevealMine)
			mines.POST("/cashout", gameHandler.CashoutMines)
		}

		crash := protected.Group("/crash")
		{
			crash.GET("", gameHandler.GetCrashState)
			crash.POST("/bet", gameHandler.PlaceCrashBet)
			crash.POST("/cashout", gameHandler.CashoutCrash)
		}

		drops := protected.Group("/drops")
		{
			drops.GET("", rewardsHandler.GetPendingDrop)
			drops.POST("/:id/keep", rewardsHandler.KeepDrop)
			drops.POST("/:id/sell", rewardsHandler.SellDrop)
			drops.POST("/:id/dismiss", rewardsHandler.DismissDrop)
		}

		inventory := protected.Group("/inventory")
		{
			inventory.GET("", rewardsHandler.GetInventory)
			inventory.POST("/:id/sell", rewardsHandler.SellGift)
		}

		if paymentBot != nil {
			protected.POST("/topup/invoice", handlers.NewTopUpHandler(paymentBot, log).CreateInvoice)
		}

		cases := protected.Group("/cases")
		{
			cases.GET("", rewardsHandler.ListCases)
			cases.POST("/open", rewardsHandler.OpenCase)
			cases.POST("/prizes/:id/claim", rewardsHandler.ClaimCasePrize)
			cases.POST("/prizes/:id/dismiss", rewardsHandler.DismissCasePrize)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"user_id": c.GetInt64("user_id"),
		}).Debug("Request")
	}
}
