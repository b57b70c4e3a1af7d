package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"readhub/internal/auth"
	"readhub/internal/catalog"
	"readhub/internal/directory"
	"readhub/internal/feed"
	"readhub/internal/friends"
	"readhub/internal/lists"
	"readhub/internal/sessions"
	"readhub/internal/shelf"
	"readhub/internal/stats"
	"readhub/pkg/database"
	"readhub/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbCfg := database.DefaultConfig()
	if err := database.EnsureDataDir(dbCfg); err != nil {
		logger.Fatal("prepare data dir", zap.Error(err))
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "db": "ok"})
	})

	catalogCfg := utils.LoadCatalogConfig()
	catalogGW := catalog.NewHTTPGateway(catalogCfg.BaseURL, catalogCfg.Timeout, logger)
	directoryGW := directory.NewRepo(db)

	authCfg := utils.LoadAuthConfig()
	tokens := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokens, logger)
	authHandler.RegisterRoutes(router.Group("/auth"))

	protected := router.Group("/api")
	protected.Use(auth.AuthMiddleware(tokens, authRepo))

	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{"id": claims.UserID, "username": claims.Username})
	})

	shelfRepo := shelf.NewRepo(db)
	shelfHandler := shelf.NewHandler(shelfRepo, catalogGW, logger)
	shelfHandler.RegisterRoutes(protected)

	sessionRepo := sessions.NewRepo(db)
	sessionSvc := sessions.NewService(db, logger)
	sessionHandler := sessions.NewHandler(sessionRepo, sessionSvc, logger)
	sessionHandler.RegisterRoutes(protected)

	listRepo := lists.NewRepo(db)
	listHandler := lists.NewHandler(listRepo, catalogGW, logger)
	listHandler.RegisterRoutes(protected)

	friendRepo := friends.NewRepo(db)
	friendHandler := friends.NewHandler(friendRepo, directoryGW)
	friendHandler.RegisterRoutes(protected)

	statsSvc := stats.NewService(shelfRepo, sessionRepo, catalogGW, logger)
	statsHandler := stats.NewHandler(statsSvc, logger)
	statsHandler.RegisterRoutes(protected)

	feedCfg := utils.LoadFeedConfig()
	feedSvc := feed.NewService(friendRepo, sessionRepo, listRepo, shelfRepo, catalogGW, directoryGW, feedCfg, logger)
	feedHandler := feed.NewHandler(feedSvc, logger)
	feedHandler.RegisterRoutes(protected)

	serverCfg := utils.LoadServerConfig()
	httpSrv := &http.Server{
		Addr:    serverCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http server listening", zap.String("addr", serverCfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
}
