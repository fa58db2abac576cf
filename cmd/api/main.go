package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storyboard-server/internal/adapter/repo"
	"storyboard-server/internal/http/handlers"
	httpapi "storyboard-server/internal/http/httpapi"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect redis")
	}
	defer rdb.Close()

	jobs := repo.NewJobRepository(dbpool)
	publisher := queue.NewPublisher(queue.PublisherOptions{Redis: rdb, Logger: &logger})

	app := handlers.NewApp(jobs, publisher, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		StaticDir:           cfg.StorageBasePath,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		SubmitRatePerMinute: cfg.SubmitRatePerMinute,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
