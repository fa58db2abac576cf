package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"storyboard-server/internal/adapter/repo"
	"storyboard-server/internal/dispatch"
	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
	"storyboard-server/internal/providers/retry"
	"storyboard-server/internal/queue"
	"storyboard-server/internal/refasset"
	"storyboard-server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	fileStore, err := storage.NewFileStore(cfg.StorageBasePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	jobs := repo.NewJobRepository(pool)
	targets := repo.NewTargetRepository(pool)
	assets := repo.NewAssetRepository(pool)
	billing := repo.NewBillingRepository(pool)

	mediaClient := &http.Client{Timeout: cfg.MediaTimeout}
	vendor := gateway.NewClient(gateway.Options{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		ProxyAPIKey:   cfg.ProxyAPIKey,
		ProxyBaseURL:  cfg.ProxyBaseURL,
		TextClient:    &http.Client{Timeout: cfg.TextTimeout},
		MediaClient:   mediaClient,
		Logger:        &logger,
	})

	resolver := refasset.NewResolver(refasset.Options{
		Targets:    targets,
		Storage:    fileStore,
		HTTPClient: mediaClient,
		Logger:     &logger,
	})
	controller := retry.New(retry.Options{BaseInterval: cfg.RetryBaseInterval})
	poller := dispatch.NewPoller(dispatch.PollerOptions{
		Gateway:  vendor,
		Assets:   assets,
		Billing:  billing,
		Storage:  fileStore,
		Interval: cfg.PollInterval,
		Logger:   &logger,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Jobs:     jobs,
		Targets:  targets,
		Assets:   assets,
		Billing:  billing,
		Storage:  fileStore,
		Gateway:  vendor,
		Resolver: resolver,
		Retry:    controller,
		Poller:   poller,
		Defaults: dispatch.Defaults{
			Model:       cfg.DefaultModel,
			AspectRatio: cfg.DefaultAspectRatio,
			TextModel:   cfg.TextModel,
			VideoModel:  cfg.VideoModel,
		},
		HTTPClient: mediaClient,
		Logger:     &logger,
	})

	var wg sync.WaitGroup
	for _, kind := range domain.Kinds() {
		consumer := queue.NewConsumer(queue.ConsumerOptions{
			Redis:   rdb,
			Topic:   kind.Topic(),
			Workers: cfg.QueueWorkers,
			Handler: dispatcher.Handle,
			Logger:  &logger,
		})
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error().Err(err).Str("topic", topic).Msg("worker: consumer stopped")
			}
		}(kind.Topic())
	}

	logger.Info().Int("workers_per_topic", cfg.QueueWorkers).Msg("worker: started")
	wg.Wait()
	logger.Info().Msg("worker: stopped")
}
