package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/keypool"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/providers/comic"
	"server/internal/providers/music"
	"server/internal/providers/story"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	dreams := repo.NewDreamRepository(runner)
	hub := notify.NewHub(logger)

	// Providers run without credentials where they can: music degrades to
	// simulation, the story client reports a configuration error.
	var groqKeys *keypool.Pool
	if len(cfg.GroqAPIKeys) > 0 {
		groqKeys, err = keypool.NewPool("groq", cfg.GroqAPIKeys, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("groq key pool")
		}
	} else {
		logger.Warn().Msg("no groq api keys configured, story generation disabled")
	}
	var sunoKeys *keypool.Pool
	if len(cfg.SunoAPIKeys) > 0 {
		sunoKeys, err = keypool.NewPool("suno", cfg.SunoAPIKeys, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("suno key pool")
		}
	} else {
		logger.Warn().Msg("no suno api keys configured, music generation runs simulated")
	}

	storyClient := story.NewClient(story.Options{
		Keys:    groqKeys,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
		Logger:  &logger,
	})
	musicClient := music.NewClient(music.Options{
		Keys:        sunoKeys,
		BaseURL:     cfg.SunoBaseURL,
		Model:       cfg.SunoModel,
		CallbackURL: cfg.CallbackURL(),
		Logger:      &logger,
	})
	comicClient := comic.NewClient(comic.Options{
		BaseURL: cfg.ComicServiceURL,
		Logger:  &logger,
	})

	orch := orchestrator.New(ctx, orchestrator.Options{
		Repo:   dreams,
		Hub:    hub,
		Story:  storyClient,
		Music:  musicClient,
		Comic:  comicClient,
		Logger: logger,
		Poll: orchestrator.PollConfig{
			InitialDelay: cfg.MusicPollInitialDelay,
			Interval:     cfg.MusicPollInterval,
			MaxAttempts:  cfg.MusicPollMaxAttempts,
		},
	})

	app := handlers.NewApp(dreams, orch, hub, logger)
	router := httpapi.NewRouter(httpapi.Options{
		App:             app,
		Logger:          logger,
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server terminated with error")
	}

	// Let in-flight generation tasks settle before the pool closes.
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-waitCtx.Done():
		logger.Warn().Msg("timed out waiting for generation tasks")
	}
	hub.Close()
	logger.Info().Msg("server stopped")
}
