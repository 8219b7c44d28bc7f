package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"spaceforces-client/internal/api"
	"spaceforces-client/internal/config"
	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/infra/memory"
	pgsource "spaceforces-client/internal/infra/postgres"
	redisinfra "spaceforces-client/internal/infra/redis"
	"spaceforces-client/internal/session"
	"spaceforces-client/internal/statusview"
	transport "spaceforces-client/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the gateway.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var apiClient *api.Client
	var source session.ContentSource
	var submitter session.Submitter
	var participants statusview.ParticipantSource

	switch {
	case cfg.API.BaseURL != "":
		apiClient = api.NewClient(api.Options{
			BaseURL: cfg.API.BaseURL,
			Timeout: config.TTLDuration(cfg.API.Timeout, 15*time.Second),
			Token:   cfg.API.Token,
		})
		source = apiClient
		submitter = apiClient
		participants = apiClient
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		source = pgsource.NewContentSource(pool)
		submitter = memory.NewLocalSubmitter()
	default:
		log.Printf("no api or postgres configured, serving demo contests")
		source = memory.NewStaticSource(sampleContests())
		submitter = memory.NewLocalSubmitter()
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	if redisClient != nil {
		source = redisinfra.NewContentCache(redisClient, source, contentTTL)
	} else {
		source = memory.NewContentCache(source, contentTTL)
	}

	var registry transport.SessionRegistry
	if redisClient != nil {
		registry = redisinfra.NewSessionRegistry(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		registry = memory.NewSessionRegistry()
	}

	handler := transport.NewHandler(transport.Deps{
		Source:           source,
		Submitter:        submitter,
		Participants:     participants,
		Registry:         registry,
		FetchConcurrency: cfg.Content.FetchConcurrency,
	})

	corsOrigins := cfg.Server.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	root := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(handler.Router())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz gateway on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContests provides a minimal demo contest; real deployments point the
// gateway at the spaceforces API or a Postgres content store.
func sampleContests() map[int64]domain.QuizContent {
	return map[int64]domain.QuizContent{
		1: {
			Quiz: domain.Quiz{
				ID:            1,
				Title:         "Solar System Basics",
				Description:   "A quick tour of the neighborhood",
				Difficulty:    "EASY",
				Topic:         "Astronomy",
				Duration:      30,
				StartDateTime: time.Now().Add(-time.Minute),
				Status:        domain.StatusLive,
				Mode:          "PUBLIC",
			},
			Questions: []domain.Question{
				{ID: 1, Text: "Which planet is closest to the Sun?", Points: 10},
				{ID: 2, Text: "Which planet has the most moons?", Points: 20},
			},
			Options: map[int64][]domain.ReviewOption{
				1: {
					{Option: domain.Option{ID: 1, Text: "Mercury"}, Valid: true},
					{Option: domain.Option{ID: 2, Text: "Venus"}},
					{Option: domain.Option{ID: 3, Text: "Mars"}},
				},
				2: {
					{Option: domain.Option{ID: 4, Text: "Jupiter"}},
					{Option: domain.Option{ID: 5, Text: "Saturn"}, Valid: true},
					{Option: domain.Option{ID: 6, Text: "Neptune"}},
				},
			},
		},
	}
}
