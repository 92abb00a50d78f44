package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	rediscache "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type repositories struct {
	quizzes  app.QuizRepository
	attempts app.AttemptRepository
	users    app.UserRepository
	close    func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (or JWT_SECRET) must be set")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	leaderboardTTL := config.TTLDuration(cfg.Redis.TTL, time.Minute)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var (
		quizRepo app.QuizRepository
		boards   app.LeaderboardCache
	)
	if redisClient != nil {
		quizRepo = rediscache.NewQuizCache(redisClient, repos.quizzes, quizTTL)
		boards = rediscache.NewLeaderboardCache(redisClient, leaderboardTTL)
	} else {
		quizRepo = memory.NewQuizCache(repos.quizzes, quizTTL)
		boards = memory.NewLeaderboardCache(leaderboardTTL)
	}

	quizService := app.NewQuizService(quizRepo, repos.attempts, repos.users, boards)
	attemptService := app.NewAttemptService(quizRepo, repos.attempts, repos.users, boards, app.NewLeaderboardFeed(), cfg.RankingPolicy())
	router := transport.NewRouter(quizService, attemptService, transport.RouterConfig{
		Auth:           transport.NewAuthenticator(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so websocket streams are not cut off.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		glog.Infof("starting quiz attempt service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		glog.Info("shutting down server...")
	case <-ctx.Done():
		glog.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		store.Seed(sampleQuizzes()...)
		glog.Warning("postgres url not configured; using in-memory store")
		return repositories{quizzes: store, attempts: store, users: store, close: func() {}}, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return repositories{}, err
	}
	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return repositories{}, err
	}
	store := postgres.NewStore(db)
	return repositories{
		quizzes:  store,
		attempts: store,
		users:    store,
		close:    func() { _ = db.Close() },
	}, nil
}

// sampleQuizzes gives the in-memory mode something to play with.
func sampleQuizzes() []domain.Quiz {
	now := time.Now().UTC()
	return []domain.Quiz{
		{
			ID:         "quiz-1",
			Title:      "Warm-up arithmetic",
			Topic:      "Math",
			Difficulty: domain.DifficultyEasy,
			OwnerID:    "system",
			IsPublic:   true,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Text:   "What is 2 + 2?",
					Type:   domain.QuestionMCQ,
					Points: 1,
					Options: []domain.Option{
						{Text: "3", IsCorrect: false},
						{Text: "4", IsCorrect: true},
						{Text: "5", IsCorrect: false},
					},
				},
				{
					ID:            "q2",
					Text:          "Spell the number 10.",
					Type:          domain.QuestionSingleAnswer,
					Points:        2,
					CorrectAnswer: "ten",
				},
			},
		},
	}
}
