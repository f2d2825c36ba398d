package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/config"
	"edulearn-engine/internal/domain"
	"edulearn-engine/internal/infra/memory"
	pg "edulearn-engine/internal/infra/postgres"
	redisinfra "edulearn-engine/internal/infra/redis"
	transport "edulearn-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progression engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		log.Printf("config %s not found, using built-in defaults", configPath)
		cfg = config.Default()
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

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "insecure-dev-secret"
		log.Printf("auth.jwt_secret not configured, using the development secret")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	// Durable stores come from Postgres when configured; otherwise everything
	// runs in-process with seeded sample data.
	var (
		users    app.UserStore
		ledger   app.LedgerStore
		claims   app.ClaimStore
		progress app.ProgressStore
		loader   memory.ContentLoader
	)
	if bunDB != nil {
		users = pg.NewUserStore(bunDB)
		ledger = pg.NewLedgerStore(bunDB)
		claims = pg.NewClaimStore(bunDB)
		progress = pg.NewProgressStore(bunDB)
		loader = pg.NewContentLoader(pool)
	} else {
		memUsers := memory.NewUserStore()
		seedSampleUsers(ctx, memUsers)
		users = memUsers
		ledger = memory.NewLedgerStore()
		claims = memory.NewClaimStore()
		progress = memory.NewProgressStore()
		loader = memory.NewStaticContentLoader(sampleQuizzes(), sampleLessons())
	}

	// The daily-claim gate prefers Redis SETNX over the Postgres insert when
	// both are available.
	if redisClient != nil {
		claims = redisinfra.NewClaimStore(redisClient)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var content interface {
		app.QuizRepository
		app.LessonRepository
	}
	if redisClient != nil {
		content = redisinfra.NewContentRepository(redisClient, loader, quizTTL)
	} else {
		content = memory.NewContentRepository(loader, quizTTL)
	}

	policy := app.Policy{
		LessonXP:          cfg.Progression.LessonXP,
		DailyChallengeXP:  cfg.Progression.DailyChallengeXP,
		StreakBonusPerDay: cfg.Progression.StreakBonusPerDay,
		MaxStreakBonus:    cfg.Progression.MaxStreakBonus,
		Curve:             cfg.Progression.LevelCurve,
	}
	loc := cfg.Location()

	progression := app.NewProgressionService(users, ledger, claims, progress, content, policy, loc)
	attempts := app.NewAttemptService(content, memory.NewAttemptStore(), users, progress, progression)
	leaderboard := app.NewLeaderboardService(users, ledger, policy.Curve, loc)

	var lbCache *redisinfra.LeaderboardCache
	if redisClient != nil {
		lbTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 5*time.Second)
		lbCache = redisinfra.NewLeaderboardCache(redisClient, app.RankingSourceFunc(leaderboard.ComputeRows), lbTTL)
		leaderboard.SetSource(lbCache)
	}

	progression.SetGrantListener(func() {
		if lbCache != nil {
			lbCache.Invalidate(context.Background())
		}
		leaderboard.Broadcast(context.Background())
	})

	if sweep := config.TTLDuration(cfg.Quiz.SweepInterval, 0); sweep > 0 {
		go func() {
			ticker := time.NewTicker(sweep)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := attempts.ExpireDue(ctx); n > 0 {
						log.Printf("deadline sweep finalized %d attempts", n)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	handler := transport.NewHandler(progression, attempts, leaderboard)
	wsHandler := transport.NewWSHandler(leaderboard)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(handler, wsHandler, jwtSecret),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting edulearn engine on :%s", finalPort)
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

func seedSampleUsers(ctx context.Context, users *memory.UserStore) {
	for _, user := range []domain.User{
		{ID: "demo-alice", DisplayName: "Alice", IsActive: true},
		{ID: "demo-bob", DisplayName: "Bob", IsActive: true},
	} {
		if err := users.Save(ctx, user); err != nil {
			log.Printf("seed user %s: %v", user.ID, err)
		}
	}
}

// sampleLessons and sampleQuizzes provide a minimal catalog for running
// without Postgres; production content lives in the lessons/quizzes tables.
func sampleLessons() map[string]domain.Lesson {
	return map[string]domain.Lesson{
		"lesson-1": {ID: "lesson-1", ModuleID: "module-1", Title: "Greetings", XPReward: 50, OrderIndex: 1, IsActive: true},
		"lesson-2": {ID: "lesson-2", ModuleID: "module-1", Title: "Numbers", XPReward: 50, OrderIndex: 2, IsActive: true},
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:           "quiz-1",
			LessonID:     "lesson-1",
			Title:        "Greetings Quiz",
			TimeLimitSec: 300,
			PassingScore: 70,
			XPReward:     100,
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "Which word is a greeting?",
					Options:      []string{"Hola", "Adios", "Gracias"},
					CorrectIndex: 0,
					Explanation:  "Hola means hello.",
				},
				{
					ID:           "q2",
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
				},
			},
		},
	}
}
