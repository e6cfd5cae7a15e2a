package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/access"
	"github.com/opinionex/answer-engine/internal/config"
	"github.com/opinionex/answer-engine/internal/engine"
	"github.com/opinionex/answer-engine/internal/metrics"
	"github.com/opinionex/answer-engine/internal/service"
	"github.com/opinionex/answer-engine/internal/store"
	"github.com/opinionex/answer-engine/internal/token"
)

func main() {
	cfg, err := config.Load(os.Getenv("OPX_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Store.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Store.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Store.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Store.RedisURL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Store.CacheTTL.Duration)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("no database configured, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Capability oracle ---
	oracle := access.NewStaticOracle()
	for _, m := range cfg.Access.Moderators {
		oracle.Grant(m, access.Moderator)
	}
	for _, a := range cfg.Access.Admins {
		oracle.Grant(a, access.Admin)
	}

	// --- Token custody ledger ---
	bank := token.NewBank()

	// --- Engine ---
	eng, err := engine.New(engine.Config{
		QuestionCreationFee:   decimal.NewFromInt(cfg.Market.QuestionCreationFee),
		AnswerProposalStake:   decimal.NewFromInt(cfg.Market.AnswerProposalStake),
		PlatformFeeBps:        cfg.Market.PlatformFeeBps,
		CreatorFeeBps:         cfg.Market.CreatorFeeBps,
		MaxAnswersPerQuestion: cfg.Market.MaxAnswersPerQuestion,
		Treasury:              cfg.Market.Treasury,
	}, bank, oracle)
	if err != nil {
		slog.Error("invalid market configuration", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := service.NewWSHub()
	go wsHub.Run()

	// --- Service ---
	svc := service.NewService(eng, st, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"answer-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade updates.
		r.Get("/ws", wsHub.HandleWS)

		// Question registry.
		r.Post("/questions", svc.CreateQuestion)
		r.Get("/questions", svc.ListQuestions)
		r.Get("/questions/{questionID}", svc.GetQuestion)
		r.Get("/questions/{questionID}/answers", svc.ListAnswers)
		r.Get("/questions/{questionID}/leader", svc.GetLeader)

		// Answer market.
		r.Post("/answers", svc.ProposeAnswer)
		r.Get("/answers/{answerID}", svc.GetAnswer)
		r.Get("/answers/{answerID}/price", svc.GetPrice)
		r.Get("/answers/{answerID}/holders", svc.GetHolders)
		r.Get("/answers/{answerID}/history", svc.GetAnswerHistory)
		r.Get("/answers/{answerID}/positions/{holder}", svc.GetPosition)

		// Trade execution.
		r.Post("/trades/buy", svc.Buy)
		r.Post("/trades/sell", svc.Sell)
		r.Get("/trades/{trader}", svc.GetTraderHistory)

		// Creator fees.
		r.Post("/fees/claim", svc.ClaimFees)
		r.Get("/fees/{account}", svc.GetPendingFees)

		// Event feed for indexers.
		r.Get("/events", svc.GetEvents)

		// Moderation.
		r.Route("/mod", func(r chi.Router) {
			r.Post("/answers/{answerID}/flag", svc.FlagAnswer)
			r.Post("/answers/{answerID}/unflag", svc.UnflagAnswer)
			r.Post("/answers/{answerID}/deactivate", svc.DeactivateAnswer)
			r.Post("/answers/{answerID}/reactivate", svc.ReactivateAnswer)
			r.Post("/questions/{questionID}/deactivate", svc.DeactivateQuestion)
			r.Post("/questions/{questionID}/reactivate", svc.ReactivateQuestion)
		})

		// Admin.
		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", svc.GetConfig)
			r.Post("/fees", svc.SetTradingFees)
			r.Post("/creation-fee", svc.SetCreationFee)
			r.Post("/proposal-stake", svc.SetProposalStake)
			r.Post("/max-answers", svc.SetMaxAnswers)
			r.Post("/treasury", svc.SetTreasury)
			r.Post("/pause", svc.Pause)
			r.Post("/unpause", svc.Unpause)
			r.Post("/emergency-withdraw", svc.EmergencyWithdraw)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("answer-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down answer-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("answer-engine stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
