package app

import (
	"coopvote-backend/internal/audit"
	"coopvote-backend/internal/config"
	"coopvote-backend/internal/database"
	"coopvote-backend/internal/health"
	"coopvote-backend/internal/ledger"
	"coopvote-backend/internal/members"
	"coopvote-backend/internal/middleware"
	"coopvote-backend/internal/receipt"
	"coopvote-backend/internal/results"
	"coopvote-backend/internal/voting"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all middleware and routes. The DB and
// Redis client are returned so the entrypoint can verify connectivity before
// listening.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opt)

	// Ops endpoints (no session)
	healthHandlers := &health.Handlers{DB: &gormDBPinger{db: db}, Rdb: rdb}
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Voting flow
	store := &voting.Store{Rdb: rdb}
	votingHandlers := &voting.Handlers{
		Members:  &members.Service{DB: db},
		Ledger:   &ledger.Service{DB: db},
		Ballots:  &voting.BallotService{DB: db},
		Receipts: &receipt.Renderer{CoopName: cfg.CoopName},
		Audit:    &audit.Recorder{DB: db},
		Store:    store,
	}
	votingGroup := app.Group("/api/v1/voting", voting.SessionMiddleware(store))
	votingGroup.Get("/branches", votingHandlers.Branches)
	votingGroup.Post("/select-branch", votingHandlers.SelectBranch)
	votingGroup.Post("/search-member", votingHandlers.SearchMember)
	votingGroup.Post("/select-member", votingHandlers.SelectMember)
	votingGroup.Post("/verify-identity", votingHandlers.VerifyIdentity)
	votingGroup.Post("/update-info", votingHandlers.UpdateInfo)
	votingGroup.Get("/ballot", votingHandlers.Ballot)
	votingGroup.Post("/submit-votes", votingHandlers.SubmitVotes)
	votingGroup.Get("/confirmation", votingHandlers.Confirmation)
	votingGroup.Get("/receipt", votingHandlers.DownloadReceipt)
	votingGroup.Get("/already-voted", votingHandlers.AlreadyVoted)
	votingGroup.Get("/not-qualified", votingHandlers.NotQualified)

	// Results, gated by the admin key
	resultsHandlers := &results.Handlers{Service: &results.Service{DB: db}}
	resultsGroup := app.Group("/api/v1/results", middleware.RequireAdminKey(cfg.ResultsAdminKeyHash))
	resultsGroup.Get("/tally", resultsHandlers.Tally)

	return app, db, rdb, nil
}
