package router

import (
	"errors"
	"net/http"

	authsvc "vaultshare-backend/internal/application/auth"
	invsvc "vaultshare-backend/internal/application/investments"
	lesvc "vaultshare-backend/internal/application/listingevents"
	listsvc "vaultshare-backend/internal/application/listings"
	portsvc "vaultshare-backend/internal/application/portfolio"
	"vaultshare-backend/internal/config"
	"vaultshare-backend/internal/infrastructure/database"
	authhandler "vaultshare-backend/internal/interfaces/handlers/auth"
	healthhandler "vaultshare-backend/internal/interfaces/handlers/health"
	invhandler "vaultshare-backend/internal/interfaces/handlers/investments"
	lehandler "vaultshare-backend/internal/interfaces/handlers/listingevents"
	listhandler "vaultshare-backend/internal/interfaces/handlers/listings"
	porthandler "vaultshare-backend/internal/interfaces/handlers/portfolio"
	"vaultshare-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
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

// CreateApp wires config, store, Redis and routes into a Fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errors.New("no database URL configured for env " + cfg.Env)
	}
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

	return NewApp(cfg, db, rdb), db, rdb, nil
}

// NewApp mounts middleware and every route on already-open clients.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Session(rdb, cfg.SessionSecret))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		Ledger:         db,
		PingURLs:       cfg.HealthPingURLs,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	ah := &authhandler.Handlers{
		DB:         db,
		UserFinder: &authsvc.GormUserFinder{DB: db},
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", ah.Register)
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	// Listings: reads are public, writes need a session.
	lh := &listhandler.Handlers{Service: &listsvc.Service{DB: db}}
	leh := &lehandler.Handlers{Service: &lesvc.Service{DB: db}}
	lg := app.Group("/api/v1/listings")
	lg.Get("/", lh.ListListings)
	lg.Get("/:listing_id", lh.GetListing)
	lg.Get("/:listing_id/events", middleware.RequireAuth(), leh.ListingEvents)
	lg.Post("/", middleware.RequireAuth(), lh.CreateListing)
	lg.Patch("/:listing_id", middleware.RequireAuth(), lh.EditListing)
	lg.Post("/:listing_id/publish", middleware.RequireAuth(), lh.Publish)
	lg.Post("/:listing_id/unpublish", middleware.RequireAuth(), lh.Unpublish)
	lg.Post("/:listing_id/close", middleware.RequireAuth(), lh.Close)
	lg.Delete("/:listing_id", middleware.RequireAuth(), lh.DeleteListing)

	ih := &invhandler.Handlers{Service: &invsvc.Service{
		DB:             db,
		MaxRetries:     cfg.AdmissionMaxRetries,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}}
	ig := app.Group("/api/v1/investments", middleware.RequireAuth())
	ig.Post("/", ih.Admit)
	ig.Get("/", ih.ListMine)

	ph := &porthandler.Handlers{Service: &portsvc.Service{DB: db}}
	app.Get("/api/v1/portfolio", middleware.RequireAuth(), ph.GetPortfolio)

	log.Info().Str("env", cfg.Env).Str("driver", db.Dialector.Name()).Msg("routes mounted")
	return app
}

// Handler adapts the app to net/http for the serverless entry point.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
