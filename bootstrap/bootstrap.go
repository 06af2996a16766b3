package bootstrap

import (
	"vaultshare-backend/internal/config"
	"vaultshare-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the ledger API for serverless deploys. The api handler imports
// this package because it cannot reach internal/ directly. Logs stay JSON so
// the platform's collector can index the trace_id field.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	app, db, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("env", cfg.Env).Str("driver", db.Dialector.Name()).Msg("ledger api ready (serverless)")
	return app, nil
}
