package handler

import (
	"net/http"
	"sync"

	"vaultshare-backend/bootstrap"
	"vaultshare-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

var (
	once    sync.Once
	handler http.Handler
	bootErr error
)

func load() {
	app, err := bootstrap.New()
	if err != nil {
		bootErr = err
		return
	}
	handler = router.Handler(app)
}

// Handler is the serverless entry point. All requests are rewritten here.
// A failed cold start answers 503 in the standard error shape instead of
// crashing the function.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(load)
	if bootErr != nil {
		log.Error().Err(bootErr).Msg("ledger api failed to start")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"Service unavailable","statusCode":503,"details":{}}}`))
		return
	}
	r.RequestURI = r.URL.String()
	handler.ServeHTTP(w, r)
}
