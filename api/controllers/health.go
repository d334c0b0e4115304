package controllers

import (
	"net/http"

	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	pkgredis "github.com/maisonnoire/trufflehouse-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Maison-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Maison-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok"}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = err.Error()
				healthy = false
			}
		}
		if redisP != nil {
			checks["redis"] = "ok"
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			if logg != nil {
				logg.Warn(r.Context(), "readiness check failed")
			}
			writeJSONStatus(w, http.StatusServiceUnavailable, checks)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	responses.WriteSuccessStatus(w, status, data)
}
