package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pleasantpearl/pleasantpearl-backend/api/responses"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
)

const readyTimeout = 5 * time.Second

// HealthLive reports that the process is up.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{
			"status": "live",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady reports whether the datasource is reachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if dbP == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "database not wired"))
			return
		}
		if err := dbP.Ping(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"env":    cfg.App.Env,
		})
	}
}
