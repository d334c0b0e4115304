package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/internal/passport"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

// ServePassport streams the public passport document for an item UID.
func ServePassport(resolver *passport.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "itemUID")
		if uid == "" {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeNotFound, "passport not found"))
			return
		}

		abs, err := resolver.Resolve(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", passport.ContentType)
		http.ServeFile(w, r, abs)
	}
}
