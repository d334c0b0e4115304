package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/api/validators"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/pagination"
)

// ListAuditEntries returns a cursor-paged view of the audit log.
func ListAuditEntries(recorder *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var filter audit.Filter
		if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid user_id"))
				return
			}
			filter.UserID = &id
		}
		filter.ActionContains = strings.TrimSpace(query.Get("action"))
		filter.TargetType = strings.TrimSpace(query.Get("target_type"))
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status := enums.AuditStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeValidation, "invalid status"))
				return
			}
			filter.Status = status
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, nextCursor, err := recorder.List(r.Context(), filter, limit, query.Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":     entries,
			"next_cursor": nextCursor,
		})
	}
}
