package controllers

import (
	"net/http"

	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/api/validators"
	"github.com/maisonnoire/trufflehouse-backend/internal/users"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthLogin exchanges admin credentials for a bearer token.
func AuthLogin(svc *users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := svc.Authenticate(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{AccessToken: token, TokenType: "Bearer"})
	}
}
