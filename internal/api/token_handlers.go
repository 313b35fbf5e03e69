package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shehryarbajwa/importbridge/internal/auth"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

// TokenHandler mints importer tokens for the raw-data pages
type TokenHandler struct {
	minter *auth.Minter
}

// NewTokenHandler creates a new token HTTP handler
func NewTokenHandler(minter *auth.Minter) *TokenHandler {
	return &TokenHandler{
		minter: minter,
	}
}

// CreateToken handles POST /v1/tokens
func (h *TokenHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var form models.RawDataForm

	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.minter.Mint(form)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "invalid raw data form",
				"fields": verr.Fields,
			})
		case errors.Is(err, auth.ErrNoSecret):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
