package tenant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lejio/backend-fleet/internal/common"
)

// Handler exposes the tenant signup and lookup endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Signup registers a new rental company.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.RenderError(w, common.ErrValidation("invalid JSON body", nil))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		var details any
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			details = fields
		}
		common.RenderError(w, common.ErrValidation("invalid signup payload", details))
		return
	}

	created, err := h.Svc.Signup(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"tenant":  created,
	})
}

// Get resolves a tenant by its subdomain, taken from the query string or,
// failing that, from the request host.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	subdomain := strings.TrimSpace(r.URL.Query().Get("subdomain"))
	if subdomain == "" {
		subdomain = SubdomainFromRequest(r)
	}
	if subdomain == "" {
		common.RenderError(w, common.ErrValidation("subdomain is required", nil))
		return
	}

	t, err := h.Svc.Lookup(r.Context(), subdomain)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"tenant": t})
}
