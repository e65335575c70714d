package settlement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lejio/backend-fleet/internal/common"
)

// Handler exposes the settlement invoice endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createInvoiceRequest struct {
	BookingID  string     `json:"bookingId" validate:"required,uuid"`
	Settlement Settlement `json:"settlement" validate:"required"`
}

// CreateInvoice builds the close-out invoice for a booking owned by the
// authenticated lessor.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	rawUserID, ok := common.UserID(r.Context())
	if !ok {
		common.RenderError(w, common.ErrUnauthorized(""))
		return
	}
	lessorID, err := uuid.Parse(rawUserID)
	if err != nil {
		common.RenderError(w, common.ErrUnauthorized("invalid subject"))
		return
	}

	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RenderError(w, common.ErrValidation("invalid JSON body", nil))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrValidation("invalid settlement payload", validationDetails(err)))
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		common.RenderError(w, common.ErrValidation("bookingId must be a UUID", nil))
		return
	}

	invoice, err := h.Svc.BuildInvoice(r.Context(), lessorID, bookingID, req.Settlement)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"invoice": invoice,
	})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
