package payout

import (
	"net/http"
	"time"

	"github.com/lejio/backend-fleet/internal/common"
)

// Handler exposes the cron endpoint that triggers the fleet settlement batch.
// The router applies the cron-secret guard before this handler runs.
type Handler struct {
	Svc *Service
}

// Run executes the batch for the previous calendar month.
func (h Handler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Svc.Run(r.Context(), time.Now().UTC())
	if err != nil {
		common.JSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"settlementMonth":    summary.SettlementMonth,
		"processed":          summary.Processed,
		"settlementsCreated": summary.SettlementsCreated,
		"alreadyProcessed":   summary.AlreadyProcessed,
		"noRevenue":          summary.NoRevenue,
		"errors":             summary.Errors,
	})
}
