package insurance

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lejio/backend-fleet/internal/common"
)

// Handler exposes the deductible-insurance quote endpoint.
type Handler struct{}

// Quote prices the zero-deductible add-on for a rental period given as
// period_type and period_count query parameters.
func (Handler) Quote(w http.ResponseWriter, r *http.Request) {
	periodType := PeriodType(strings.TrimSpace(r.URL.Query().Get("period_type")))
	countRaw := strings.TrimSpace(r.URL.Query().Get("period_count"))
	count, err := strconv.Atoi(countRaw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "period_count must be an integer", nil)
		return
	}

	quote, err := ComputeQuote(periodType, count)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}
