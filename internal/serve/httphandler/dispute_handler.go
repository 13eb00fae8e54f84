package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httperror"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httpresponse"
	"github.com/sabimarket/sabimarket-backend/internal/serve/middleware"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type DisputeHandler struct {
	DisputeService *services.DisputeService
}

type resolveDisputeRequest struct {
	Decision         data.DisputeDecision `json:"decision"`
	Resolution       string               `json:"resolution"`
	RefundPercentage *int                 `json:"refund_percentage,omitempty"`
}

func (h DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	disputeID := chi.URLParam(r, "id")

	var req resolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	dispute, err := h.DisputeService.Resolve(ctx, disputeID, userID, services.ResolveDisputeRequest{
		Decision:         req.Decision,
		Resolution:       req.Resolution,
		RefundPercentage: req.RefundPercentage,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Dispute resolved.", dispute)
}
