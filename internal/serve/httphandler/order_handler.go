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

type OrderHandler struct {
	OrderService *services.OrderService
}

type createOrderRequest struct {
	ServiceID       string            `json:"service_id"`
	Quantity        int               `json:"quantity"`
	DeliveryType    data.DeliveryType `json:"delivery_type"`
	DeliveryFeeKobo int64             `json:"delivery_fee_kobo"`
	PlatformFeeKobo int64             `json:"platform_fee_kobo"`
}

func (h OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	order, err := h.OrderService.CreateOrder(ctx, userID, services.CreateOrderRequest{
		ServiceID:    req.ServiceID,
		Quantity:     req.Quantity,
		DeliveryType: req.DeliveryType,
		DeliveryFee:  req.DeliveryFeeKobo,
		PlatformFee:  req.PlatformFeeKobo,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Order created.", order)
}

func (h OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	orderID := chi.URLParam(r, "id")

	order, err := h.OrderService.PayOrder(ctx, orderID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Order paid.", order)
}

func (h OrderHandler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	orderID := chi.URLParam(r, "id")

	order, err := h.OrderService.MarkShipped(ctx, orderID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Order marked shipped.", order)
}

func (h OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	orderID := chi.URLParam(r, "id")

	order, err := h.OrderService.MarkDelivered(ctx, orderID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Order marked delivered.", order)
}

type confirmDeliveryRequest struct {
	OrderID string `json:"order_id"`
}

func (h OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req confirmDeliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	if req.OrderID == "" {
		httperror.BadRequest("order_id is required.", nil).Render(w)
		return
	}

	order, err := h.OrderService.ConfirmDelivery(ctx, req.OrderID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Delivery confirmed; held funds released.", order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	orderID := chi.URLParam(r, "id")

	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	order, err := h.OrderService.CancelOrder(ctx, orderID, userID, req.Reason)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Order cancellation recorded.", order)
}

func (h OrderHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	orderID := chi.URLParam(r, "id")

	var req openDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	dispute, err := h.OrderService.OpenDispute(ctx, orderID, userID, req.Reason, req.Description, req.EvidenceURLs)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Dispute opened.", dispute)
}
