package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httperror"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httpresponse"
	"github.com/sabimarket/sabimarket-backend/internal/serve/middleware"
	"github.com/sabimarket/sabimarket-backend/internal/serve/validators"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type PropertyHandler struct {
	PropertyService *services.PropertyService
}

type createPropertyRequest struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	PropertyType data.PropertyType `json:"property_type"`
	ListingType  data.ListingType  `json:"listing_type"`
	Address      string            `json:"address"`
	City         string            `json:"city"`
	State        string            `json:"state"`
	Latitude     *float64          `json:"latitude,omitempty"`
	Longitude    *float64          `json:"longitude,omitempty"`
	Bedrooms     int               `json:"bedrooms"`
	Bathrooms    int               `json:"bathrooms"`
	SizeSqm      int               `json:"size_sqm"`
	PriceKobo    int64             `json:"price_kobo"`
	DocumentURLs []string          `json:"document_urls,omitempty"`
}

func (h PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req createPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	property, err := h.PropertyService.CreateProperty(ctx, userID, services.CreatePropertyRequest{
		Title:        req.Title,
		Description:  req.Description,
		PropertyType: req.PropertyType,
		ListingType:  req.ListingType,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		SizeSqm:      req.SizeSqm,
		Price:        req.PriceKobo,
		DocumentURLs: req.DocumentURLs,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Listing submitted for verification.", property)
}

type verifyPropertyRequest struct {
	Action data.VerificationAction `json:"action"`
	Notes  string                  `json:"notes"`
}

func (h PropertyHandler) AgentVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	propertyID := chi.URLParam(r, "id")

	var req verifyPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	property, err := h.PropertyService.AgentVerify(ctx, userID, propertyID, req.Action, req.Notes)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Inspection recorded.", property)
}

func (h PropertyHandler) LawyerVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	propertyID := chi.URLParam(r, "id")

	var req verifyPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	property, err := h.PropertyService.LawyerVerify(ctx, userID, propertyID, req.Action, req.Notes)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Legal review recorded.", property)
}

type assignVerifiersRequest struct {
	AgentID  *string `json:"agent_id,omitempty"`
	LawyerID *string `json:"lawyer_id,omitempty"`
}

func (h PropertyHandler) AssignVerifiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	propertyID := chi.URLParam(r, "id")

	var req assignVerifiersRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	if err := h.PropertyService.AssignVerifiers(ctx, userID, propertyID, req.AgentID, req.LawyerID); err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Verifiers assigned.", nil)
}

func (h PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID := chi.URLParam(r, "id")

	property, err := h.PropertyService.GetProperty(ctx, propertyID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Listing.", property)
}

func (h PropertyHandler) VerificationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID := chi.URLParam(r, "id")

	history, err := h.PropertyService.VerificationHistory(ctx, propertyID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Verification history.", history)
}

func (h PropertyHandler) ListAwaitingAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	qv := validators.NewQueryValidator()
	page, pageSize := qv.ParsePagination(r)
	if qv.HasErrors() {
		httperror.BadRequest("Invalid pagination parameters.", nil).Render(w)
		return
	}

	properties, err := h.PropertyService.ListAwaitingAgent(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Paginated(w, "Listings awaiting inspection.", page, pageSize, properties)
}

func (h PropertyHandler) ListAwaitingLawyer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	qv := validators.NewQueryValidator()
	page, pageSize := qv.ParsePagination(r)
	if qv.HasErrors() {
		httperror.BadRequest("Invalid pagination parameters.", nil).Render(w)
		return
	}

	properties, err := h.PropertyService.ListAwaitingLawyer(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Paginated(w, "Listings awaiting legal review.", page, pageSize, properties)
}

type setListingStateRequest struct {
	Status data.PropertyStatus `json:"status"`
}

func (h PropertyHandler) SetListingState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	propertyID := chi.URLParam(r, "id")

	var req setListingStateRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	if err := req.Status.Validate(); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	property, err := h.PropertyService.SetListingState(ctx, userID, propertyID, req.Status)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Listing updated.", property)
}
