package httphandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sabimarket/sabimarket-backend/internal/serve/httperror"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httpresponse"
	"github.com/sabimarket/sabimarket-backend/internal/serve/middleware"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type JobHandler struct {
	JobService *services.JobService
}

type createJobRequest struct {
	Category                 string     `json:"category"`
	Title                    string     `json:"title"`
	Description              string     `json:"description"`
	LocationState            string     `json:"location_state"`
	LocationCity             string     `json:"location_city"`
	LocationAddress          string     `json:"location_address"`
	BudgetKobo               int64      `json:"budget_kobo"`
	EstimatedDurationDays    int        `json:"estimated_duration_days"`
	PlatformFeeKobo          int64      `json:"platform_fee_kobo"`
	PartialPaymentAllowed    bool       `json:"partial_payment_allowed"`
	PartialPaymentPercentage *int       `json:"partial_payment_percentage,omitempty"`
	Deadline                 *time.Time `json:"deadline,omitempty"`
}

func (h JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	job, err := h.JobService.CreateJob(ctx, userID, services.CreateJobRequest{
		Category:                 req.Category,
		Title:                    req.Title,
		Description:              req.Description,
		LocationState:            req.LocationState,
		LocationCity:             req.LocationCity,
		LocationAddress:          req.LocationAddress,
		Budget:                   req.BudgetKobo,
		EstimatedDurationDays:    req.EstimatedDurationDays,
		PlatformFee:              req.PlatformFeeKobo,
		PartialPaymentAllowed:    req.PartialPaymentAllowed,
		PartialPaymentPercentage: req.PartialPaymentPercentage,
		Deadline:                 req.Deadline,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Job created.", job)
}

type assignWorkerRequest struct {
	WorkerID string `json:"worker_id"`
}

func (h JobHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	jobID := chi.URLParam(r, "id")

	var req assignWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	if req.WorkerID == "" {
		httperror.BadRequest("worker_id is required.", nil).Render(w)
		return
	}

	job, err := h.JobService.AssignWorker(ctx, jobID, userID, req.WorkerID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Worker assigned and budget escrowed.", job)
}

type submitProgressRequest struct {
	Percentage  int      `json:"percentage"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

func (h JobHandler) SubmitProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	jobID := chi.URLParam(r, "id")

	var req submitProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	progress, err := h.JobService.SubmitProgress(ctx, jobID, userID, req.Percentage, req.Description, req.ImageURLs)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Progress recorded.", progress)
}

type completeJobRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h JobHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	jobID := chi.URLParam(r, "id")

	var req completeJobRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	job, err := h.JobService.CompleteJob(ctx, jobID, userID, req.Rating, req.Comment)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Job completed and escrow released.", job)
}

type openDisputeRequest struct {
	Reason       string   `json:"reason"`
	Description  string   `json:"description"`
	EvidenceURLs []string `json:"evidence_urls,omitempty"`
}

func (h JobHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	jobID := chi.URLParam(r, "id")

	var req openDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	dispute, err := h.JobService.OpenDispute(ctx, jobID, userID, req.Reason, req.Description, req.EvidenceURLs)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Dispute opened.", dispute)
}

func (h JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	jobID := chi.URLParam(r, "id")

	job, err := h.JobService.CancelJob(ctx, jobID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Job cancelled.", job)
}

func (h JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.JobService.GetJob(ctx, jobID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Job.", job)
}
