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

type ChatHandler struct {
	ChatService *services.ChatService
}

type startChatRequest struct {
	UserID string  `json:"user_id"`
	JobID  *string `json:"job_id,omitempty"`
}

func (h ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req startChatRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	if req.UserID == "" {
		httperror.BadRequest("user_id is required.", nil).Render(w)
		return
	}

	chat, err := h.ChatService.StartChat(ctx, userID, req.UserID, req.JobID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Chat opened.", chat)
}

type sendMessageRequest struct {
	Type     data.MessageType `json:"message_type"`
	Content  string           `json:"content"`
	ImageURL *string          `json:"image_url,omitempty"`
}

func (h ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	chatID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	msg, err := h.ChatService.SendMessage(ctx, chatID, userID, services.SendMessageRequest{
		Type:     req.Type,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Message sent.", msg)
}

func (h ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	chatID := chi.URLParam(r, "id")

	qv := validators.NewQueryValidator()
	page, pageSize := qv.ParsePagination(r)
	if qv.HasErrors() {
		httperror.BadRequest("Invalid pagination parameters.", nil).Render(w)
		return
	}

	messages, err := h.ChatService.ListMessages(ctx, chatID, userID, page, pageSize)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Paginated(w, "Messages.", page, pageSize, messages)
}

func (h ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	qv := validators.NewQueryValidator()
	page, pageSize := qv.ParsePagination(r)
	if qv.HasErrors() {
		httperror.BadRequest("Invalid pagination parameters.", nil).Render(w)
		return
	}

	chats, err := h.ChatService.ListChats(ctx, userID, page, pageSize)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Paginated(w, "Chats.", page, pageSize, chats)
}

func (h ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	chatID := chi.URLParam(r, "id")

	marked, err := h.ChatService.MarkRead(ctx, chatID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Messages marked read.", map[string]int64{"marked": marked})
}

type sendProposalRequest struct {
	JobID            string `json:"job_id"`
	ProposedRateKobo int64  `json:"proposed_rate_kobo"`
	TimelineDays     int    `json:"timeline_days"`
	Terms            string `json:"terms"`
}

func (h ChatHandler) SendProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	chatID := chi.URLParam(r, "id")

	var req sendProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	proposal, err := h.ChatService.SendProposal(ctx, chatID, userID, services.SendProposalRequest{
		JobID:        req.JobID,
		ProposedRate: req.ProposedRateKobo,
		TimelineDays: req.TimelineDays,
		Terms:        req.Terms,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Created(w, "Proposal sent.", proposal)
}

type respondProposalRequest struct {
	Status data.ProposalStatus `json:"status"`
}

func (h ChatHandler) RespondProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	proposalID := chi.URLParam(r, "id")

	var req respondProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	proposal, err := h.ChatService.RespondProposal(ctx, proposalID, userID, req.Status)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Proposal updated.", proposal)
}

func (h ChatHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)
	chatID := chi.URLParam(r, "id")

	proposals, err := h.ChatService.ListProposals(ctx, chatID, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Proposals.", proposals)
}
