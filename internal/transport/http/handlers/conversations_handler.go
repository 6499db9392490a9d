package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	convsvc "github.com/ivankudzin/matchapp/internal/services/conversations"
	"github.com/ivankudzin/matchapp/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchapp/internal/transport/http/errors"
)

type ConversationsHandler struct {
	service *convsvc.Service
}

func NewConversationsHandler(service *convsvc.Service) *ConversationsHandler {
	return &ConversationsHandler{service: service}
}

func (h *ConversationsHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}
	userID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	items, err := h.service.ListForUser(r.Context(), userID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeServiceError(w, err, "failed to load conversations")
		return
	}

	out := make([]dto.ConversationResponse, 0, len(items))
	for _, conv := range items {
		out = append(out, mapConversation(conv))
	}
	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: out})
}

func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}
	id, ok := conversationIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	conv, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to load conversation")
		return
	}
	httperrors.Write(w, http.StatusOK, mapConversation(conv))
}

func (h *ConversationsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}
	id, ok := conversationIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), id, req.SenderID, req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to send message")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	})
}

func conversationIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func mapConversation(conv model.Conversation) dto.ConversationResponse {
	return dto.ConversationResponse{
		ID:           conv.ID.String(),
		Participants: []int64{conv.Participants[0], conv.Participants[1]},
		CreatedAt:    conv.CreatedAt,
	}
}
