package handlers

import (
	"net/http"

	likessvc "github.com/ivankudzin/matchapp/internal/services/likes"
	matchessvc "github.com/ivankudzin/matchapp/internal/services/matches"
	"github.com/ivankudzin/matchapp/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchapp/internal/transport/http/errors"
)

type LikesHandler struct {
	matches *matchessvc.Service
	ledger  *likessvc.Ledger
}

func NewLikesHandler(matches *matchessvc.Service, ledger *likessvc.Ledger) *LikesHandler {
	return &LikesHandler{matches: matches, ledger: ledger}
}

// Submit handles POST /users/{id}/like where {id} is the liked user.
func (h *LikesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.matches == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}
	receiverID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	var req dto.LikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.matches.SubmitLike(r.Context(), req.SenderID, receiverID)
	if err != nil {
		writeServiceError(w, err, "failed to submit like")
		return
	}

	resp := dto.LikeResponse{
		LikeID:  res.LikeID,
		Matched: res.Matched,
	}
	if res.Matched {
		id := res.ConversationID.String()
		resp.ConversationID = &id
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *LikesHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LIKES_SERVICE_UNAVAILABLE", "likes service is unavailable")
		return
	}
	userID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	items, err := h.ledger.Incoming(r.Context(), userID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeServiceError(w, err, "failed to load incoming likes")
		return
	}

	out := make([]dto.IncomingLikeResponse, 0, len(items))
	for _, like := range items {
		out = append(out, dto.IncomingLikeResponse{
			LikeID:    like.ID,
			SenderID:  like.SenderID,
			IsMatch:   like.IsMatch,
			CreatedAt: like.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, dto.IncomingLikesResponse{Items: out})
}

func (h *LikesHandler) Matches(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LIKES_SERVICE_UNAVAILABLE", "likes service is unavailable")
		return
	}
	userID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	items, err := h.ledger.Matches(r.Context(), userID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeServiceError(w, err, "failed to load matches")
		return
	}

	out := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.MatchItemResponse{
			UserID:          item.UserID,
			Name:            item.Name,
			ProfileImageURL: item.ProfileImageURL,
			MatchedAt:       item.MatchedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: out})
}
