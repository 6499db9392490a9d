package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	userssvc "github.com/ivankudzin/matchapp/internal/services/users"
	"github.com/ivankudzin/matchapp/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchapp/internal/transport/http/errors"
)

const birthdateLayout = "2006-01-02"

type UsersHandler struct {
	service *userssvc.Service
}

func NewUsersHandler(service *userssvc.Service) *UsersHandler {
	return &UsersHandler{service: service}
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "USERS_SERVICE_UNAVAILABLE", "users service is unavailable")
		return
	}

	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	in := userssvc.CreateInput{
		Email:           req.Email,
		Name:            req.Name,
		Bio:             req.Bio,
		Gender:          req.Gender,
		Location:        req.Location,
		ProfileImageURL: req.ProfileImageURL,
		Preferences:     req.Preferences,
	}
	if raw := strings.TrimSpace(req.Birthdate); raw != "" {
		birthdate, err := time.Parse(birthdateLayout, raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "birthdate must be YYYY-MM-DD")
			return
		}
		in.Birthdate = &birthdate
	}

	user, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "failed to create user")
		return
	}

	httperrors.Write(w, http.StatusCreated, mapUser(user))
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "USERS_SERVICE_UNAVAILABLE", "users service is unavailable")
		return
	}
	userID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "failed to load user")
		return
	}

	httperrors.Write(w, http.StatusOK, mapUser(user))
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "USERS_SERVICE_UNAVAILABLE", "users service is unavailable")
		return
	}
	userID, ok := userIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	var req dto.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	user, err := h.service.Update(r.Context(), userID, userssvc.UpdateInput{
		Name:            req.Name,
		Bio:             req.Bio,
		ProfileImageURL: req.ProfileImageURL,
		Preferences:     req.Preferences,
	})
	if err != nil {
		writeServiceError(w, err, "failed to update user")
		return
	}

	httperrors.Write(w, http.StatusOK, mapUser(user))
}

func mapUser(user model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Bio:             user.Bio,
		Gender:          user.Gender,
		Location:        user.Location,
		ProfileImageURL: user.ProfileImageURL,
		Preferences:     user.Preferences,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	if user.Birthdate != nil {
		v := user.Birthdate.Format(birthdateLayout)
		resp.Birthdate = &v
	}
	return resp
}
