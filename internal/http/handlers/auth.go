package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/dto"
	"github.com/pribylovaa/siveal/internal/http/middleware"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in dto.RegisterRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in.ToInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AuthFromResult(res))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in dto.LoginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthFromResult(res))
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), middleware.IdentityFrom(r.Context())); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Logged out successfully"))
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Status(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{IsLoggedIn: true, User: dto.PublicUserFromModel(u)})
}
