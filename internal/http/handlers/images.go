package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/dto"
	"github.com/pribylovaa/siveal/internal/http/middleware"
)

func (h *Handlers) ImageUploadURL(w http.ResponseWriter, r *http.Request) {
	var in dto.PresignRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	info, err := h.svc.ImageUploadURL(r.Context(), middleware.IdentityFrom(r.Context()), in.ContentType, in.ContentLength)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UploadFromModel(info))
}

func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": dto.ImagesFromModels(images)})
}

func (h *Handlers) ImageInfo(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.ImageInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ImageFromModel(img))
}

func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteImage(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Image deleted successfully"))
}
