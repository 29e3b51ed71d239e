package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/dto"
	"github.com/pribylovaa/siveal/internal/http/middleware"
	"github.com/pribylovaa/siveal/internal/service"
)

func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var in dto.SubscribeRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	sub, created, err := h.svc.Subscribe(r.Context(), in.Email, in.Preferences.ToInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	status, msg := http.StatusOK, "Welcome back! Newsletter subscription reactivated."
	if created {
		status, msg = http.StatusCreated, "Successfully subscribed to SIVEAL newsletter!"
	}

	writeJSON(w, status, dto.SubscriberResponse{
		Success: true,
		Message: msg,
		Data:    dto.SubscriberFromModel(sub),
	})
}

func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var in dto.UnsubscribeRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), in.Email, in.Token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Successfully unsubscribed from newsletter"))
}

func (h *Handlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.SubscriberQuery{
		Category: q.Get("category"),
		Language: q.Get("language"),
		Search:   q.Get("search"),
	}

	var err error
	if query.Page, err = queryInt(r, "page"); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if query.Limit, err = queryInt(r, "limit"); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	page, err := h.svc.ListSubscribers(r.Context(), middleware.IdentityFrom(r.Context()), query)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Envelope{Success: true, Data: dto.SubscriberPageFromModel(page)})
}

func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Envelope{Success: true, Data: dto.SubscriberStatsFromModel(stats)})
}

func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var in dto.PreferencesRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	sub, err := h.svc.UpdatePreferences(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "email"), in.ToInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SubscriberResponse{
		Success: true,
		Message: "Preferences updated successfully",
		Data:    dto.SubscriberFromModel(sub),
	})
}

func (h *Handlers) NewsletterHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.NewsletterHealth(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewsletterHealthFromModel(counts, h.now().UTC()))
}
