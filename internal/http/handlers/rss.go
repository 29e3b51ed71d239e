package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
)

func (h *Handlers) RSS(w http.ResponseWriter, r *http.Request) {
	feed, err := h.svc.RSSFeed(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed)
}
