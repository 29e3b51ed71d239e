package handlers

import (
	"net"
	"net/http"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/dto"
	"github.com/pribylovaa/siveal/internal/http/middleware"
	"github.com/pribylovaa/siveal/internal/service"
)

func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	articleID, err := pathID(r, "articleId")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	threads, err := h.svc.ListComments(r.Context(), articleID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ThreadsFromModels(threads))
}

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	articleID, err := pathID(r, "articleId")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in dto.CreateCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.CreateComment(r.Context(), middleware.IdentityFrom(r.Context()), service.CommentInput{
		ArticleID:   articleID,
		Author:      in.Author,
		AuthorEmail: in.AuthorEmail,
		Content:     in.Content,
		ParentID:    in.ParentID,
		IPAddress:   remoteHost(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CommentFromModel(c))
}

func (h *Handlers) EditComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in dto.EditCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.EditComment(r.Context(), middleware.IdentityFrom(r.Context()), id, in.Content)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CommentFromModel(c))
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteComment(r.Context(), middleware.IdentityFrom(r.Context()), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Comment deleted successfully"))
}

func (h *Handlers) RestoreComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.RestoreComment(r.Context(), middleware.IdentityFrom(r.Context()), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Comment restored successfully"))
}

func (h *Handlers) LikeComment(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, true)
}

func (h *Handlers) DislikeComment(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, false)
}

func (h *Handlers) react(w http.ResponseWriter, r *http.Request, like bool) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.ReactToComment(r.Context(), id, like)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReactionFromModel(c))
}

func (h *Handlers) ReportComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in dto.ReportCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.ReportComment(r.Context(), middleware.IdentityFrom(r.Context()), id, in.Reason); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Comment reported successfully"))
}

// remoteHost is the client address without the port. RealIP runs earlier
// in the chain, so proxy headers are already applied to RemoteAddr.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
