package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/dto"
	"github.com/pribylovaa/siveal/internal/http/middleware"
	"github.com/pribylovaa/siveal/internal/service"
)

func (h *Handlers) ListNews(w http.ResponseWriter, r *http.Request) {
	const op = "handlers/news/ListNews"

	q := r.URL.Query()
	p := service.ListParams{Category: q.Get("category")}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.WriteError(w, r, fmt.Errorf("%s: %w", op, &service.ValidationError{Field: "featured", Message: "must be true or false"}))
			return
		}

		p.FeaturedOnly = featured
	}

	var err error
	if p.Limit, err = queryInt(r, "limit"); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if p.Offset, err = queryInt(r, "skip"); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	articles, err := h.svc.ListPublished(r.Context(), p)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ArticlesFromModels(articles))
}

func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	a, err := h.svc.GetArticle(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ArticleFromModel(a))
}

func (h *Handlers) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var in dto.CreateArticleRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	a, err := h.svc.CreateArticle(r.Context(), middleware.IdentityFrom(r.Context()), in.ToInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ArticleResponse{
		Message: "Article created successfully",
		Article: dto.ArticleFromModel(a),
	})
}

func (h *Handlers) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in dto.UpdateArticleRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	a, err := h.svc.UpdateArticle(r.Context(), middleware.IdentityFrom(r.Context()), id, in.ToInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ArticleResponse{
		Message: "Article updated successfully",
		Article: dto.ArticleFromModel(a),
	})
}

func (h *Handlers) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteArticle(r.Context(), middleware.IdentityFrom(r.Context()), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Message("Article deleted successfully"))
}

func (h *Handlers) IncrementView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	views, err := h.svc.IncrementView(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ViewsResponse{Views: views})
}
