package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
)

type Article struct {
	ID              int64     `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Content         string    `json:"content"`
	Image           string    `json:"image,omitempty"`
	Category        string    `json:"category"`
	Author          string    `json:"author"`
	Time            time.Time `json:"time"`
	Views           int64     `json:"views"`
	Featured        bool      `json:"featured"`
	Published       bool      `json:"published"`
	Tags            []string  `json:"tags"`
	MetaTitle       string    `json:"metaTitle,omitempty"`
	MetaDescription string    `json:"metaDescription,omitempty"`

	TitleTR   string `json:"title_tr,omitempty"`
	SummaryTR string `json:"summary_tr,omitempty"`
	ContentTR string `json:"content_tr,omitempty"`
	TitleAZ   string `json:"title_az,omitempty"`
	SummaryAZ string `json:"summary_az,omitempty"`
	ContentAZ string `json:"content_az,omitempty"`
	TitleRU   string `json:"title_ru,omitempty"`
	SummaryRU string `json:"summary_ru,omitempty"`
	ContentRU string `json:"content_ru,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func ArticleFromModel(a *models.Article) Article {
	if a == nil {
		return Article{}
	}

	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	return Article{
		ID:              a.ID,
		Slug:            a.Slug(),
		Title:           a.Title,
		Summary:         a.Summary,
		Content:         a.Content,
		Image:           a.Image,
		Category:        a.Category,
		Author:          a.Author,
		Time:            a.Time,
		Views:           a.Views,
		Featured:        a.Featured,
		Published:       a.Published,
		Tags:            tags,
		MetaTitle:       a.MetaTitle,
		MetaDescription: a.MetaDescription,
		TitleTR:         a.TitleTR,
		SummaryTR:       a.SummaryTR,
		ContentTR:       a.ContentTR,
		TitleAZ:         a.TitleAZ,
		SummaryAZ:       a.SummaryAZ,
		ContentAZ:       a.ContentAZ,
		TitleRU:         a.TitleRU,
		SummaryRU:       a.SummaryRU,
		ContentRU:       a.ContentRU,
		CreatedAt:       timePtr(a.CreatedAt),
		UpdatedAt:       timePtr(a.UpdatedAt),
	}
}

func ArticlesFromModels(as []models.Article) []Article {
	out := make([]Article, 0, len(as))
	for i := range as {
		out = append(out, ArticleFromModel(&as[i]))
	}

	return out
}

// ArticleResponse wraps an article after a write.
type ArticleResponse struct {
	Message string  `json:"message"`
	Article Article `json:"article"`
}

type ViewsResponse struct {
	Views int64 `json:"views"`
}

type CreateArticleRequest struct {
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	Content         string     `json:"content"`
	Category        string     `json:"category"`
	Author          string     `json:"author"`
	Image           string     `json:"image"`
	Time            *time.Time `json:"time"`
	Featured        *bool      `json:"featured"`
	Published       *bool      `json:"published"`
	Tags            []string   `json:"tags"`
	MetaTitle       string     `json:"metaTitle"`
	MetaDescription string     `json:"metaDescription"`

	TitleTR   string `json:"title_tr"`
	SummaryTR string `json:"summary_tr"`
	ContentTR string `json:"content_tr"`
	TitleAZ   string `json:"title_az"`
	SummaryAZ string `json:"summary_az"`
	ContentAZ string `json:"content_az"`
	TitleRU   string `json:"title_ru"`
	SummaryRU string `json:"summary_ru"`
	ContentRU string `json:"content_ru"`
}

func (m CreateArticleRequest) ToInput() service.ArticleInput {
	return service.ArticleInput{
		Title:           m.Title,
		Summary:         m.Summary,
		Content:         m.Content,
		Category:        m.Category,
		Author:          m.Author,
		Image:           m.Image,
		Time:            m.Time,
		Featured:        m.Featured,
		Published:       m.Published,
		Tags:            m.Tags,
		MetaTitle:       m.MetaTitle,
		MetaDescription: m.MetaDescription,
		TitleTR:         m.TitleTR,
		SummaryTR:       m.SummaryTR,
		ContentTR:       m.ContentTR,
		TitleAZ:         m.TitleAZ,
		SummaryAZ:       m.SummaryAZ,
		ContentAZ:       m.ContentAZ,
		TitleRU:         m.TitleRU,
		SummaryRU:       m.SummaryRU,
		ContentRU:       m.ContentRU,
	}
}

// UpdateArticleRequest is a partial update; absent fields are left untouched.
type UpdateArticleRequest struct {
	Title           *string    `json:"title"`
	Summary         *string    `json:"summary"`
	Content         *string    `json:"content"`
	Category        *string    `json:"category"`
	Author          *string    `json:"author"`
	Image           *string    `json:"image"`
	Time            *time.Time `json:"time"`
	Featured        *bool      `json:"featured"`
	Published       *bool      `json:"published"`
	Tags            *[]string  `json:"tags"`
	MetaTitle       *string    `json:"metaTitle"`
	MetaDescription *string    `json:"metaDescription"`

	TitleTR   *string `json:"title_tr"`
	SummaryTR *string `json:"summary_tr"`
	ContentTR *string `json:"content_tr"`
	TitleAZ   *string `json:"title_az"`
	SummaryAZ *string `json:"summary_az"`
	ContentAZ *string `json:"content_az"`
	TitleRU   *string `json:"title_ru"`
	SummaryRU *string `json:"summary_ru"`
	ContentRU *string `json:"content_ru"`
}

func (m UpdateArticleRequest) ToInput() service.ArticleUpdate {
	return service.ArticleUpdate{
		Title:           m.Title,
		Summary:         m.Summary,
		Content:         m.Content,
		Category:        m.Category,
		Author:          m.Author,
		Image:           m.Image,
		Time:            m.Time,
		Featured:        m.Featured,
		Published:       m.Published,
		Tags:            m.Tags,
		MetaTitle:       m.MetaTitle,
		MetaDescription: m.MetaDescription,
		TitleTR:         m.TitleTR,
		SummaryTR:       m.SummaryTR,
		ContentTR:       m.ContentTR,
		TitleAZ:         m.TitleAZ,
		SummaryAZ:       m.SummaryAZ,
		ContentAZ:       m.ContentAZ,
		TitleRU:         m.TitleRU,
		SummaryRU:       m.SummaryRU,
		ContentRU:       m.ContentRU,
	}
}
