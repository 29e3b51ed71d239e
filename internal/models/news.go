package models

import (
	"regexp"
	"strings"
	"time"
)

// Article is a news item with per-language variants of its text fields.
type Article struct {
	ID              int64     `bson:"id"`
	Title           string    `bson:"title"`
	Summary         string    `bson:"summary"`
	Content         string    `bson:"content"`
	Image           string    `bson:"image,omitempty"`
	Category        string    `bson:"category"`
	Author          string    `bson:"author"`
	Time            time.Time `bson:"time"`
	Views           int64     `bson:"views"`
	Featured        bool      `bson:"featured"`
	Published       bool      `bson:"published"`
	Tags            []string  `bson:"tags,omitempty"`
	MetaTitle       string    `bson:"metaTitle,omitempty"`
	MetaDescription string    `bson:"metaDescription,omitempty"`

	TitleTR   string `bson:"title_tr,omitempty"`
	SummaryTR string `bson:"summary_tr,omitempty"`
	ContentTR string `bson:"content_tr,omitempty"`
	TitleAZ   string `bson:"title_az,omitempty"`
	SummaryAZ string `bson:"summary_az,omitempty"`
	ContentAZ string `bson:"content_az,omitempty"`
	TitleRU   string `bson:"title_ru,omitempty"`
	SummaryRU string `bson:"summary_ru,omitempty"`
	ContentRU string `bson:"content_ru,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

var slugJunk = regexp.MustCompile(`[^a-z0-9]+`)

// Slug is the URL-friendly form of the title.
func (a *Article) Slug() string {
	return strings.Trim(slugJunk.ReplaceAllString(strings.ToLower(a.Title), "-"), "-")
}

// ArticlePatch is a partial article update; nil fields are left untouched.
type ArticlePatch struct {
	Title           *string
	Summary         *string
	Content         *string
	Image           *string
	Category        *string
	Author          *string
	Time            *time.Time
	Featured        *bool
	Published       *bool
	Tags            *[]string
	MetaTitle       *string
	MetaDescription *string

	TitleTR   *string
	SummaryTR *string
	ContentTR *string
	TitleAZ   *string
	SummaryAZ *string
	ContentAZ *string
	TitleRU   *string
	SummaryRU *string
	ContentRU *string
}

// ArticleFilter selects published articles for listing.
type ArticleFilter struct {
	Category     string
	FeaturedOnly bool
	Limit        int64
	Offset       int64
}
