package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
)

// Comment is the public view: no email, IP or user agent.
type Comment struct {
	ID        int64      `json:"id"`
	ArticleID int64      `json:"articleId"`
	Author    string     `json:"author"`
	AuthorID  *int64     `json:"authorId,omitempty"`
	Content   string     `json:"content"`
	ParentID  *int64     `json:"parentId"`
	Likes     int64      `json:"likes"`
	Dislikes  int64      `json:"dislikes"`
	LikeRatio float64    `json:"likeRatio"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Thread struct {
	Comment
	Replies []Comment `json:"replies"`
}

func CommentFromModel(c *models.Comment) Comment {
	if c == nil {
		return Comment{}
	}

	return Comment{
		ID:        c.ID,
		ArticleID: c.ArticleID,
		Author:    c.Author,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		ParentID:  c.ParentID,
		Likes:     c.Likes,
		Dislikes:  c.Dislikes,
		LikeRatio: c.LikeRatio(),
		Edited:    c.Edited,
		EditedAt:  c.EditedAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ThreadsFromModels(ts []models.Thread) []Thread {
	out := make([]Thread, 0, len(ts))
	for i := range ts {
		replies := make([]Comment, 0, len(ts[i].Replies))
		for j := range ts[i].Replies {
			replies = append(replies, CommentFromModel(&ts[i].Replies[j]))
		}

		out = append(out, Thread{Comment: CommentFromModel(&ts[i].Comment), Replies: replies})
	}

	return out
}

type CreateCommentRequest struct {
	Author      string `json:"author"`
	AuthorEmail string `json:"authorEmail"`
	Content     string `json:"content"`
	ParentID    *int64 `json:"parentId"`
}

type EditCommentRequest struct {
	Content string `json:"content"`
}

type ReportCommentRequest struct {
	Reason string `json:"reason"`
}

type ReactionResponse struct {
	Likes     int64   `json:"likes"`
	Dislikes  int64   `json:"dislikes"`
	LikeRatio float64 `json:"likeRatio"`
}

func ReactionFromModel(c *models.Comment) ReactionResponse {
	if c == nil {
		return ReactionResponse{}
	}

	return ReactionResponse{Likes: c.Likes, Dislikes: c.Dislikes, LikeRatio: c.LikeRatio()}
}
