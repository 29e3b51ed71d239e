package models

import "time"

// Comment belongs to an article. ParentID, when set, is the id of a top-level comment.
type Comment struct {
	ID          int64           `bson:"id"`
	ArticleID   int64           `bson:"articleId"`
	Author      string          `bson:"author"`
	AuthorEmail string          `bson:"authorEmail,omitempty"`
	AuthorID    *int64          `bson:"authorId,omitempty"`
	Content     string          `bson:"content"`
	ParentID    *int64          `bson:"parentId"`
	Likes       int64           `bson:"likes"`
	Dislikes    int64           `bson:"dislikes"`
	IsApproved  bool            `bson:"isApproved"`
	IsSpam      bool            `bson:"isSpam"`
	IPAddress   string          `bson:"ipAddress,omitempty"`
	UserAgent   string          `bson:"userAgent,omitempty"`
	ReportedBy  []CommentReport `bson:"reportedBy,omitempty"`
	Edited      bool            `bson:"edited"`
	EditedAt    *time.Time      `bson:"editedAt,omitempty"`
	Deleted     bool            `bson:"deleted"`
	DeletedAt   *time.Time      `bson:"deletedAt,omitempty"`
	DeletedBy   *int64          `bson:"deletedBy,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

// Visible reports whether the comment may be shown publicly.
func (c *Comment) Visible() bool {
	return c.IsApproved && !c.Deleted
}

// LikeRatio is the share of likes in percent, 0 without reactions.
func (c *Comment) LikeRatio() float64 {
	total := c.Likes + c.Dislikes
	if total == 0 {
		return 0
	}

	return float64(c.Likes) / float64(total) * 100
}

// CommentReport is one abuse report.
type CommentReport struct {
	UserID     int64     `bson:"userId"`
	Reason     string    `bson:"reason"`
	ReportedAt time.Time `bson:"reportedAt"`
}

// Thread is a top-level comment with its direct replies.
type Thread struct {
	Comment
	Replies []Comment
}
