package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/storage"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func at(min int) time.Time { return fixedNow.Add(time.Duration(min) * time.Minute) }

func TestValidateContent(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateContent("fine"))
	require.NoError(t, validateContent(strings.Repeat("x", 2000)))
	require.NoError(t, validateContent(strings.Repeat("ş", 2000)))
	require.ErrorIs(t, validateContent(strings.Repeat("x", 2001)), ErrInvalidContent)
	require.ErrorIs(t, validateContent(""), ErrInvalidContent)
	require.ErrorIs(t, validateContent(`hi <script>alert(1)</script>`), ErrInvalidContent)
	require.ErrorIs(t, validateContent(`<SCRIPT src=x>`), ErrInvalidContent)
}

func TestService_CreateComment_Validation(t *testing.T) {
	s, _, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	_, err := s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: " ", Content: "x"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: strings.Repeat("a", 101), Content: "x"})
	requireField(t, err, "author")

	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: "<script>x</script>"})
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: strings.Repeat("x", 2001)})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, ErrInvalidContent)
}

func TestService_CreateComment_ArticleAndParent(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().ArticleByID(gomock.Any(), int64(404)).Return(nil, storage.ErrNotFound)
	_, err := s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 404, Author: "a", Content: "x"})
	require.ErrorIs(t, err, ErrNotFound)

	ms.EXPECT().ArticleByID(gomock.Any(), int64(1)).Return(&models.Article{ID: 1}, nil).AnyTimes()

	ms.EXPECT().CommentByID(gomock.Any(), int64(50)).Return(nil, storage.ErrNotFound)
	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: "x", ParentID: int64Ptr(50)})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, ErrParentNotFound)

	ms.EXPECT().CommentByID(gomock.Any(), int64(51)).Return(&models.Comment{ID: 51, ArticleID: 2, IsApproved: true}, nil)
	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: "x", ParentID: int64Ptr(51)})
	require.ErrorIs(t, err, ErrParentNotFound)

	// Hidden parents cannot take replies.
	ms.EXPECT().CommentByID(gomock.Any(), int64(52)).Return(&models.Comment{ID: 52, ArticleID: 1, IsApproved: true, Deleted: true}, nil)
	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: "x", ParentID: int64Ptr(52)})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, ErrParentNotFound)

	ms.EXPECT().CommentByID(gomock.Any(), int64(53)).Return(&models.Comment{ID: 53, ArticleID: 1}, nil)
	_, err = s.CreateComment(context.Background(), nil, CommentInput{ArticleID: 1, Author: "a", Content: "x", ParentID: int64Ptr(53)})
	require.ErrorIs(t, err, ErrParentNotFound)
}

// A reply to a reply is stored under the top-level comment.
func TestService_CreateComment_FlattensReplies(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().ArticleByID(gomock.Any(), int64(1)).Return(&models.Article{ID: 1}, nil)
	ms.EXPECT().CommentByID(gomock.Any(), int64(12)).Return(&models.Comment{ID: 12, ArticleID: 1, ParentID: int64Ptr(10), IsApproved: true}, nil)
	ms.EXPECT().CreateComment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.Comment) (*models.Comment, error) {
			require.EqualValues(t, 10, *c.ParentID)
			require.EqualValues(t, member.ID, *c.AuthorID)
			require.True(t, c.IsApproved)
			require.False(t, c.Deleted)
			require.Equal(t, "10.0.0.1", c.IPAddress)
			require.Equal(t, "a@b.io", c.AuthorEmail)
			c.ID = 13
			return &c, nil
		})

	c, err := s.CreateComment(context.Background(), member, CommentInput{
		ArticleID: 1, Author: "alice", AuthorEmail: "A@B.io", Content: " reply ", ParentID: int64Ptr(12),
		IPAddress: "10.0.0.1", UserAgent: "test",
	})
	require.NoError(t, err)
	require.EqualValues(t, 13, c.ID)
	require.Equal(t, "reply", c.Content)
}

func TestService_ListComments_Threads(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().ListVisibleComments(gomock.Any(), int64(1)).Return([]models.Comment{
		{ID: 1, CreatedAt: at(0)},
		{ID: 2, CreatedAt: at(1)},
		{ID: 3, ParentID: int64Ptr(1), CreatedAt: at(5)},
		{ID: 4, ParentID: int64Ptr(1), CreatedAt: at(3)},
		{ID: 5, ParentID: int64Ptr(99), CreatedAt: at(4)}, // parent hidden
	}, nil)

	threads, err := s.ListComments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	require.EqualValues(t, 2, threads[0].ID)
	require.Empty(t, threads[0].Replies)

	require.EqualValues(t, 1, threads[1].ID)
	require.Len(t, threads[1].Replies, 2)
	require.EqualValues(t, 4, threads[1].Replies[0].ID)
	require.EqualValues(t, 3, threads[1].Replies[1].ID)
}

func TestService_EditComment(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	own := &models.Comment{ID: 5, AuthorID: int64Ptr(member.ID), IsApproved: true}
	ms.EXPECT().CommentByID(gomock.Any(), int64(5)).Return(own, nil).AnyTimes()

	_, err := s.EditComment(context.Background(), nil, 5, "x")
	require.ErrorIs(t, err, ErrUnauthorized)

	other := &models.Identity{ID: 77, Role: models.RoleUser}
	_, err = s.EditComment(context.Background(), other, 5, "x")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = s.EditComment(context.Background(), member, 5, "<script>")
	require.ErrorIs(t, err, ErrInvalidContent)

	ms.EXPECT().EditComment(gomock.Any(), int64(5), "fixed", fixedNow).
		Return(&models.Comment{ID: 5, Content: "fixed", Edited: true}, nil)
	c, err := s.EditComment(context.Background(), member, 5, " fixed ")
	require.NoError(t, err)
	require.True(t, c.Edited)

	ms.EXPECT().EditComment(gomock.Any(), int64(5), "by mod", fixedNow).Return(&models.Comment{ID: 5}, nil)
	_, err = s.EditComment(context.Background(), moderator, 5, "by mod")
	require.NoError(t, err)

	// Hidden comments stay editable and stay hidden.
	hidden := &models.Comment{ID: 6, AuthorID: int64Ptr(member.ID), IsApproved: true, Deleted: true}
	ms.EXPECT().CommentByID(gomock.Any(), int64(6)).Return(hidden, nil)
	ms.EXPECT().EditComment(gomock.Any(), int64(6), "fixed", fixedNow).
		Return(&models.Comment{ID: 6, Content: "fixed", Edited: true, Deleted: true}, nil)
	c, err = s.EditComment(context.Background(), moderator, 6, "fixed")
	require.NoError(t, err)
	require.True(t, c.Edited)
	require.True(t, c.Deleted)
}

func TestService_DeleteAndRestoreComment(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().CommentByID(gomock.Any(), int64(5)).Return(&models.Comment{ID: 5, AuthorID: int64Ptr(member.ID)}, nil)
	ms.EXPECT().SoftDeleteComment(gomock.Any(), int64(5), member.ID, fixedNow).Return(nil)
	require.NoError(t, s.DeleteComment(context.Background(), member, 5))

	ms.EXPECT().CommentByID(gomock.Any(), int64(6)).Return(&models.Comment{ID: 6, Deleted: true}, nil)
	require.ErrorIs(t, s.DeleteComment(context.Background(), admin, 6), ErrNotFound)

	require.ErrorIs(t, s.RestoreComment(context.Background(), member, 6), ErrForbidden)

	ms.EXPECT().RestoreComment(gomock.Any(), int64(6)).Return(nil)
	require.NoError(t, s.RestoreComment(context.Background(), moderator, 6))

	ms.EXPECT().RestoreComment(gomock.Any(), int64(7)).Return(storage.ErrNotFound)
	require.ErrorIs(t, s.RestoreComment(context.Background(), admin, 7), ErrNotFound)
}

func TestService_ReactToComment(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().CommentByID(gomock.Any(), int64(1)).Return(&models.Comment{ID: 1, IsApproved: true, Deleted: true}, nil)
	_, err := s.ReactToComment(context.Background(), 1, true)
	require.ErrorIs(t, err, ErrNotFound)

	ms.EXPECT().CommentByID(gomock.Any(), int64(2)).Return(&models.Comment{ID: 2, IsApproved: true}, nil)
	ms.EXPECT().ReactToComment(gomock.Any(), int64(2), false).Return(&models.Comment{ID: 2, IsApproved: true, Dislikes: 1}, nil)
	c, err := s.ReactToComment(context.Background(), 2, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, c.Dislikes)
}

func TestService_ReportComment(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	require.ErrorIs(t, s.ReportComment(context.Background(), nil, 1, "spam"), ErrUnauthorized)
	requireField(t, s.ReportComment(context.Background(), member, 1, " "), "reason")
	requireField(t, s.ReportComment(context.Background(), member, 1, strings.Repeat("r", 501)), "reason")

	ms.EXPECT().ReportComment(gomock.Any(), int64(1), models.CommentReport{UserID: member.ID, Reason: "spam", ReportedAt: fixedNow}).Return(nil)
	require.NoError(t, s.ReportComment(context.Background(), member, 1, " spam "))
}
