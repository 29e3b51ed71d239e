package service

import (
	"context"
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestService_Subscribe_New(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().SubscriberByEmail(gomock.Any(), "reader@example.com").Return(nil, storage.ErrNotFound)
	ms.EXPECT().CreateSubscriber(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub models.Subscriber) (*models.Subscriber, error) {
			require.True(t, sub.IsActive)
			require.Equal(t, fixedNow, sub.SubscribedAt)
			require.Equal(t, models.Preferences{
				Categories: []string{models.CategoryAll},
				Language:   models.LanguageEN,
				Frequency:  models.FrequencyDaily,
			}, sub.Preferences)

			raw, err := hex.DecodeString(sub.UnsubscribeToken)
			require.NoError(t, err)
			require.Len(t, raw, 32)

			return &sub, nil
		})

	sub, created, err := s.Subscribe(context.Background(), " Reader@Example.com ", PreferencesInput{})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "reader@example.com", sub.Email)
}

func TestService_Subscribe_Validation(t *testing.T) {
	s, _, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	_, _, err := s.Subscribe(context.Background(), "", PreferencesInput{})
	requireField(t, err, "email")

	_, _, err = s.Subscribe(context.Background(), "nope", PreferencesInput{})
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = s.Subscribe(context.Background(), "a@b.io", PreferencesInput{Language: "de"})
	requireField(t, err, "language")

	_, _, err = s.Subscribe(context.Background(), "a@b.io", PreferencesInput{Frequency: "hourly"})
	requireField(t, err, "frequency")
}

func TestService_Subscribe_AlreadyActive(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().SubscriberByEmail(gomock.Any(), "a@b.io").Return(&models.Subscriber{Email: "a@b.io", IsActive: true}, nil)

	_, _, err := s.Subscribe(context.Background(), "a@b.io", PreferencesInput{})
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	// Duplicate key on insert means a concurrent subscribe won.
	ms.EXPECT().SubscriberByEmail(gomock.Any(), "c@d.io").Return(nil, storage.ErrNotFound)
	ms.EXPECT().CreateSubscriber(gomock.Any(), gomock.Any()).Return(nil, storage.ErrConflict)

	_, _, err = s.Subscribe(context.Background(), "c@d.io", PreferencesInput{})
	require.ErrorIs(t, err, ErrAlreadySubscribed)
}

// Resubscribing reactivates the same record, so the old token keeps working.
func TestService_Subscribe_ReactivateKeepsToken(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	left := fixedNow.Add(-24 * time.Hour)
	old := &models.Subscriber{Email: "a@b.io", IsActive: false, UnsubscribedAt: &left, UnsubscribeToken: "tok-1"}

	ms.EXPECT().SubscriberByEmail(gomock.Any(), "a@b.io").Return(old, nil)
	ms.EXPECT().ReactivateSubscriber(gomock.Any(), "a@b.io", models.PreferencesPatch{Language: models.LanguageTR}, fixedNow).
		Return(&models.Subscriber{Email: "a@b.io", IsActive: true, SubscribedAt: fixedNow, UnsubscribeToken: "tok-1"}, nil)

	sub, created, err := s.Subscribe(context.Background(), "a@b.io", PreferencesInput{Language: models.LanguageTR})
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, sub.IsActive)
	require.Nil(t, sub.UnsubscribedAt)
	require.Equal(t, "tok-1", sub.UnsubscribeToken)
}

func TestService_Unsubscribe(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	require.ErrorIs(t, s.Unsubscribe(context.Background(), " ", ""), ErrInvalidArgument)

	ms.EXPECT().DeactivateSubscriber(gomock.Any(), models.SubscriberLookup{Token: "tok"}, fixedNow).
		Return(&models.Subscriber{}, nil)
	require.NoError(t, s.Unsubscribe(context.Background(), "a@b.io", "tok"))

	ms.EXPECT().DeactivateSubscriber(gomock.Any(), models.SubscriberLookup{Email: "a@b.io"}, fixedNow).
		Return(nil, storage.ErrNotFound)
	require.ErrorIs(t, s.Unsubscribe(context.Background(), "A@B.io", ""), ErrNotFound)
}

func TestService_UpdatePreferences(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	_, err := s.UpdatePreferences(context.Background(), member, "a@b.io", PreferencesInput{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = s.UpdatePreferences(context.Background(), admin, "a@b.io", PreferencesInput{Frequency: "yearly"})
	requireField(t, err, "frequency")

	ms.EXPECT().UpdatePreferences(gomock.Any(), "a@b.io", models.PreferencesPatch{Frequency: models.FrequencyWeekly}, fixedNow).
		Return(nil, storage.ErrNotFound)
	_, err = s.UpdatePreferences(context.Background(), admin, "a@b.io", PreferencesInput{Frequency: models.FrequencyWeekly})
	require.ErrorIs(t, err, ErrNotFound)

	ms.EXPECT().UpdatePreferences(gomock.Any(), "a@b.io", models.PreferencesPatch{Categories: []string{"ai"}}, fixedNow).
		Return(&models.Subscriber{Email: "a@b.io", Preferences: models.Preferences{Categories: []string{"ai"}}}, nil)
	sub, err := s.UpdatePreferences(context.Background(), admin, "A@B.io", PreferencesInput{Categories: []string{"ai"}})
	require.NoError(t, err)
	require.Equal(t, []string{"ai"}, sub.Preferences.Categories)
}

func TestService_ListSubscribers(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	_, err := s.ListSubscribers(context.Background(), nil, SubscriberQuery{})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.ListSubscribers(context.Background(), admin, SubscriberQuery{Page: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	// (page-1)*limit would overflow the skip.
	_, err = s.ListSubscribers(context.Background(), admin, SubscriberQuery{Page: math.MaxInt64})
	requireField(t, err, "page")

	_, err = s.ListSubscribers(context.Background(), admin, SubscriberQuery{Page: math.MaxInt64/50 + 2})
	requireField(t, err, "page")

	ms.EXPECT().ListSubscribers(gomock.Any(), models.SubscriberFilter{Category: "ai", Search: "gmail", Page: 1, Limit: 200}).
		Return(&models.SubscriberPage{
			Items: []models.Subscriber{{Email: "x@gmail.com", UnsubscribeToken: "secret"}},
			Page:  1, Limit: 200, Total: 1,
		}, nil)

	page, err := s.ListSubscribers(context.Background(), admin, SubscriberQuery{Category: "ai", Search: " gmail ", Limit: 5000})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Empty(t, page.Items[0].UnsubscribeToken)
	require.EqualValues(t, 1, page.Pages())

	ms.EXPECT().ListSubscribers(gomock.Any(), models.SubscriberFilter{Page: 3, Limit: 50}).
		Return(&models.SubscriberPage{Page: 3, Limit: 50}, nil)
	_, err = s.ListSubscribers(context.Background(), admin, SubscriberQuery{Page: 3})
	require.NoError(t, err)
}

func TestService_Statistics(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	_, err := s.Statistics(context.Background(), moderator)
	require.ErrorIs(t, err, ErrForbidden)

	ms.EXPECT().SubscriberStats(gomock.Any(), time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)).
		Return(&models.SubscriberStats{TotalSubscribers: 3, NewThisMonth: 1}, nil)

	st, err := s.Statistics(context.Background(), admin)
	require.NoError(t, err)
	require.EqualValues(t, 3, st.TotalSubscribers)
}

func TestMonthStart(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+4", 4*3600)
	// 02:00 on Nov 1 at UTC+4 is still October in UTC.
	require.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), monthStart(time.Date(2026, 11, 1, 2, 0, 0, 0, loc)))
}

func TestService_NewsletterHealth(t *testing.T) {
	s, ms, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	ms.EXPECT().CountSubscribers(gomock.Any()).Return(&models.SubscriberCounts{Active: 4, Inactive: 1}, nil)

	c, err := s.NewsletterHealth(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, c.Active)
}
