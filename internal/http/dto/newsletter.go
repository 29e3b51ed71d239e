package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
)

type PreferencesRequest struct {
	Categories []string `json:"categories"`
	Language   string   `json:"language"`
	Frequency  string   `json:"frequency"`
}

func (m *PreferencesRequest) ToInput() service.PreferencesInput {
	if m == nil {
		return service.PreferencesInput{}
	}

	return service.PreferencesInput{
		Categories: m.Categories,
		Language:   m.Language,
		Frequency:  m.Frequency,
	}
}

type SubscribeRequest struct {
	Email       string              `json:"email"`
	Preferences *PreferencesRequest `json:"preferences"`
}

type UnsubscribeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type Preferences struct {
	Categories []string `json:"categories"`
	Language   string   `json:"language"`
	Frequency  string   `json:"frequency"`
}

// Subscriber never carries the unsubscribe token.
type Subscriber struct {
	Email          string      `json:"email"`
	IsActive       bool        `json:"isActive"`
	SubscribedAt   time.Time   `json:"subscribedAt"`
	UnsubscribedAt *time.Time  `json:"unsubscribedAt,omitempty"`
	Preferences    Preferences `json:"preferences"`
}

func SubscriberFromModel(s *models.Subscriber) Subscriber {
	if s == nil {
		return Subscriber{}
	}

	cats := s.Preferences.Categories
	if cats == nil {
		cats = []string{}
	}

	return Subscriber{
		Email:          s.Email,
		IsActive:       s.IsActive,
		SubscribedAt:   s.SubscribedAt,
		UnsubscribedAt: s.UnsubscribedAt,
		Preferences: Preferences{
			Categories: cats,
			Language:   s.Preferences.Language,
			Frequency:  s.Preferences.Frequency,
		},
	}
}

type SubscriberResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    Subscriber `json:"data"`
}

type Pagination struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
	Pages   int64 `json:"pages"`
	Total   int64 `json:"total"`
}

type SubscriberPage struct {
	Subscribers []Subscriber `json:"subscribers"`
	Pagination  Pagination   `json:"pagination"`
}

func SubscriberPageFromModel(p *models.SubscriberPage) SubscriberPage {
	if p == nil {
		return SubscriberPage{Subscribers: []Subscriber{}}
	}

	items := make([]Subscriber, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, SubscriberFromModel(&p.Items[i]))
	}

	return SubscriberPage{
		Subscribers: items,
		Pagination: Pagination{
			Current: p.Page,
			Limit:   p.Limit,
			Pages:   p.Pages(),
			Total:   p.Total,
		},
	}
}

type Bucket struct {
	ID    string `json:"_id"`
	Count int64  `json:"count"`
}

type SubscriberStats struct {
	TotalSubscribers     int64    `json:"totalSubscribers"`
	NewThisMonth         int64    `json:"newThisMonth"`
	CategoryDistribution []Bucket `json:"categoryDistribution"`
	LanguageDistribution []Bucket `json:"languageDistribution"`
}

func buckets(bs []models.Bucket) []Bucket {
	out := make([]Bucket, 0, len(bs))
	for _, b := range bs {
		out = append(out, Bucket{ID: b.Key, Count: b.Count})
	}

	return out
}

func SubscriberStatsFromModel(s *models.SubscriberStats) SubscriberStats {
	if s == nil {
		return SubscriberStats{CategoryDistribution: []Bucket{}, LanguageDistribution: []Bucket{}}
	}

	return SubscriberStats{
		TotalSubscribers:     s.TotalSubscribers,
		NewThisMonth:         s.NewThisMonth,
		CategoryDistribution: buckets(s.CategoryDistribution),
		LanguageDistribution: buckets(s.LanguageDistribution),
	}
}

// Envelope is the {success, data} wrapper of the newsletter endpoints.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type NewsletterHealth struct {
	Status            string    `json:"status"`
	ActiveSubscribers int64     `json:"activeSubscribers"`
	TotalSubscribers  int64     `json:"totalSubscribers"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewsletterHealthFromModel(c *models.SubscriberCounts, now time.Time) NewsletterHealth {
	h := NewsletterHealth{Status: "healthy", Timestamp: now}
	if c != nil {
		h.ActiveSubscribers = c.Active
		h.TotalSubscribers = c.Active + c.Inactive
	}

	return h
}
