package models

import "time"

// Newsletter enums.
const (
	LanguageEN = "en"
	LanguageTR = "tr"
	LanguageAZ = "az"
	LanguageRU = "ru"

	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"

	CategoryAll = "all"
)

// Subscriber is a newsletter recipient keyed by lowercase email.
type Subscriber struct {
	Email            string      `bson:"email"`
	IsActive         bool        `bson:"isActive"`
	SubscribedAt     time.Time   `bson:"subscribedAt"`
	UnsubscribedAt   *time.Time  `bson:"unsubscribedAt"`
	Preferences      Preferences `bson:"preferences"`
	UnsubscribeToken string      `bson:"unsubscribeToken"`
	CreatedAt        time.Time   `bson:"createdAt"`
	UpdatedAt        time.Time   `bson:"updatedAt"`
}

// Preferences are the delivery options of a subscriber.
type Preferences struct {
	Categories []string `bson:"categories"`
	Language   string   `bson:"language"`
	Frequency  string   `bson:"frequency"`
}

// PreferencesPatch is a partial preferences update.
type PreferencesPatch struct {
	Categories []string
	Language   string
	Frequency  string
}

// Empty reports whether the patch changes nothing.
func (p PreferencesPatch) Empty() bool {
	return len(p.Categories) == 0 && p.Language == "" && p.Frequency == ""
}

// SubscriberLookup identifies a subscriber by email or unsubscribe token.
type SubscriberLookup struct {
	Email string
	Token string
}

// SubscriberFilter selects subscribers for the admin listing.
type SubscriberFilter struct {
	Category string
	Language string
	Search   string
	Page     int64
	Limit    int64
}

// SubscriberPage is one page of the admin listing.
type SubscriberPage struct {
	Items []Subscriber
	Page  int64
	Limit int64
	Total int64
}

// Pages is the number of pages for Total at Limit per page.
func (p *SubscriberPage) Pages() int64 {
	if p.Limit <= 0 {
		return 0
	}

	return (p.Total + p.Limit - 1) / p.Limit
}

// SubscriberStats is the newsletter summary.
type SubscriberStats struct {
	TotalSubscribers     int64
	NewThisMonth         int64
	CategoryDistribution []Bucket
	LanguageDistribution []Bucket
}

// Bucket is one group of an aggregation.
type Bucket struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// SubscriberCounts backs the newsletter health endpoint.
type SubscriberCounts struct {
	Active   int64
	Inactive int64
}
