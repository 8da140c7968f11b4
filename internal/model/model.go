// Package model defines the domain types used across the application.
package model

import "time"

// NewsItem is a single normalized feed entry. It is immutable once parsed;
// the same shape is stored as a snapshot in task example lists.
type NewsItem struct {
	ID          int64     `json:"-"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PubDate     time.Time `json:"pub_date"`
	SourceName  string    `json:"source_name,omitempty"`
}

// Task is a user-defined market/filter that incoming news is classified
// against.
type Task struct {
	ID             int64
	Title          string
	Description    string
	Link           string
	IsActive       bool
	EndDate        *time.Time
	CreatedAt      time.Time
	Positives      []NewsItem
	FalsePositives []NewsItem
}

// ActiveAt reports whether the task should be classified against at the
// given instant. A task with no end date never expires.
func (t Task) ActiveAt(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return t.EndDate == nil || t.EndDate.After(now)
}

// CryptoTask is a price-threshold market measured once per minute.
type CryptoTask struct {
	ID              int64
	Title           string
	Description     string
	IsActive        bool
	EndDate         *time.Time
	Ticker          string
	StartPoint      float64
	EndPoint        float64
	MeasurementTime time.Time
	CreatedAt       time.Time
}

// ActiveAt reports whether the crypto task is still being measured.
func (t CryptoTask) ActiveAt(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return t.EndDate == nil || t.EndDate.After(now)
}

// SourceKind distinguishes how a source URL is fetched.
type SourceKind string

// Supported source kinds.
const (
	SourceRSS      SourceKind = "rss"
	SourceTelegram SourceKind = "telegram"
)

// Source is a named feed endpoint. For telegram sources URL holds the
// channel name; the fetcher expands it over the configured mirror hosts.
type Source struct {
	ID        int64
	Name      string
	URL       string
	Kind      SourceKind
	CreatedAt time.Time
}

// PromptConfig is the singleton set of prompts steering the classifier.
// It is created lazily with the defaults below on first access.
type PromptConfig struct {
	ID           int64
	Role         string
	CryptoRole   string
	SuggestPost  string
	PostExamples []string
}

// Subscriber is a Telegram user receiving notifications.
type Subscriber struct {
	TgID      int64
	ChatID    int64
	CreatedAt time.Time
}

// Default prompts used until the prompt config is edited.
const (
	DefaultRolePrompt = `You are an assistant for a news analyst at a prediction market.
Your goal is to check if the news article might help the analyst to resolve
the given market. Return True if this news needs further analysis and might
be relevant to the market. Return False if this news is not relevant to the
given prompt, or if it is an opinion piece or analytics content.
Do not return anything else.`

	DefaultCryptoRolePrompt = `You are an assistant for a news analyst at a prediction market.
Your goal is to check the market title and description and return guidance
for the analyst whether they should take any action on the market based on
provided crypto prices at the moment. In many cases no action is needed.
If so, return only False and nothing else. Do not explain your answer in
this case. If it seems relevant, suggest a post for the Telegram channel in
English that will inform users about the crypto prices in relation to the
market and include a call to action to check the market. Clearly indicate
that you are suggesting a post.`

	DefaultSuggestPostPrompt = `You are an assistant for an SMM manager at a prediction market.
Your goal is to suggest a post for the given breaking news item. The post
should be informative and engaging and include the link to the market and a
call to action. It should read more like a news article with a call to
action than a social media post. Use as much detail from the news as
possible. Avoid rhetorical questions and broad statements. Check the
previous relevant news for the market for context and the examples of good
posts, both provided below. Return the post text in English, formatted in
markdown. Do not return anything else.`
)
