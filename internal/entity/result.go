package entity

import (
	"strings"
	"time"
)

// RawItem is one scraped item as returned by a platform scraper, before
// normalization. Key names vary per platform.
type RawItem map[string]any

// ResultContent is the normalized scraped content of a single item.
type ResultContent struct {
	Text       string     `json:"text"`
	Title      string     `json:"title,omitempty"`
	Author     string     `json:"author,omitempty"`
	Rating     *float64   `json:"rating,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	URL        string     `json:"url,omitempty"`
	PlatformID string     `json:"platform_id,omitempty"`
}

// WordCount counts whitespace-separated words in the content text.
func (c *ResultContent) WordCount() int {
	if c.Text == "" {
		return 0
	}
	return len(strings.Fields(c.Text))
}

// SentimentAnalysis is the sentiment classification of one text.
type SentimentAnalysis struct {
	Label      string     `json:"label,omitempty"` // positive, neutral, negative
	Score      float64    `json:"score"`           // -1..1
	Confidence float64    `json:"confidence"`
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
}

// EmotionScore is a single detected emotion with its strength.
type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// EmotionAnalysis holds detected emotions for one text.
type EmotionAnalysis struct {
	Model        string         `json:"model,omitempty"`
	Primary      string         `json:"primary,omitempty"`
	PrimaryScore float64        `json:"primary_score"`
	Detected     []EmotionScore `json:"detected,omitempty"`
	AnalyzedAt   *time.Time     `json:"analyzed_at,omitempty"`
}

// AnalysisResult is the complete analysis for one item. A zero value means
// the item was stored without analysis (batch-analysis fallback).
type AnalysisResult struct {
	Sentiment *SentimentAnalysis `json:"sentiment,omitempty"`
	Emotions  *EmotionAnalysis   `json:"emotions,omitempty"`
}

// Result links normalized content and its analysis to a target and job.
type Result struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	TargetID    string         `json:"target_id"`
	UserID      string         `json:"user_id"`
	ScrapeJobID string         `json:"scrape_job_id,omitempty"`
	Content     ResultContent  `json:"content"`
	Analysis    AnalysisResult `json:"analysis"`
	Platform    string         `json:"platform,omitempty"`
	Language    string         `json:"language,omitempty"`
	WordCount   int            `json:"word_count"`
	CreatedAt   time.Time      `json:"created_at"`
}
