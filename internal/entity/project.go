package entity

import "time"

// Target is a single scrape source belonging to a project.
type Target struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform,omitempty"` // amazon, steam, trustpilot, ...
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status"` // active, paused, error
	CreatedAt time.Time `json:"created_at"`
}

// LLMConfig selects the analysis model for a project.
type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// AnalysisConfig toggles the analysis passes run on scraped text.
type AnalysisConfig struct {
	Sentiment        bool `json:"sentiment"`
	SentimentClasses int  `json:"sentiment_classes"` // 3 or 5
	Emotions         bool `json:"emotions"`
}

// LimitsConfig bounds scraping volume and pacing for a project.
type LimitsConfig struct {
	MaxResultsPerTarget int     `json:"max_results_per_target"`
	MaxRequestsPerDay   int     `json:"max_requests_per_day"`
	RateLimitDelay      float64 `json:"rate_limit_delay"` // seconds between targets
}

// ProjectConfig is the full per-project configuration consumed by the
// orchestration core.
type ProjectConfig struct {
	LLM      LLMConfig      `json:"llm"`
	Analysis AnalysisConfig `json:"analysis"`
	Limits   LimitsConfig   `json:"limits"`
}

// Project owns targets, a schedule, and results.
type Project struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	Status    string        `json:"status"` // active, paused, error, archived
	Config    ProjectConfig `json:"config"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DefaultProjectConfig returns the limits and analysis defaults applied when
// a project has no explicit configuration.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Analysis: AnalysisConfig{
			Sentiment:        true,
			SentimentClasses: 3,
		},
		Limits: LimitsConfig{
			MaxResultsPerTarget: 100,
			MaxRequestsPerDay:   500,
			RateLimitDelay:      1.0,
		},
	}
}
