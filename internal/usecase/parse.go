package usecase

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/user/scrapestudio/internal/entity"
)

// rawItemDateLayouts are tried in order when normalizing scraped dates.
var rawItemDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006",
}

// ParseRawItem normalizes one scraped item into ResultContent. Platforms
// disagree on field names, so text is read from text, content or body, and
// numeric ratings from rating, score or stars. Items without usable text
// return nil and should be skipped.
func ParseRawItem(item entity.RawItem) *entity.ResultContent {
	text := firstString(item, "text", "content", "body")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	content := &entity.ResultContent{
		Text:       text,
		Title:      strings.TrimSpace(firstString(item, "title")),
		Author:     strings.TrimSpace(firstString(item, "author", "username", "reviewer")),
		URL:        firstString(item, "url", "link"),
		PlatformID: firstString(item, "id", "platform_id", "review_id"),
	}

	if r, ok := parseRating(item); ok {
		content.Rating = &r
	}
	if d, ok := parseDate(firstString(item, "date", "created_at", "published_at")); ok {
		content.Date = &d
	}

	return content
}

// parseRating reads a rating on a 1-5 scale. A score field holding 0 or 1 is
// treated as a thumbs up/down and mapped to the ends of the scale.
func parseRating(item entity.RawItem) (float64, bool) {
	if v, ok := asFloat(item["rating"]); ok {
		return v, true
	}
	if v, ok := asFloat(item["score"]); ok {
		switch v {
		case 1:
			return 5, true
		case 0:
			return 1, true
		default:
			return v, true
		}
	}
	if v, ok := asFloat(item["stars"]); ok {
		return v, true
	}
	return 0, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range rawItemDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstString(item entity.RawItem, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
