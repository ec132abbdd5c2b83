package chromedp_scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/user/scrapestudio/internal/entity"
	"go.uber.org/zap"
)

// selectorSet maps a platform's review markup to raw item fields.
type selectorSet struct {
	item   string
	text   string
	title  string
	author string
	rating string
	date   string
	link   string
}

var platformSelectors = map[string]selectorSet{
	"amazon": {
		item:   `div[data-hook="review"]`,
		text:   `span[data-hook="review-body"]`,
		title:  `a[data-hook="review-title"] span`,
		author: `span.a-profile-name`,
		rating: `i[data-hook="review-star-rating"] span.a-icon-alt`,
		date:   `span[data-hook="review-date"]`,
		link:   `a[data-hook="review-title"]`,
	},
	"trustpilot": {
		item:   `article[data-service-review-card-paper]`,
		text:   `p[data-service-review-text-typography]`,
		title:  `h2[data-service-review-title-typography]`,
		author: `span[data-consumer-name-typography]`,
		rating: `div[data-service-review-rating] img`,
		date:   `time`,
		link:   `a[data-review-title-typography]`,
	},
	"steam": {
		item:   `div.apphub_Card`,
		text:   `div.apphub_CardTextContent`,
		author: `div.apphub_CardContentAuthorName`,
		rating: `div.title`,
		date:   `div.date_posted`,
	},
}

// defaultSelectors covers platforms without a dedicated table using common
// review/article markup.
var defaultSelectors = selectorSet{
	item:   `article, div.review, li.review`,
	text:   `p`,
	title:  `h1, h2, h3`,
	author: `.author, [rel="author"]`,
	rating: `.rating, .stars`,
	date:   `time`,
	link:   `a`,
}

var numberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ChromedpScraper implements the Scraper interface with a pool of headless
// Chrome allocators. Platform knowledge lives entirely in the selector
// tables; callers only supply url, platform and limit.
type ChromedpScraper struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
	log           *zap.Logger
}

// NewChromedpScraper creates a scraper with poolSize pre-warmed allocators.
func NewChromedpScraper(poolSize int, pageLoadTimeout time.Duration, log *zap.Logger) *ChromedpScraper {
	pool := &sync.Pool{
		New: func() any {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}
	for i := 0; i < poolSize; i++ {
		pool.Put(pool.New())
	}

	return &ChromedpScraper{
		allocatorPool: pool,
		timeout:       pageLoadTimeout,
		log:           log,
	}
}

// Scrape renders the page and extracts up to maxResults raw items using the
// platform's selector table.
func (s *ChromedpScraper) Scrape(ctx context.Context, url, platform string, maxResults int, _ entity.JobOptions) ([]entity.RawItem, error) {
	allocCtx := s.allocatorPool.Get().(context.Context)
	defer s.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, s.timeout)
	defer cancel()

	start := time.Now()
	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	items, err := s.extract(html, platform, maxResults)
	if err != nil {
		return nil, err
	}
	s.log.Info("page scraped",
		zap.String("url", url),
		zap.String("platform", platform),
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)))
	return items, nil
}

func (s *ChromedpScraper) extract(html, platform string, maxResults int) ([]entity.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	sel, ok := platformSelectors[strings.ToLower(platform)]
	if !ok {
		sel = defaultSelectors
	}

	var items []entity.RawItem
	doc.Find(sel.item).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if maxResults > 0 && len(items) >= maxResults {
			return false
		}

		item := entity.RawItem{}
		if text := clean(node.Find(sel.text).First().Text()); text != "" {
			item["text"] = text
		}
		if sel.title != "" {
			if title := clean(node.Find(sel.title).First().Text()); title != "" {
				item["title"] = title
			}
		}
		if sel.author != "" {
			if author := clean(node.Find(sel.author).First().Text()); author != "" {
				item["author"] = author
			}
		}
		if sel.rating != "" {
			if rating, ok := extractRating(node, sel.rating); ok {
				item["rating"] = rating
			}
		}
		if sel.date != "" {
			if date := extractDate(node, sel.date); date != "" {
				item["date"] = date
			}
		}
		if sel.link != "" {
			if href, ok := node.Find(sel.link).First().Attr("href"); ok {
				item["url"] = href
			}
		}
		if id, ok := node.Attr("id"); ok {
			item["id"] = id
		}

		if _, ok := item["text"]; ok {
			items = append(items, item)
		}
		return true
	})

	return items, nil
}

// extractRating reads a numeric rating from the node, preferring structured
// attributes ("4.0 out of 5 stars" alt text, rating-N class values) over the
// element text.
func extractRating(node *goquery.Selection, selector string) (float64, bool) {
	el := node.Find(selector).First()
	if el.Length() == 0 {
		return 0, false
	}
	candidates := []string{el.Text()}
	if alt, ok := el.Attr("alt"); ok {
		candidates = append(candidates, alt)
	}
	if label, ok := el.Attr("aria-label"); ok {
		candidates = append(candidates, label)
	}
	for _, c := range candidates {
		if m := numberPattern.FindString(c); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func extractDate(node *goquery.Selection, selector string) string {
	el := node.Find(selector).First()
	if dt, ok := el.Attr("datetime"); ok {
		return dt
	}
	return clean(el.Text())
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
