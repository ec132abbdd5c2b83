package chromedp_scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const amazonPage = `
<html><body>
<div data-hook="review" id="R1">
  <span class="a-profile-name">alice</span>
  <a data-hook="review-title" href="/review/R1"><span>Loved it</span></a>
  <i data-hook="review-star-rating"><span class="a-icon-alt">4.0 out of 5 stars</span></i>
  <span data-hook="review-date">Reviewed on January 2, 2026</span>
  <span data-hook="review-body">Works exactly as advertised.</span>
</div>
<div data-hook="review" id="R2">
  <span class="a-profile-name">bob</span>
  <i data-hook="review-star-rating"><span class="a-icon-alt">2.0 out of 5 stars</span></i>
  <span data-hook="review-body">Broke after a week.</span>
</div>
<div data-hook="review" id="R3">
  <span data-hook="review-body"></span>
</div>
</body></html>`

func newTestScraper() *ChromedpScraper {
	return NewChromedpScraper(1, time.Second, zap.NewNop())
}

func TestExtractAmazonReviews(t *testing.T) {
	items, err := newTestScraper().extract(amazonPage, "amazon", 0)
	require.NoError(t, err)
	require.Len(t, items, 2) // the empty-text review is dropped

	first := items[0]
	assert.Equal(t, "Works exactly as advertised.", first["text"])
	assert.Equal(t, "Loved it", first["title"])
	assert.Equal(t, "alice", first["author"])
	assert.Equal(t, 4.0, first["rating"])
	assert.Equal(t, "/review/R1", first["url"])
	assert.Equal(t, "R1", first["id"])
	assert.Contains(t, first["date"], "January 2, 2026")

	assert.Equal(t, 2.0, items[1]["rating"])
}

func TestExtractHonorsMaxResults(t *testing.T) {
	items, err := newTestScraper().extract(amazonPage, "amazon", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestExtractUnknownPlatformUsesDefaults(t *testing.T) {
	page := `<html><body>
		<article><h2>Nice</h2><p>Generic review text</p><time datetime="2026-01-02">Jan 2</time></article>
	</body></html>`
	items, err := newTestScraper().extract(page, "someblog", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Generic review text", items[0]["text"])
	assert.Equal(t, "2026-01-02", items[0]["date"])
}
