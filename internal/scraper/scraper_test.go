package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/browser"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

const booksHTML = `
<html><body>
<article class="product_pod">
  <h3><a title="A Light in the Attic">A Light in the Attic</a></h3>
  <p class="star-rating">Three</p>
  <p class="price_color">£51.77</p>
  <p class="availability">In stock (22 available)</p>
</article>
<article class="product_pod">
  <h3><a title="Tipping the Velvet">Tipping the Velvet</a></h3>
  <p class="star-rating">One</p>
  <p class="price_color">£53.74</p>
  <p class="availability">In stock (20 available)</p>
</article>
<article class="product_pod">
  <h3><a title="Soumission">Soumission</a></h3>
  <p class="star-rating">Five</p>
  <p class="price_color">£50.10</p>
  <p class="availability">Only 3 left in stock</p>
</article>
<article class="product_pod">
  <h3><a title="Sharp Objects">Sharp Objects</a></h3>
  <p class="star-rating">Four</p>
  <p class="price_color">£47.82</p>
  <p class="availability">In stock (19 available)</p>
</article>
<article class="product_pod">
  <h3><a title="Sapiens">Sapiens</a></h3>
  <p class="star-rating">Five</p>
  <p class="price_color">£54.23</p>
  <p class="availability">In stock (16 available)</p>
</article>
</body></html>`

const gappyHTML = `
<html><body>
<article class="product_pod">
  <h3><a>First Book</a></h3>
  <p class="price_color">£10.00</p>
  <p class="availability">In stock</p>
</article>
<article class="product_pod">
  <div class="unrelated">advert slot</div>
</article>
<article class="product_pod">
  <h3><a>Third Book</a></h3>
  <p class="price_color">£30.00</p>
  <p class="availability">In stock</p>
</article>
</body></html>`

type fakeSession struct {
	html       string
	navigated  []string
	navErr     error
	contentErr error
	closed     bool
	scripts    []string
}

func (f *fakeSession) Navigate(url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeSession) Content() (string, error) {
	if f.contentErr != nil {
		return "", f.contentErr
	}
	return f.html, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) Evaluate(script string) (any, error) {
	f.scripts = append(f.scripts, script)
	return 1000.0, nil
}

func (f *fakeSession) MoveMouse(x, y float64) error { return nil }

func (f *fakeSession) ViewportSize() (int, int, bool) { return 1920, 1080, true }

func booksTarget(kind string) config.Target {
	return config.Target{
		Name: "books_toscrape",
		URL:  "https://books.example.test/catalogue",
		Kind: kind,
		Selectors: config.Selectors{
			Container:    "article.product_pod",
			Name:         "h3 a",
			Price:        "p.price_color",
			Rating:       "p.star-rating",
			Availability: "p.availability",
		},
	}
}

func testConfig(maxProducts int) *config.Config {
	return &config.Config{
		Behavior: config.BehaviorConfig{
			ScrollDelayMin:  time.Millisecond,
			ScrollDelayMax:  2 * time.Millisecond,
			ScrollAmountMin: 200,
			ScrollAmountMax: 600,
			ActionDelayMin:  time.Millisecond,
			ActionDelayMax:  2 * time.Millisecond,
			ScrollPause:     time.Millisecond,
			MaxScrollLoops:  10,
			MouseMovement:   false,
		},
		Scraper: config.ScraperConfig{
			MaxProducts:  maxProducts,
			WarmupRounds: 0,
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, target config.Target, sess *fakeSession) *Orchestrator {
	t.Helper()
	o := New(cfg, target, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	o.newSession = func(opts *browser.Options, logger *slog.Logger) (session, error) {
		return sess, nil
	}
	return o
}

func TestRunStaticTarget(t *testing.T) {
	sess := &fakeSession{html: booksHTML}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindStatic), sess)

	result, err := o.Run(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://books.example.test/catalogue"}, sess.navigated)
	assert.True(t, sess.closed)

	assert.Equal(t, "books_toscrape", result.Metadata.Target)
	assert.Equal(t, 5, result.Metadata.TotalProducts)
	require.Len(t, result.Products, 5)

	first := result.Products[0]
	assert.Equal(t, "books_toscrape_1", first.ID)
	assert.Equal(t, "A Light in the Attic", first.Name)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 51.77, *first.Price, 0.0001)
	require.NotNil(t, first.Rating)
	assert.InDelta(t, 3.0, *first.Rating, 0.0001)
	require.NotNil(t, first.StockInfo.InStock)
	assert.True(t, *first.StockInfo.InStock)

	scarce := result.Products[2]
	require.NotNil(t, scarce.StockInfo.ScarcitySignal)
	assert.Equal(t, "only 3 left", *scarce.StockInfo.ScarcitySignal)

	// Static pages never trigger the lazy-load scroll.
	assert.Empty(t, sess.scripts)
}

func TestRunDynamicTargetScrollsToBottom(t *testing.T) {
	sess := &fakeSession{html: booksHTML}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindDynamic), sess)

	result, err := o.Run(context.Background(), "run-2")
	require.NoError(t, err)
	require.Len(t, result.Products, 5)

	assert.NotEmpty(t, sess.scripts)
	assert.Contains(t, sess.scripts[0], "scrollHeight")
}

func TestRunHonorsMaxProducts(t *testing.T) {
	sess := &fakeSession{html: booksHTML}
	o := newTestOrchestrator(t, testConfig(3), booksTarget(config.KindStatic), sess)

	result, err := o.Run(context.Background(), "run-3")
	require.NoError(t, err)

	require.Len(t, result.Products, 3)
	assert.Equal(t, "books_toscrape_1", result.Products[0].ID)
	assert.Equal(t, "books_toscrape_2", result.Products[1].ID)
	assert.Equal(t, "books_toscrape_3", result.Products[2].ID)
}

func TestRunSkipsEmptyElementsLeavingOrdinalGap(t *testing.T) {
	sess := &fakeSession{html: gappyHTML}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindStatic), sess)

	result, err := o.Run(context.Background(), "run-4")
	require.NoError(t, err)

	require.Len(t, result.Products, 2)
	assert.Equal(t, "books_toscrape_1", result.Products[0].ID)
	assert.Equal(t, "books_toscrape_3", result.Products[1].ID)
	assert.Equal(t, 2, result.Metadata.TotalProducts)
}

func TestRunNavigationFailureClosesSession(t *testing.T) {
	sess := &fakeSession{navErr: errors.New("net::ERR_TIMED_OUT")}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindStatic), sess)

	_, err := o.Run(context.Background(), "run-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_TIMED_OUT")
	assert.True(t, sess.closed)
}

func TestRunSessionOpenFailure(t *testing.T) {
	o := New(testConfig(50), booksTarget(config.KindStatic), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	o.newSession = func(opts *browser.Options, logger *slog.Logger) (session, error) {
		return nil, errors.New("chromium not installed")
	}

	_, err := o.Run(context.Background(), "run-6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium not installed")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := &fakeSession{html: booksHTML}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindStatic), sess)

	_, err := o.Run(ctx, "run-7")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, sess.closed)
}

func TestExtractProductPartialFields(t *testing.T) {
	sess := &fakeSession{html: `
<html><body>
<article class="product_pod">
  <h3><a>Priceless Thing</a></h3>
  <p class="availability">Available soon</p>
</article>
</body></html>`}
	o := newTestOrchestrator(t, testConfig(50), booksTarget(config.KindStatic), sess)

	result, err := o.Run(context.Background(), "run-8")
	require.NoError(t, err)
	require.Len(t, result.Products, 1)

	p := result.Products[0]
	assert.Equal(t, "Priceless Thing", p.Name)
	assert.Nil(t, p.Price)
	assert.Equal(t, models.NotAvailable, p.PriceRaw)
	assert.Nil(t, p.Rating)
	assert.Equal(t, models.NotAvailable, p.RatingRaw)
	require.NotNil(t, p.StockInfo.InStock)
	assert.True(t, *p.StockInfo.InStock)
}

func TestSessionOptionsMapping(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:        false,
		NavigationWait:  "domcontentloaded",
		NavTimeout:      45 * time.Second,
		ViewportWidth:   1366,
		ViewportHeight:  768,
		Locale:          "en-US",
		TimezoneID:      "America/New_York",
		AcceptLanguage:  "en-US,en;q=0.9",
		UserAgents:      []string{"ua-1"},
		RotateUserAgent: true,
	}

	opts := sessionOptions(cfg)

	assert.False(t, opts.Headless)
	assert.Equal(t, "domcontentloaded", opts.WaitUntil)
	assert.Equal(t, 45*time.Second, opts.NavTimeout)
	assert.Equal(t, 1366, opts.ViewportWidth)
	assert.Equal(t, 768, opts.ViewportHeight)
	assert.Equal(t, []string{"ua-1"}, opts.UserAgents)
	assert.True(t, opts.RotateUserAgent)
}
