// Package browser owns the browser process, one stealth-configured context
// and one page for the lifetime of a scrape run.
package browser

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// stealthScript runs before any page script so detection logic observes the
// spoofed values on first read.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined
});

Object.defineProperty(navigator, 'plugins', {
    get: () => [1, 2, 3, 4, 5]
});

Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en']
});

window.chrome = {
    runtime: {}
};

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);
`

var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--no-first-run",
	"--no-zygote",
	"--disable-gpu",
	"--disable-setuid-sandbox",
}

type Options struct {
	Headless        bool
	WaitUntil       string
	NavTimeout      time.Duration
	UserAgents      []string
	RotateUserAgent bool
	ViewportWidth   int
	ViewportHeight  int
	Locale          string
	TimezoneID      string
	AcceptLanguage  string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:        true,
		WaitUntil:       "networkidle",
		NavTimeout:      60 * time.Second,
		UserAgents:      []string{defaultUserAgent},
		RotateUserAgent: false,
		ViewportWidth:   1920,
		ViewportHeight:  1080,
		Locale:          "en-US",
		TimezoneID:      "America/New_York",
		AcceptLanguage:  "en-US,en;q=0.9",
	}
}

// Session holds the process, context and page for one run. It is owned by
// the run that created it and must be closed on every exit path.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	rng     *rand.Rand
	sleep   func(time.Duration)
	logger  *slog.Logger
}

func New(opts *Options, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     launchArgs,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	userAgent := chooseUserAgent(rng, opts.UserAgents, opts.RotateUserAgent)

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		DeviceScaleFactor: playwright.Float(1),
		IsMobile:          playwright.Bool(false),
		HasTouch:          playwright.Bool(false),
		AcceptDownloads:   playwright.Bool(false),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: stealthHeaders(opts.AcceptLanguage),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(opts.NavTimeout.Milliseconds()))

	// Must be injected before the first navigation.
	if err := page.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		page.Close()
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to inject stealth script: %w", err)
	}

	s := &Session{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		opts:    opts,
		rng:     rng,
		sleep:   time.Sleep,
		logger:  logger.With("component", "browser"),
	}

	s.logger.Debug("session ready",
		"user_agent", userAgent,
		"locale", opts.Locale,
		"timezone", opts.TimezoneID,
		"headless", opts.Headless)

	return s, nil
}

// Navigate loads the URL with a short randomized hesitation before and a
// settle delay after, mimicking a person opening a page. Navigation failure
// is fatal to the run; there is no retry here.
func (s *Session) Navigate(url string) error {
	s.pause(1*time.Second, 2500*time.Millisecond)

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(s.opts.WaitUntil),
		Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.pause(1500*time.Millisecond, 3*time.Second)

	s.logger.Info("page loaded", "url", url)
	return nil
}

// Content returns the full serialized HTML of the current page.
func (s *Session) Content() (string, error) {
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

// Evaluate runs a script in the page and returns its result.
func (s *Session) Evaluate(script string) (any, error) {
	return s.page.Evaluate(script)
}

// MoveMouse moves the pointer to absolute page coordinates.
func (s *Session) MoveMouse(x, y float64) error {
	return s.page.Mouse().Move(x, y)
}

// ViewportSize reports the page viewport, ok=false when the page has none.
func (s *Session) ViewportSize() (int, int, bool) {
	size := s.page.ViewportSize()
	if size == nil {
		return 0, 0, false
	}
	return size.Width, size.Height, true
}

// Close releases page, context, browser and the driver in that order. It is
// safe to call after a partial failure and reports every close error.
func (s *Session) Close() error {
	var errs []error

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

func (s *Session) pause(min, max time.Duration) {
	if max <= min {
		s.sleep(min)
		return
	}
	s.sleep(min + time.Duration(s.rng.Int63n(int64(max-min))))
}

func chooseUserAgent(rng *rand.Rand, agents []string, rotate bool) string {
	if len(agents) == 0 {
		return defaultUserAgent
	}
	if rotate {
		return agents[rng.Intn(len(agents))]
	}
	return agents[0]
}

func stealthHeaders(acceptLanguage string) map[string]string {
	if acceptLanguage == "" {
		acceptLanguage = "en-US,en;q=0.9"
	}
	return map[string]string{
		"Accept-Language":           acceptLanguage,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Encoding":           "gzip, deflate, br",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Cache-Control":             "max-age=0",
	}
}

func waitUntilState(name string) *playwright.WaitUntilState {
	switch name {
	case "load":
		return playwright.WaitUntilStateLoad
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateNetworkidle
	}
}
