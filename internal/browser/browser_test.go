package browser

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.NavTimeout != 60*time.Second {
		t.Errorf("Expected nav timeout to be 60s, got %v", opts.NavTimeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "en-US" {
		t.Errorf("Expected locale to be en-US, got %s", opts.Locale)
	}

	if opts.TimezoneID != "America/New_York" {
		t.Errorf("Expected timezone to be America/New_York, got %s", opts.TimezoneID)
	}
}

func TestChooseUserAgent(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	rng := rand.New(rand.NewSource(7))

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ua := chooseUserAgent(rng, agents, true)
		if !seen[ua] {
			seen[ua] = true
		}
		found := false
		for _, a := range agents {
			if a == ua {
				found = true
			}
		}
		if !found {
			t.Fatalf("chose user agent outside the pool: %s", ua)
		}
	}
	if len(seen) != 3 {
		t.Errorf("Expected rotation to use all 3 agents, used %d", len(seen))
	}

	if ua := chooseUserAgent(rng, agents, false); ua != "agent-a" {
		t.Errorf("Expected first agent without rotation, got %s", ua)
	}

	if ua := chooseUserAgent(rng, nil, true); ua != defaultUserAgent {
		t.Errorf("Expected fallback user agent for empty pool, got %s", ua)
	}
}

func TestStealthHeaders(t *testing.T) {
	headers := stealthHeaders("en-US,en;q=0.9")

	expected := map[string]string{
		"Accept-Language":           "en-US,en;q=0.9",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Cache-Control":             "max-age=0",
	}
	for key, want := range expected {
		if got := headers[key]; got != want {
			t.Errorf("Expected header %s=%q, got %q", key, want, got)
		}
	}

	headers = stealthHeaders("")
	if headers["Accept-Language"] != "en-US,en;q=0.9" {
		t.Errorf("Expected default Accept-Language, got %q", headers["Accept-Language"])
	}
}

func TestStealthScriptMasksAutomationSurfaces(t *testing.T) {
	for _, surface := range []string{
		"navigator, 'webdriver'",
		"navigator, 'plugins'",
		"navigator, 'languages'",
		"window.chrome",
		"permissions.query",
	} {
		if !strings.Contains(stealthScript, surface) {
			t.Errorf("stealth script does not override %s", surface)
		}
	}
}

func TestWaitUntilState(t *testing.T) {
	tests := []struct {
		name string
		want *playwright.WaitUntilState
	}{
		{"load", playwright.WaitUntilStateLoad},
		{"domcontentloaded", playwright.WaitUntilStateDomcontentloaded},
		{"networkidle", playwright.WaitUntilStateNetworkidle},
		{"", playwright.WaitUntilStateNetworkidle},
	}

	for _, tt := range tests {
		if got := waitUntilState(tt.name); got != tt.want {
			t.Errorf("waitUntilState(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
