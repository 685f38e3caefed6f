package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownTarget = errors.New("unknown target")

const (
	KindStatic  = "static"
	KindDynamic = "dynamic"
)

type Config struct {
	Logging  LoggingConfig
	Browser  BrowserConfig
	Behavior BehaviorConfig
	Scraper  ScraperConfig
	AI       AIConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Targets  map[string]Target
}

type LoggingConfig struct {
	Level  string
	Format string
}

type BrowserConfig struct {
	Headless        bool
	NavigationWait  string
	NavTimeout      time.Duration
	ViewportWidth   int
	ViewportHeight  int
	Locale          string
	TimezoneID      string
	AcceptLanguage  string
	UserAgents      []string
	RotateUserAgent bool
}

type BehaviorConfig struct {
	ScrollDelayMin  time.Duration
	ScrollDelayMax  time.Duration
	ScrollAmountMin int
	ScrollAmountMax int
	ActionDelayMin  time.Duration
	ActionDelayMax  time.Duration
	ScrollPause     time.Duration
	MaxScrollLoops  int
	MouseMovement   bool
}

type ScraperConfig struct {
	MaxProducts  int
	WarmupRounds int
}

type AIConfig struct {
	Provider         string
	OpenAIKey        string
	AnthropicKey     string
	OpenAIModel      string
	AnthropicModel   string
	OpenAIBaseURL    string
	AnthropicBaseURL string
	Temperature      float64
	MaxTokens        int
	RequestTimeout   time.Duration
}

type OutputConfig struct {
	RawPath      string
	EnrichedPath string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsAddr     string
}

// Target describes one scrape target: where to go and how to find fields.
type Target struct {
	Name      string
	URL       string
	Kind      string
	Selectors Selectors
}

type Selectors struct {
	Container    string
	Name         string
	Price        string
	Rating       string
	Availability string
}

func Load() (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Browser: BrowserConfig{
			Headless:        getBoolOrDefault("BROWSER_HEADLESS", true),
			NavigationWait:  getEnvOrDefault("BROWSER_WAIT_UNTIL", "networkidle"),
			NavTimeout:      getDurationOrDefault("BROWSER_NAV_TIMEOUT", 60*time.Second),
			ViewportWidth:   getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:  getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:          getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			TimezoneID:      getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			AcceptLanguage:  getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			UserAgents:      getStringSliceOrDefault("BROWSER_USER_AGENTS", defaultUserAgents()),
			RotateUserAgent: getBoolOrDefault("BROWSER_UA_ROTATION", true),
		},
		Behavior: BehaviorConfig{
			ScrollDelayMin:  getDurationOrDefault("BEHAVIOR_SCROLL_DELAY_MIN", 800*time.Millisecond),
			ScrollDelayMax:  getDurationOrDefault("BEHAVIOR_SCROLL_DELAY_MAX", 2500*time.Millisecond),
			ScrollAmountMin: getIntOrDefault("BEHAVIOR_SCROLL_AMOUNT_MIN", 200),
			ScrollAmountMax: getIntOrDefault("BEHAVIOR_SCROLL_AMOUNT_MAX", 600),
			ActionDelayMin:  getDurationOrDefault("BEHAVIOR_ACTION_DELAY_MIN", 2*time.Second),
			ActionDelayMax:  getDurationOrDefault("BEHAVIOR_ACTION_DELAY_MAX", 5*time.Second),
			ScrollPause:     getDurationOrDefault("BEHAVIOR_SCROLL_PAUSE", 2*time.Second),
			MaxScrollLoops:  getIntOrDefault("BEHAVIOR_MAX_SCROLL_LOOPS", 50),
			MouseMovement:   getBoolOrDefault("BEHAVIOR_MOUSE_MOVEMENT", true),
		},
		Scraper: ScraperConfig{
			MaxProducts:  getIntOrDefault("SCRAPER_MAX_PRODUCTS", 50),
			WarmupRounds: getIntOrDefault("SCRAPER_WARMUP_ROUNDS", 2),
		},
		AI: AIConfig{
			Provider:         getEnvOrDefault("AI_PROVIDER", "openai"),
			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIModel:      getEnvOrDefault("AI_OPENAI_MODEL", "gpt-4-turbo-preview"),
			AnthropicModel:   getEnvOrDefault("AI_ANTHROPIC_MODEL", "claude-3-sonnet-20240229"),
			OpenAIBaseURL:    getEnvOrDefault("AI_OPENAI_BASE_URL", "https://api.openai.com"),
			AnthropicBaseURL: getEnvOrDefault("AI_ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Temperature:      getFloatOrDefault("AI_TEMPERATURE", 0.3),
			MaxTokens:        getIntOrDefault("AI_MAX_TOKENS", 2000),
			RequestTimeout:   getDurationOrDefault("AI_REQUEST_TIMEOUT", 90*time.Second),
		},
		Output: OutputConfig{
			RawPath:      getEnvOrDefault("OUTPUT_RAW_PATH", "output/products_raw.json"),
			EnrichedPath: getEnvOrDefault("OUTPUT_ENRICHED_PATH", "output/products_enriched.json"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:market_intel_runs"),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MetricsAddr:     os.Getenv("METRICS_ADDR"),
		},
		Targets: defaultTargets(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}

	switch c.Browser.NavigationWait {
	case "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("BROWSER_WAIT_UNTIL must be load, domcontentloaded or networkidle, got %q", c.Browser.NavigationWait)
	}

	if c.Behavior.ScrollDelayMin > c.Behavior.ScrollDelayMax {
		return fmt.Errorf("BEHAVIOR_SCROLL_DELAY_MIN cannot exceed BEHAVIOR_SCROLL_DELAY_MAX")
	}
	if c.Behavior.ScrollAmountMin > c.Behavior.ScrollAmountMax {
		return fmt.Errorf("BEHAVIOR_SCROLL_AMOUNT_MIN cannot exceed BEHAVIOR_SCROLL_AMOUNT_MAX")
	}
	if c.Behavior.ActionDelayMin > c.Behavior.ActionDelayMax {
		return fmt.Errorf("BEHAVIOR_ACTION_DELAY_MIN cannot exceed BEHAVIOR_ACTION_DELAY_MAX")
	}
	if c.Behavior.MaxScrollLoops < 1 {
		return fmt.Errorf("BEHAVIOR_MAX_SCROLL_LOOPS must be at least 1")
	}

	if c.Scraper.MaxProducts < 1 {
		return fmt.Errorf("SCRAPER_MAX_PRODUCTS must be at least 1")
	}

	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %v", c.AI.Temperature)
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("AI_MAX_TOKENS must be at least 1")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// Target resolves a named scrape target from the registry.
func (c *Config) Target(name string) (Target, error) {
	target, ok := c.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return target, nil
}

// TargetNames lists the registry in stable order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultTargets() map[string]Target {
	return map[string]Target{
		"books_toscrape": {
			Name: "books_toscrape",
			URL:  "https://books.toscrape.com/catalogue/category/books_1/index.html",
			Kind: KindStatic,
			Selectors: Selectors{
				Container:    "article.product_pod",
				Name:         "h3 a",
				Price:        "p.price_color",
				Rating:       "p.star-rating",
				Availability: "p.availability",
			},
		},
		"amazon_headphones": {
			Name: "amazon_headphones",
			URL:  "https://www.amazon.com/s?k=wireless+headphones",
			Kind: KindDynamic,
			Selectors: Selectors{
				Container:    `div[data-component-type="s-search-result"]`,
				Name:         "h2 a span",
				Price:        "span.a-price span.a-offscreen",
				Rating:       `span[aria-label*="stars"]`,
				Availability: `span[aria-label*="stock"]`,
			},
		},
		"ebay_laptops": {
			Name: "ebay_laptops",
			URL:  "https://www.ebay.com/b/Laptops-Netbooks/175672/bn_1648276",
			Kind: KindDynamic,
			Selectors: Selectors{
				Container:    "div.s-item",
				Name:         "h3.s-item__title",
				Price:        "span.s-item__price",
				Rating:       "span.clipped",
				Availability: "span.s-item__quantity",
			},
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
