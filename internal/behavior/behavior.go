// Package behavior drives randomized scroll, pointer and delay sequences
// against a live page so a session's interaction timing resembles a person's.
// All operations block the calling goroutine for real elapsed time; issuing
// them concurrently would itself be a detectable anomaly.
package behavior

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
)

// Page is the minimal page surface the simulator drives.
type Page interface {
	Evaluate(script string) (any, error)
	MoveMouse(x, y float64) error
	ViewportSize() (width, height int, ok bool)
}

type Simulator struct {
	page   Page
	cfg    config.BehaviorConfig
	rng    *rand.Rand
	sleep  func(time.Duration)
	logger *slog.Logger
}

func New(page Page, cfg config.BehaviorConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		page:   page,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  time.Sleep,
		logger: logger.With("component", "behavior"),
	}
}

// Delay blocks for a duration drawn uniformly from [min, max]. Non-positive
// bounds fall back to the configured action delay range.
func (s *Simulator) Delay(min, max time.Duration) {
	if min <= 0 {
		min = s.cfg.ActionDelayMin
	}
	if max <= 0 {
		max = s.cfg.ActionDelayMax
	}
	s.pause(min, max)
}

// Scroll performs the given number of scroll iterations, each moving the
// page by a random amount from the configured pixel range and pausing for
// a random delay from the configured delay range.
func (s *Simulator) Scroll(times int) error {
	for i := 0; i < times; i++ {
		amount := s.intBetween(s.cfg.ScrollAmountMin, s.cfg.ScrollAmountMax)
		if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", amount)); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		s.pause(s.cfg.ScrollDelayMin, s.cfg.ScrollDelayMax)
	}
	return nil
}

// ScrollToBottom scrolls in randomized 300-800px increments until the
// document height stops growing, waiting a jittered pause between increments
// so lazy-loaded content has time to render. The loop is bounded by the
// configured cap so a page that keeps growing cannot hold the run forever.
func (s *Simulator) ScrollToBottom(pause time.Duration) error {
	lastHeight, err := s.pageHeight()
	if err != nil {
		return err
	}

	jitterMin := time.Duration(float64(pause) * 0.7)
	jitterMax := time.Duration(float64(pause) * 1.3)

	for i := 0; i < s.cfg.MaxScrollLoops; i++ {
		increment := s.intBetween(300, 800)
		if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", increment)); err != nil {
			return fmt.Errorf("scroll increment: %w", err)
		}

		s.pause(jitterMin, jitterMax)

		height, err := s.pageHeight()
		if err != nil {
			return err
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
	}

	s.logger.Warn("page height never settled, stopping scroll", "loops", s.cfg.MaxScrollLoops)
	return nil
}

// MoveMouse moves the pointer to a random point inside the viewport, inset
// 100px from each edge. A nil viewport or disabled mouse movement is a no-op.
func (s *Simulator) MoveMouse() error {
	if !s.cfg.MouseMovement {
		return nil
	}

	width, height, ok := s.page.ViewportSize()
	if !ok || width <= 200 || height <= 200 {
		return nil
	}

	x := s.intBetween(100, width-100)
	y := s.intBetween(100, height-100)
	if err := s.page.MoveMouse(float64(x), float64(y)); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}

	s.pause(100*time.Millisecond, 300*time.Millisecond)
	return nil
}

// SimulateReading holds on the page for the given duration, issuing pointer
// moves and occasional small scroll jitters. A non-positive duration draws
// a random 2-5s reading time.
func (s *Simulator) SimulateReading(duration time.Duration) error {
	if duration <= 0 {
		duration = s.durationBetween(2*time.Second, 5*time.Second)
	}

	for elapsed := time.Duration(0); elapsed < duration; {
		if s.cfg.MouseMovement {
			if err := s.MoveMouse(); err != nil {
				return err
			}
		}

		if s.rng.Float64() > 0.7 {
			jitter := s.intBetween(-50, 150)
			if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", jitter)); err != nil {
				return fmt.Errorf("reading scroll: %w", err)
			}
		}

		elapsed += s.pause(500*time.Millisecond, 1500*time.Millisecond)
	}
	return nil
}

// SimulateBrowsing runs the given number of browse rounds, each a short
// scroll burst, a reading pause and sometimes a pointer move.
func (s *Simulator) SimulateBrowsing(rounds int) error {
	for i := 0; i < rounds; i++ {
		if err := s.Scroll(s.intBetween(1, 2)); err != nil {
			return err
		}

		if err := s.SimulateReading(s.durationBetween(1*time.Second, 3*time.Second)); err != nil {
			return err
		}

		if s.rng.Float64() > 0.5 {
			if err := s.MoveMouse(); err != nil {
				return err
			}
		}

		s.pause(500*time.Millisecond, 2*time.Second)
	}
	return nil
}

func (s *Simulator) pageHeight() (float64, error) {
	result, err := s.page.Evaluate("document.body.scrollHeight")
	if err != nil {
		return 0, fmt.Errorf("read page height: %w", err)
	}
	return asFloat(result), nil
}

func (s *Simulator) pause(min, max time.Duration) time.Duration {
	d := s.durationBetween(min, max)
	s.sleep(d)
	return d
}

func (s *Simulator) durationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

// intBetween draws from [min, max] inclusive.
func (s *Simulator) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
