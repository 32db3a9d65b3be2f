package persist

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateController suppresses duplicate messages before they reach the buffer.
// Each distinct line text gets a token bucket refilling at maxRepeats per
// window with burst maxRepeats, so a repeating message is admitted at most
// maxRepeats times per window and discarded afterwards.
//
// The configuration is an atomically swapped snapshot so reloads never tear.
type rateController struct {
	cfg atomic.Pointer[RateControl]

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newRateController(cfg RateControl) *rateController {
	rc := &rateController{buckets: make(map[string]*rateBucket)}
	rc.cfg.Store(&cfg)
	return rc
}

// reload swaps the configuration. Existing buckets are discarded so the new
// window and repeat limits apply immediately.
func (rc *rateController) reload(cfg RateControl) {
	if cfg.Enabled {
		if cfg.WindowSec <= 0 {
			cfg.WindowSec = 10
		}
		if cfg.MaxRepeats <= 0 {
			cfg.MaxRepeats = 5
		}
	}
	rc.cfg.Store(&cfg)

	rc.mu.Lock()
	rc.buckets = make(map[string]*rateBucket)
	rc.mu.Unlock()
}

// allow reports whether the line may proceed to the buffer. Returns true
// whenever suppression is disabled.
func (rc *rateController) allow(line string) bool {
	cfg := rc.cfg.Load()
	if !cfg.Enabled {
		return true
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	b, ok := rc.buckets[line]
	if !ok {
		per := rate.Limit(float64(cfg.MaxRepeats) / float64(cfg.WindowSec))
		b = &rateBucket{lim: rate.NewLimiter(per, cfg.MaxRepeats)}
		rc.buckets[line] = b
	}
	b.lastSeen = time.Now()
	return b.lim.Allow()
}

// prune drops buckets not seen within maxAge. Called from the idle tick to
// keep the map bounded when line texts churn.
func (rc *rateController) prune(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	for line, b := range rc.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rc.buckets, line)
		}
	}
}
