// Package quota enforces admission control for unauthenticated (guest)
// uploads: a per-file size cap and a per-IP daily counter backed by the
// key-value store. Quota reads fail open — store unavailability never
// blocks a legitimate upload.
package quota

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/kv"
)

// counterTTL expires a day's counter; combined with the calendar-day key
// this gives a natural daily reset without a reset job.
const counterTTL = 24 * time.Hour

// Guard is the guest-upload admission check.
type Guard struct {
	store       kv.Store
	enabled     bool
	maxFileSize int64
	dailyLimit  int64
	now         func() time.Time
}

// NewGuard creates a Guard. dailyLimit counts uploads per IP per UTC day.
func NewGuard(store kv.Store, enabled bool, maxFileSize, dailyLimit int64) *Guard {
	return &Guard{
		store:       store,
		enabled:     enabled,
		maxFileSize: maxFileSize,
		dailyLimit:  dailyLimit,
		now:         time.Now,
	}
}

// counterKey is "guest:{ip}:{YYYY-MM-DD}" over the UTC calendar day.
func (g *Guard) counterKey(clientIP string) string {
	return fmt.Sprintf("guest:%s:%s", clientIP, g.now().UTC().Format("2006-01-02"))
}

// Decision is the outcome of an allowed admission check.
type Decision struct {
	Remaining int64 `json:"remaining"`
}

// CheckGuestUpload admits or rejects an unauthenticated upload of
// fileSize bytes from clientIP.
func (g *Guard) CheckGuestUpload(ctx context.Context, clientIP string, fileSize int64) (*Decision, error) {
	if !g.enabled {
		return nil, apperror.Auth("guest uploads are disabled")
	}
	if fileSize > g.maxFileSize {
		return nil, apperror.TooLarge(fmt.Sprintf("guest uploads are limited to %d bytes", g.maxFileSize))
	}

	var count int64
	raw, err := g.store.Get(ctx, g.counterKey(clientIP))
	switch err {
	case nil:
		count, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			log.Printf("quota: corrupt counter for %s, failing open: %v", clientIP, err)
			count = 0
		}
	case kv.ErrNotFound:
		count = 0
	default:
		// Fail open: quota-store unavailability must not block uploads.
		log.Printf("quota: counter read failed, failing open: %v", err)
		return &Decision{Remaining: g.dailyLimit}, nil
	}

	if count >= g.dailyLimit {
		return nil, apperror.RateLimited("daily guest upload limit reached")
	}
	return &Decision{Remaining: g.dailyLimit - count}, nil
}

// Outcome is the result of a best-effort counter increment. From the
// caller's perspective the increment is always accepted; a swallowed
// store failure is reported only through Err for logging.
type Outcome struct {
	Count int64
	Err   error
}

// IncrementGuestCount bumps the caller's daily counter, best-effort.
func (g *Guard) IncrementGuestCount(ctx context.Context, clientIP string) Outcome {
	n, err := g.store.Incr(ctx, g.counterKey(clientIP), counterTTL)
	if err != nil {
		log.Printf("quota: increment for %s failed (swallowed): %v", clientIP, err)
		return Outcome{Err: err}
	}
	return Outcome{Count: n}
}
