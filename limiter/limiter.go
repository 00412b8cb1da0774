// Package limiter paces outgoing requests to a collaborator, persisting the
// next-allowed-request time to a file so a backoff survives process
// restarts.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

func New(filename string, delay time.Duration) *Limiter {
	return &Limiter{
		filename: filename,
		delay:    delay,
	}
}

type Limiter struct {
	filename string
	delay    time.Duration
	nextAt   time.Time
}

// Load restores a persisted backoff from a previous run, if any.
func (lim *Limiter) Load() error {
	bs, err := os.ReadFile(lim.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error reading limiter file: %w", err)
	}

	lim.nextAt, err = time.Parse(time.UnixDate, string(bs))
	if err != nil {
		return fmt.Errorf("error parsing limiter file: %w", err)
	}

	return nil
}

// Wait blocks until the next request is allowed, then clears any persisted
// backoff.
func (lim *Limiter) Wait(ctx context.Context) error {
	if lim.nextAt.IsZero() {
		return nil
	}

	now := time.Now()
	dur := lim.nextAt.Sub(now)
	if dur > time.Second {
		log.Printf("waiting %s until %s",
			dur.Truncate(time.Second),
			lim.nextAt.Format(time.StampMilli))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
	}

	if err := os.Remove(lim.filename); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		return err
	}
	lim.nextAt = time.Time{}

	return nil
}

// Backoff records a server-requested wait, like a Retry-After header value
// in seconds, and persists it so the wait is honored across restarts.
func (lim *Limiter) Backoff(secondsStr string) error {
	if secondsStr == "" {
		secondsStr = "60"
	}
	seconds, err := strconv.ParseInt(secondsStr, 10, 64)
	if err != nil {
		return err
	}
	lim.nextAt = time.Now().Add(time.Duration(seconds)*time.Second + time.Second)
	if err := os.WriteFile(lim.filename, []byte(lim.nextAt.Format(time.UnixDate)), 0666); err != nil {
		return err
	}
	return nil
}

// Delay schedules the configured inter-request gap before the next call.
func (lim *Limiter) Delay() {
	lim.nextAt = time.Now().Add(lim.delay)
}
