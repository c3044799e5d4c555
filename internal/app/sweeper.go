/**
 * @description
 * Cron-driven sweeper for abandoned checkout attempts. Storage entries
 * expire on their own; the sweeper's job is to close the modal belonging to
 * an attempt that went idle, so the tracked handle and the scroll-lock flag
 * are released even when Close is never called.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: The cron scheduler.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically closes attempts that have been idle past the TTL.
type Sweeper struct {
	cron     *cron.Cron
	orch     *Orchestrator
	schedule string
	ttl      time.Duration
}

// NewSweeper creates a sweeper running on the given cron schedule.
func NewSweeper(orch *Orchestrator, schedule string, ttl time.Duration) *Sweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Sweeper{
		cron:     c,
		orch:     orch,
		schedule: schedule,
		ttl:      ttl,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.SweepOnce); err != nil {
		log.Printf("level=error component=sweeper msg=\"failed to schedule sweep job\" schedule=%q err=%v", s.schedule, err)
		return
	}
	log.Printf("level=info component=sweeper msg=\"sweep job scheduled\" schedule=%q ttl=%s", s.schedule, s.ttl)
	s.cron.Start()
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// SweepOnce closes every attempt idle past the TTL.
func (s *Sweeper) SweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := s.orch.repo.ListAttemptIDs(ctx)
	if err != nil {
		log.Printf("level=warn component=sweeper msg=\"failed to list attempts\" err=%v", err)
		return
	}

	cutoff := time.Now().UTC().Add(-s.ttl)
	closed := 0
	for _, id := range ids {
		attempt, err := s.orch.repo.GetAttempt(ctx, id)
		if err != nil {
			continue
		}
		if attempt.LastActiveAt.After(cutoff) {
			continue
		}
		if err := s.orch.Close(ctx, id); err != nil {
			log.Printf("level=warn component=sweeper msg=\"failed to close idle attempt\" attempt_id=%s err=%v", id, err)
			continue
		}
		closed++
	}
	if closed > 0 {
		log.Printf("level=info component=sweeper msg=\"idle attempts closed\" count=%d", closed)
	}
}
