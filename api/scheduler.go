/*
scheduler.go - Timed status reconciliation scheduler

PURPOSE:
  Runs the beneficiary status sweep once a day at a fixed wall-clock time
  in a configured timezone. The sweep itself lives in program.ReconcileAll
  and is also reachable inline (server.go) and manually (admin endpoint);
  this component only owns the timing.

DESIGN:
  - Explicit Start/Stop lifecycle, independent of the process entry point
  - Injectable Clock so tests never wait for wall-clock time
  - A sweep failure is logged; the next run is always scheduled
  - A tick that arrives while a sweep is still running is skipped; the
    sweep is a pure function of current state, so nothing is lost

USAGE:
  scheduler, err := NewStatusScheduler(store, "02:00", "Africa/Addis_Ababa")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - program/reconcile.go: the sweep itself
  - server.go: inlineReconcile middleware
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/careflow/nutrition-engine/program"
)

// Clock abstracts time for the scheduler so tests can drive it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// StatusScheduler flips beneficiaries to completed on a daily schedule.
type StatusScheduler struct {
	Beneficiaries program.BeneficiaryStore
	SweepHour     int
	SweepMinute   int
	Location      *time.Location
	Clock         Clock

	mu       sync.Mutex
	stop     chan struct{}
	wg       sync.WaitGroup
	running  bool
	sweeping bool
}

// NewStatusScheduler creates a scheduler firing daily at sweepTime
// ("HH:MM") in the named IANA timezone.
func NewStatusScheduler(store program.BeneficiaryStore, sweepTime, timezone string) (*StatusScheduler, error) {
	t, err := time.Parse("15:04", sweepTime)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep time %q (use HH:MM): %w", sweepTime, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	return &StatusScheduler{
		Beneficiaries: store,
		SweepHour:     t.Hour(),
		SweepMinute:   t.Minute(),
		Location:      loc,
		Clock:         systemClock{},
	}, nil
}

// Start begins the scheduler. Safe to call once; subsequent calls are
// no-ops until Stop.
func (s *StatusScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started, daily sweep at %02d:%02d %s",
		s.SweepHour, s.SweepMinute, s.Location)
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *StatusScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("[Scheduler] Stopped")
}

func (s *StatusScheduler) run() {
	defer s.wg.Done()

	for {
		now := s.Clock.Now().In(s.Location)
		next := s.NextRunAfter(now)

		select {
		case <-s.Clock.After(next.Sub(now)):
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// NextRunAfter returns the next scheduled sweep time strictly after now.
func (s *StatusScheduler) NextRunAfter(now time.Time) time.Time {
	now = now.In(s.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.SweepHour, s.SweepMinute, 0, 0, s.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunNow triggers an immediate sweep (for admin/testing).
func (s *StatusScheduler) RunNow() {
	s.sweep()
}

func (s *StatusScheduler) sweep() {
	s.mu.Lock()
	if s.sweeping {
		// Previous sweep still in flight; the next tick will catch up.
		s.mu.Unlock()
		log.Println("[Scheduler] Sweep still running, skipping tick")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	res, err := program.ReconcileAll(context.Background(), s.Beneficiaries)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
		return
	}
	if res.Flipped > 0 || res.Failed > 0 {
		log.Printf("[Scheduler] Sweep completed: %d examined, %d completed, %d failed",
			res.Examined, res.Flipped, res.Failed)
	}
}
