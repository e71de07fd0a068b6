/*
scheduler.go - Background settlement scheduler

PURPOSE:
  Periodically sweeps Confirmed bookings whose stay has ended and
  settles them: marks each Completed, then issues the thank-you
  voucher and accrues reward points. Voucher issuance and point
  accrual are best-effort side effects. A failure there is logged
  and the sweep continues; the completion itself is never rolled
  back. Both operations are idempotent at the store level, so a
  crashed or partial run is safe to repeat.

DESIGN:
  - Ticker-driven loop with a stop channel and WaitGroup for clean
    shutdown.
  - Batches of completionBatchSize per query. A pass keeps draining
    batches until a batch completes nothing, so persistent failures
    cannot spin the loop.
  - RunNow() triggers a synchronous pass for the admin endpoint and
    for tests.

SEE ALSO:
  - booking/service.go: Complete carries the eligibility rule
  - voucher/issuer.go, rewards/ledger.go: the settlement side effects
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/rewards"
	"github.com/stayward/condotel-engine/voucher"
)

// completionBatchSize bounds how many bookings one query pulls.
const completionBatchSize = 100

// DefaultSettlementInterval is how often the sweep runs when the
// config does not say otherwise.
const DefaultSettlementInterval = 1 * time.Hour

// RunSummary reports what one settlement pass did.
type RunSummary struct {
	Completed      int
	Failed         int
	VouchersIssued int
	PointsAccrued  int64
}

// SettlementScheduler drives the periodic completion sweep.
type SettlementScheduler struct {
	bookings *booking.Service
	vouchers *voucher.Issuer
	rewards  *rewards.Ledger
	clock    booking.Clock

	Interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewSettlementScheduler(bookings *booking.Service, vouchers *voucher.Issuer, ledger *rewards.Ledger, clock booking.Clock) *SettlementScheduler {
	return &SettlementScheduler{
		bookings: bookings,
		vouchers: vouchers,
		rewards:  ledger,
		clock:    clock,
		Interval: DefaultSettlementInterval,
	}
}

// Start launches the background loop. Calling Start on a running
// scheduler is a no-op.
func (s *SettlementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.loop()
	log.Printf("[Scheduler] Started (interval: %s)", s.Interval)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *SettlementScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[Scheduler] Stopped")
}

func (s *SettlementScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// One pass immediately on start, then on every tick.
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow executes one settlement pass synchronously and returns what
// it did.
func (s *SettlementScheduler) RunNow(ctx context.Context) RunSummary {
	var summary RunSummary
	today := s.clock.Today()

	for {
		batch, err := s.bookings.Store.ListConfirmedEndedBefore(ctx, today, completionBatchSize)
		if err != nil {
			log.Printf("[Scheduler] Listing ended bookings failed: %v", err)
			break
		}
		if len(batch) == 0 {
			break
		}

		completedInBatch := 0
		for i := range batch {
			if s.settleOne(ctx, &batch[i], &summary) {
				completedInBatch++
			}
		}

		// A batch that completed nothing means every remaining row is
		// failing. Stop rather than re-query the same rows forever.
		if completedInBatch == 0 {
			break
		}
		if len(batch) < completionBatchSize {
			break
		}
	}

	if summary.Completed > 0 || summary.Failed > 0 {
		log.Printf("[Scheduler] Settlement pass: %d completed, %d failed, %d vouchers, %d points",
			summary.Completed, summary.Failed, summary.VouchersIssued, summary.PointsAccrued)
	}
	return summary
}

// settleOne completes one booking and fires its side effects.
// Returns true when the completion itself landed.
func (s *SettlementScheduler) settleOne(ctx context.Context, b *booking.Booking, summary *RunSummary) bool {
	completed, err := s.bookings.Complete(ctx, b.ID)
	if err != nil {
		summary.Failed++
		log.Printf("[Scheduler] Completing booking %s failed: %v", b.ID, err)
		return false
	}
	summary.Completed++

	if v, err := s.vouchers.IssueAfterCompletion(ctx, completed); err != nil {
		log.Printf("[Scheduler] Voucher issuance for booking %s failed: %v", b.ID, err)
	} else if v != nil {
		summary.VouchersIssued++
	}

	if points, err := s.rewards.Accrue(ctx, completed); err != nil {
		log.Printf("[Scheduler] Point accrual for booking %s failed: %v", b.ID, err)
	} else {
		summary.PointsAccrued += points
	}

	return true
}
