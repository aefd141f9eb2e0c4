/*
scheduler.go - Payout due scheduler

PURPOSE:
  Periodically lists installments whose collaborator payout is due (client
  paid, receipt date reached, collaborator not yet paid) and reports them:
  one log line per check plus the payout gauges in metrics.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: never marks anything as paid
  - Checks once immediately on Start

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayoutScheduler(svc, logger)
  scheduler.Reporter = m // *metrics.Metrics
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ListPayoutsDue endpoint (same query, on demand)
  - commission/rules.go: ReceiptDate
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
)

// PayoutReporter receives the result of each check.
type PayoutReporter interface {
	PayoutsDue(count int, total decimal.Decimal)
}

// PayoutScheduler reports due payouts on a fixed interval.
type PayoutScheduler struct {
	Service       *commission.Service
	Logger        *zap.Logger
	Reporter      PayoutReporter // optional
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewPayoutScheduler creates a new scheduler.
func NewPayoutScheduler(svc *commission.Service, logger *zap.Logger) *PayoutScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutScheduler{
		Service:       svc,
		Logger:        logger.Named("payout-scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (ps *PayoutScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Logger.Info("disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)
	go ps.run(ps.ticker, ps.stop)

	ps.Logger.Info("started", zap.Duration("check_interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (ps *PayoutScheduler) Stop() {
	ps.mu.Lock()
	ticker, stop := ps.ticker, ps.stop
	ps.ticker = nil
	ps.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	// RunNow takes mu, so wait without holding it.
	ps.wg.Wait()
	ps.Logger.Info("stopped")
}

func (ps *PayoutScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			ps.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one check as of the service's today and returns the
// number of due payouts and their total.
func (ps *PayoutScheduler) RunNow(ctx context.Context) (int, decimal.Decimal, error) {
	payouts, err := ps.Service.ListPayoutsDue(ctx, "")
	if err != nil {
		ps.Logger.Error("payout check failed", zap.Error(err))
		return 0, decimal.Zero, err
	}

	total := commission.SumPayouts(payouts)
	collaborators := make(map[commission.CollaboratorID]bool)
	for _, p := range payouts {
		collaborators[p.CollaboratorID] = true
	}

	ps.mu.Lock()
	ps.lastRun = time.Now()
	ps.mu.Unlock()

	if ps.Reporter != nil {
		ps.Reporter.PayoutsDue(len(payouts), total)
	}
	ps.Logger.Info("payouts due",
		zap.Stringer("as_of", ps.Service.Today()),
		zap.Int("installments", len(payouts)),
		zap.Int("collaborators", len(collaborators)),
		zap.String("total", total.StringFixedBank(2)),
	)
	return len(payouts), total, nil
}

// NextRunTime returns when the next periodic check is expected.
func (ps *PayoutScheduler) NextRunTime() time.Time {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.lastRun.Add(ps.CheckInterval)
}
