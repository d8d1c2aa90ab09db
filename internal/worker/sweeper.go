package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"flashdeal/pkg/contextx"
	"flashdeal/pkg/logx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type DealDeactivator interface {
	DeactivateExpired(ctx context.Context) (int, error)
}

// Sweeper periodically retires deals whose redemption window has closed.
// Each run is independent and idempotent; a failed run is logged and the
// next tick proceeds as usual.
type Sweeper struct {
	deals  DealDeactivator
	clock  clockwork.Clock
	period time.Duration

	// Control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
}

func NewSweeper(deals DealDeactivator, clock clockwork.Clock, period time.Duration) *Sweeper {
	return &Sweeper{
		deals:  deals,
		clock:  clock,
		period: period,
	}
}

func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("sweeper is already running")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger(sweepCtx).Error("sweeper stopped", logx.Error(err))
		}
	}()

	return nil
}

func (w *Sweeper) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *Sweeper) Run(ctx context.Context) error {
	logger(ctx).Info("expiration sweeper started", slog.Duration("period", w.period))

	ticker := w.clock.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).Info("expiration sweeper stopped")
			return ctx.Err()
		case <-ticker.Chan():
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	count, err := w.deals.DeactivateExpired(ctx)
	if err != nil {
		// Not fatal, the next tick retries the whole sweep.
		logger(ctx).Error("sweep failed", logx.Error(err))
		return
	}

	if count > 0 {
		logger(ctx).Info("deactivated expired deals", slog.Int("count", count))
	}
}
