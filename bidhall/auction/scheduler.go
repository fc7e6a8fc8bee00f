package auction

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs one cancellable auto-bidding loop per active auction. Each
// loop ticks at a fixed cadence and asks the engine for a round; the loop
// stops as soon as the engine reports the auction done (completed, expired,
// or removed). At most one loop exists per auction id.
type Scheduler struct {
	engine *Engine
	tick   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	loops map[string]context.CancelFunc
}

func NewScheduler(engine *Engine, tick time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		engine: engine,
		tick:   tick,
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[string]context.CancelFunc),
	}
}

// Launch starts the auto-bid loop for an auction. Returns false when a loop
// is already running for it; starting an already-scheduled auction must not
// spawn a second loop.
func (s *Scheduler) Launch(auctionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.loops[auctionID]; running {
		slog.Warn("Auto-bid loop already running",
			slog.String("auction_id", auctionID))
		return false
	}

	loopCtx, loopCancel := context.WithCancel(s.ctx)
	s.loops[auctionID] = loopCancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Auto-bid loop panic",
					slog.String("auction_id", auctionID),
					slog.Any("panic", r))
			}
			s.Stop(auctionID)
		}()
		s.run(loopCtx, auctionID)
	}()

	slog.Info("Auto-bid loop started",
		slog.String("auction_id", auctionID),
		slog.Duration("tick", s.tick))
	return true
}

// Stop cancels the loop for one auction, observable within a tick.
func (s *Scheduler) Stop(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.loops[auctionID]; ok {
		cancel()
		delete(s.loops, auctionID)
	}
}

// Running reports whether an auto-bid loop exists for the auction.
func (s *Scheduler) Running(auctionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[auctionID]
	return ok
}

// Shutdown cancels all loops and waits for them to drain, up to timeout.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Auction scheduler shutdown completed")
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (s *Scheduler) run(ctx context.Context, auctionID string) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done, err := s.engine.Tick(ctx, auctionID)
			if err != nil {
				// One bad round must not kill the auction's
				// liveness; log, keep ticking, retry next beat.
				slog.Error("Auto-bid round failed",
					slog.String("auction_id", auctionID),
					slog.String("error", err.Error()))
				continue
			}
			if done {
				slog.Info("Auto-bid loop finished",
					slog.String("auction_id", auctionID))
				return
			}
		}
	}
}
