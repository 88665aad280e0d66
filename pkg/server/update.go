package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/mqtt"
	"github.com/raterudder/cezhdo/pkg/utility"
)

// updateLoop runs update immediately and then every updateInterval until
// ctx is done.
func (s *Server) updateLoop(ctx context.Context) {
	s.update(ctx)

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update(ctx)
		}
	}
}

// update refreshes remote schedules whose refresh gate is open and
// publishes the state of every binding.
func (s *Server) update(ctx context.Context) {
	now := s.now()
	for _, b := range s.bindings.List() {
		bctx := log.WithBinding(ctx, b.ID())
		fetched, err := b.Refresh(bctx, now)
		if fetched && s.metrics != nil {
			s.metrics.RecordRefresh(b.ID(), err)
		}
		// removed while refreshing; publishing would announce it again
		if cur, ok := s.bindings.Get(b.ID()); !ok || cur != b {
			continue
		}
		s.publishBinding(bctx, b, now)
	}
}

func (s *Server) publishBinding(ctx context.Context, b *utility.Binding, now time.Time) {
	state := mqtt.State{BindingID: b.ID(), Available: b.Available()}
	if p, err := b.Price(now); err == nil {
		state.HasState = true
		state.LowTariff = p.LowTariff
		state.Price = p.Price
		state.Forecast, _ = b.Forecast(now)
	}

	if s.metrics != nil {
		if state.HasState {
			s.metrics.RecordState(b.ID(), state.Available, state.LowTariff, state.Price)
		} else {
			s.metrics.RecordUnavailable(b.ID())
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, state); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish binding state", slog.Any("error", err))
		}
	}
}
