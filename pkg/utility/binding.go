package utility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/raterudder/cezhdo/pkg/hdo"
	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
)

var (
	// ErrInvalidSchedule is returned when a binding cannot be resolved to a
	// schedule source: the command is not a preset and remote schedules are
	// disabled, or the binding itself does not validate.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrUnavailable is returned by a remote binding that has no schedule,
	// neither fetched nor loaded from storage.
	ErrUnavailable = errors.New("schedule unavailable")
)

// Source names where a binding's schedule comes from.
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceRemote  Source = "remote"
)

type bound struct {
	schedule  hdo.Schedule
	fetchedAt time.Time
}

// Binding evaluates one region/command pair. Catalog bindings hold their
// schedule from construction. Remote bindings obtain it through Refresh and
// keep evaluating the last good copy when a later fetch fails, but report
// themselves unavailable until a fetch succeeds again.
type Binding struct {
	cfg    types.BindingConfig
	loc    *time.Location
	source Source

	fetcher Fetcher
	db      storage.Database
	gate    *refreshGate

	current atomic.Pointer[bound]
	fetchOK atomic.Bool
}

// ID returns the binding identifier.
func (b *Binding) ID() string {
	return b.cfg.ID()
}

// Config returns the normalized configuration of the binding.
func (b *Binding) Config() types.BindingConfig {
	return b.cfg
}

// Source returns where the schedule comes from.
func (b *Binding) Source() Source {
	return b.source
}

// Available reports whether a schedule is bound and, for remote bindings,
// whether the last fetch succeeded. State, Price and Forecast keep serving a
// cached schedule while Available is false.
func (b *Binding) Available() bool {
	if b.current.Load() == nil {
		return false
	}
	return b.source != SourceRemote || b.fetchOK.Load()
}

// HasSchedule reports whether a schedule is bound, fresh or not.
func (b *Binding) HasSchedule() bool {
	return b.current.Load() != nil
}

// Schedule returns a copy of the bound schedule and when it was fetched. The
// time is zero for catalog bindings.
func (b *Binding) Schedule() (hdo.Schedule, time.Time, error) {
	cur := b.current.Load()
	if cur == nil {
		return nil, time.Time{}, ErrUnavailable
	}
	return cur.schedule.Clone(), cur.fetchedAt, nil
}

func (b *Binding) set(s hdo.Schedule, fetchedAt time.Time) {
	b.current.Store(&bound{schedule: s, fetchedAt: fetchedAt})
}

// Refresh fetches the schedule of a remote binding if the refresh gate
// allows it and reports whether a fetch was attempted. Catalog bindings
// never fetch. A failed fetch leaves the current schedule in place; when
// there is none, the last payload persisted in storage is loaded instead.
func (b *Binding) Refresh(ctx context.Context, now time.Time) (bool, error) {
	if b.source != SourceRemote || !b.gate.Allow(now) {
		return false, nil
	}
	ctx = log.WithBinding(ctx, b.ID())

	s, payload, err := b.fetcher.Fetch(ctx, b.cfg.Region, b.cfg.Command)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh hdo schedule", slog.Any("error", err))
		b.fetchOK.Store(false)
		if !b.HasSchedule() {
			b.loadStored(ctx)
		}
		return true, fmt.Errorf("failed to refresh %s: %w", b.ID(), err)
	}
	b.set(s, now)
	b.fetchOK.Store(true)

	if b.db != nil {
		err := b.db.SetSchedule(ctx, storage.StoredSchedule{
			Region:    b.cfg.Region,
			Code:      b.cfg.Command,
			Payload:   payload,
			FetchedAt: now,
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to persist hdo schedule", slog.Any("error", err))
		}
	}
	return true, nil
}

func (b *Binding) loadStored(ctx context.Context) {
	if b.db == nil {
		return
	}
	stored, err := b.db.GetSchedule(ctx, b.cfg.Region, b.cfg.Command)
	if err != nil {
		if !errors.Is(err, storage.ErrScheduleNotFound) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load stored hdo schedule", slog.Any("error", err))
		}
		return
	}
	s, err := hdo.ParsePayload(stored.Payload)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to parse stored hdo schedule", slog.Any("error", err))
		return
	}
	// a concurrent successful fetch wins over the stored copy
	if b.current.CompareAndSwap(nil, &bound{schedule: s, fetchedAt: stored.FetchedAt}) {
		log.Ctx(ctx).InfoContext(
			ctx,
			"using stored hdo schedule",
			slog.Time("fetchedAt", stored.FetchedAt),
		)
	}
}

// State reports whether the low tariff applies at now.
func (b *Binding) State(now time.Time) (bool, error) {
	cur := b.current.Load()
	if cur == nil {
		return false, ErrUnavailable
	}
	return hdo.InstantActive(cur.schedule, now.In(b.loc)), nil
}

func (b *Binding) priceFor(low bool) float64 {
	if low {
		return b.cfg.LowTariffPrice
	}
	return b.cfg.HighTariffPrice
}

// Price returns the tariff applying at now, stamped with the local hour
// that contains now.
func (b *Binding) Price(now time.Time) (types.Price, error) {
	low, err := b.State(now)
	if err != nil {
		return types.Price{}, err
	}
	local := now.In(b.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, b.loc)
	return types.Price{
		BindingID: b.ID(),
		TSStart:   start,
		TSEnd:     start.Add(time.Hour),
		LowTariff: low,
		Price:     b.priceFor(low),
	}, nil
}

// Forecast returns the hourly tariff for today and tomorrow, starting at
// local midnight of now.
func (b *Binding) Forecast(now time.Time) (types.Forecast, error) {
	cur := b.current.Load()
	if cur == nil {
		return nil, ErrUnavailable
	}
	hours := hdo.HourlyForecast(cur.schedule, now.In(b.loc), hdo.ForecastHours)
	out := make(types.Forecast, len(hours))
	for i, h := range hours {
		out[i] = types.Price{
			BindingID: b.ID(),
			TSStart:   h.Start,
			TSEnd:     h.Start.Add(time.Hour),
			LowTariff: h.Active,
			Price:     b.priceFor(h.Active),
		}
	}
	return out, nil
}
