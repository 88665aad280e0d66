package utility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/catalog"
	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
)

// Configured sets up the binding map based on flags.
func Configured(db storage.Database) *Map {
	tz := lflag.String("timezone", "Europe/Prague", "Time zone HDO schedules are evaluated in")
	interval := lflag.Duration("refresh-interval", time.Hour, "Minimum interval between remote schedule fetches")
	remote := lflag.Bool("remote-schedules", false, "Fetch schedules of non-preset commands from CEZ Distribuce")
	var static []types.BindingConfig
	lflag.JSON(&static, "bindings", static, "JSON list of bindings to load at startup, e.g. [{\"region\":\"stred\",\"command\":\"CHLV1\"}]")

	cez := configuredCEZ()
	m := NewMap(db, nil, time.UTC, time.Hour)

	lflag.Do(func() {
		loc, err := time.LoadLocation(*tz)
		if err != nil {
			panic(fmt.Errorf("failed to load timezone %q: %w", *tz, err))
		}
		m.loc = loc
		m.interval = *interval
		if *remote {
			if err := cez.Validate(); err != nil {
				panic(fmt.Sprintf("cez validation failed: %v", err))
			}
			m.fetcher = cez
		}
		m.static = static
	})

	return m
}

// Map manages the active bindings.
type Map struct {
	mu       sync.Mutex
	bindings map[string]*Binding

	db       storage.Database
	fetcher  Fetcher
	loc      *time.Location
	interval time.Duration

	// bindings from configuration, loaded but never persisted
	static []types.BindingConfig
}

// NewMap creates a Map. A nil fetcher disables remote schedules so only
// preset commands can be bound. db may be nil.
func NewMap(db storage.Database, fetcher Fetcher, loc *time.Location, interval time.Duration) *Map {
	return &Map{
		bindings: make(map[string]*Binding),
		db:       db,
		fetcher:  fetcher,
		loc:      loc,
		interval: interval,
	}
}

// Location returns the time zone schedules are evaluated in.
func (m *Map) Location() *time.Location {
	return m.loc
}

// RemoteEnabled reports whether non-preset commands can be bound.
func (m *Map) RemoteEnabled() bool {
	return m.fetcher != nil
}

func (m *Map) newBinding(cfg types.BindingConfig) (*Binding, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	b := &Binding{
		cfg: cfg,
		loc: m.loc,
		db:  m.db,
	}
	if s, ok := catalog.Lookup(cfg.Command); ok {
		b.source = SourceCatalog
		b.set(s, time.Time{})
		return b, nil
	}
	if m.fetcher == nil {
		return nil, fmt.Errorf("%w: %s is not a preset and remote schedules are disabled", ErrInvalidSchedule, cfg.Command)
	}
	b.source = SourceRemote
	b.fetcher = m.fetcher
	b.gate = newRefreshGate(m.interval)
	return b, nil
}

// Add validates and binds cfg, persists it and, for remote bindings,
// attempts the first fetch. A failed first fetch is logged and the binding
// is returned unavailable.
func (m *Map) Add(ctx context.Context, cfg types.BindingConfig) (*Binding, error) {
	return m.add(ctx, cfg, true)
}

func (m *Map) add(ctx context.Context, cfg types.BindingConfig, persist bool) (*Binding, error) {
	b, err := m.newBinding(cfg)
	if err != nil {
		return nil, err
	}
	if persist && m.db != nil {
		if err := m.db.SetBinding(ctx, b.cfg, types.CurrentBindingVersion); err != nil {
			return nil, fmt.Errorf("failed to save binding: %w", err)
		}
	}

	m.mu.Lock()
	m.bindings[b.ID()] = b
	m.mu.Unlock()

	log.Ctx(ctx).InfoContext(
		ctx,
		"bound hdo schedule",
		slog.String("binding", b.ID()),
		slog.String("source", string(b.source)),
	)

	// errors are already logged and the binding stays unavailable until the
	// next allowed refresh
	_, _ = b.Refresh(ctx, time.Now())
	return b, nil
}

// Remove unbinds id and deletes it from storage.
func (m *Map) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.bindings[id]
	delete(m.bindings, id)
	m.mu.Unlock()

	if m.db != nil {
		err := m.db.DeleteBinding(ctx, id)
		// configured bindings are not in storage
		if err != nil && !(ok && errors.Is(err, storage.ErrBindingNotFound)) {
			return err
		}
		return nil
	}
	if !ok {
		return storage.ErrBindingNotFound
	}
	return nil
}

// Get returns the binding with the given id.
func (m *Map) Get(id string) (*Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[id]
	return b, ok
}

// List returns all bindings sorted by ID.
func (m *Map) List() []*Binding {
	m.mu.Lock()
	out := make([]*Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Load binds every stored binding, migrating old versions, followed by the
// bindings from configuration. Bindings that fail to bind are logged and
// skipped.
func (m *Map) Load(ctx context.Context) error {
	if m.db != nil {
		stored, err := m.db.ListBindings(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bindings: %w", err)
		}
		for _, sb := range stored {
			cfg, migrated, err := types.MigrateBinding(sb.Config, sb.Version)
			if err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to migrate binding", slog.String("binding", sb.Config.ID()), slog.Any("error", err))
				continue
			}
			if migrated {
				log.Ctx(ctx).InfoContext(
					ctx,
					"migrated binding",
					slog.String("binding", cfg.ID()),
					slog.Int("from", sb.Version),
					slog.Int("to", types.CurrentBindingVersion),
				)
				if cfg.ID() != sb.Config.ID() {
					if err := m.db.DeleteBinding(ctx, sb.Config.ID()); err != nil {
						log.Ctx(ctx).ErrorContext(ctx, "failed to delete pre-migration binding", slog.Any("error", err))
					}
				}
			}
			if _, err := m.add(ctx, cfg, migrated || sb.Version < types.CurrentBindingVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to load binding", slog.String("binding", cfg.ID()), slog.Any("error", err))
			}
		}
	}

	for _, cfg := range m.static {
		if _, err := m.add(ctx, cfg, false); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load configured binding", slog.String("binding", cfg.ID()), slog.Any("error", err))
		}
	}
	return nil
}

// RefreshAll refreshes every remote binding whose refresh gate is open.
func (m *Map) RefreshAll(ctx context.Context, now time.Time) error {
	var errs []error
	for _, b := range m.List() {
		if _, err := b.Refresh(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
