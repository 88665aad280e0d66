package utility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raterudder/cezhdo/pkg/hdo"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var prague = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		panic(err)
	}
	return loc
}()

type fakeFetcher struct {
	calls   int
	payload string
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, region, code string) (hdo.Schedule, []byte, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	s, err := hdo.ParsePayload([]byte(f.payload))
	if err != nil {
		return nil, nil, err
	}
	return s, []byte(f.payload), nil
}

func TestCatalogBinding(t *testing.T) {
	m := NewMap(nil, nil, prague, time.Hour)
	b, err := m.Add(context.Background(), types.BindingConfig{
		Command:         "chlv1",
		Region:          "regionStred",
		LowTariffPrice:  1.2,
		HighTariffPrice: 3.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "stred_CHLV1", b.ID())
	assert.Equal(t, SourceCatalog, b.Source())
	assert.True(t, b.Available())

	t.Run("State", func(t *testing.T) {
		on, err := b.State(time.Date(2024, 3, 4, 12, 0, 0, 0, prague))
		require.NoError(t, err)
		assert.True(t, on)

		on, err = b.State(time.Date(2024, 3, 4, 23, 0, 30, 0, prague))
		require.NoError(t, err)
		assert.False(t, on)
	})

	t.Run("State converts to local time", func(t *testing.T) {
		// 01:30 UTC is 02:30 in Prague in winter, before the 3:00 switch
		on, err := b.State(time.Date(2024, 3, 4, 1, 30, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.False(t, on)
		// 02:30 UTC is 03:30 in Prague
		on, err = b.State(time.Date(2024, 3, 4, 2, 30, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("Price", func(t *testing.T) {
		p, err := b.Price(time.Date(2024, 3, 4, 12, 34, 0, 0, prague))
		require.NoError(t, err)
		assert.Equal(t, "stred_CHLV1", p.BindingID)
		assert.True(t, p.LowTariff)
		assert.Equal(t, 1.2, p.Price)
		assert.Equal(t, time.Date(2024, 3, 4, 12, 0, 0, 0, prague), p.TSStart)
		assert.Equal(t, time.Date(2024, 3, 4, 13, 0, 0, 0, prague), p.TSEnd)

		p, err = b.Price(time.Date(2024, 3, 4, 1, 0, 0, 0, prague))
		require.NoError(t, err)
		assert.False(t, p.LowTariff)
		assert.Equal(t, 3.4, p.Price)
	})

	t.Run("Forecast", func(t *testing.T) {
		f, err := b.Forecast(time.Date(2024, 3, 4, 12, 34, 0, 0, prague))
		require.NoError(t, err)
		require.Len(t, f, hdo.ForecastHours)
		assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, prague), f[0].TSStart)
		assert.Equal(t, time.Date(2024, 3, 5, 23, 0, 0, 0, prague), f[47].TSStart)

		// only the on and off hours carry markers
		assert.False(t, f[2].LowTariff)
		assert.True(t, f[3].LowTariff)
		assert.Equal(t, 1.2, f[3].Price)
		assert.False(t, f[4].LowTariff)
		assert.Equal(t, 3.4, f[4].Price)
		assert.False(t, f[23].LowTariff)
		assert.True(t, f[27].LowTariff)
	})

	t.Run("Refresh is a no-op", func(t *testing.T) {
		fetched, err := b.Refresh(context.Background(), time.Now())
		assert.NoError(t, err)
		assert.False(t, fetched)
	})
}

func TestRemoteBinding(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, prague)
	cfg := types.BindingConfig{Command: "A1B5DP6", Region: "stred", LowTariffPrice: 1, HighTariffPrice: 2}

	t.Run("fetch and persist", func(t *testing.T) {
		db := storage.NewMemory()
		f := &fakeFetcher{payload: testPayload}
		m := NewMap(db, f, prague, time.Hour)

		b, err := m.newBinding(cfg)
		require.NoError(t, err)
		assert.Equal(t, SourceRemote, b.Source())
		assert.False(t, b.Available())

		_, err = b.State(now)
		assert.ErrorIs(t, err, ErrUnavailable)
		_, err = b.Forecast(now)
		assert.ErrorIs(t, err, ErrUnavailable)

		fetched, err := b.Refresh(ctx, now)
		require.NoError(t, err)
		assert.True(t, fetched)
		assert.True(t, b.Available())
		assert.Equal(t, 1, f.calls)

		on, err := b.State(time.Date(2024, 3, 4, 23, 30, 0, 0, prague))
		require.NoError(t, err)
		assert.True(t, on)

		_, fetchedAt, err := b.Schedule()
		require.NoError(t, err)
		assert.Equal(t, now, fetchedAt)

		stored, err := db.GetSchedule(ctx, "stred", "A1B5DP6")
		require.NoError(t, err)
		assert.Equal(t, testPayload, string(stored.Payload))

		// gated until the interval passes
		fetched, err = b.Refresh(ctx, now.Add(30*time.Minute))
		require.NoError(t, err)
		assert.False(t, fetched)
		assert.Equal(t, 1, f.calls)
		fetched, err = b.Refresh(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, fetched)
		assert.Equal(t, 2, f.calls)
	})

	t.Run("failure keeps last good schedule", func(t *testing.T) {
		f := &fakeFetcher{payload: testPayload}
		m := NewMap(nil, f, prague, time.Hour)
		b, err := m.newBinding(cfg)
		require.NoError(t, err)
		_, err = b.Refresh(ctx, now)
		require.NoError(t, err)
		require.True(t, b.Available())

		f.err = errors.New("boom")
		_, err = b.Refresh(ctx, now.Add(time.Hour))
		assert.ErrorContains(t, err, "boom")
		assert.False(t, b.Available())
		assert.True(t, b.HasSchedule())

		// the cached schedule is still evaluated
		on, err := b.State(time.Date(2024, 3, 4, 23, 30, 0, 0, prague))
		require.NoError(t, err)
		assert.True(t, on)
		p, err := b.Price(time.Date(2024, 3, 4, 23, 30, 0, 0, prague))
		require.NoError(t, err)
		assert.Equal(t, 1.0, p.Price)
		forecast, err := b.Forecast(now)
		require.NoError(t, err)
		assert.Len(t, forecast, 48)
		_, fetchedAt, err := b.Schedule()
		require.NoError(t, err)
		assert.Equal(t, now, fetchedAt)

		f.err = nil
		_, err = b.Refresh(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.True(t, b.Available())
	})

	t.Run("failure falls back to stored payload", func(t *testing.T) {
		db := storage.NewMemory()
		fetched := now.Add(-24 * time.Hour)
		require.NoError(t, db.SetSchedule(ctx, storage.StoredSchedule{
			Region:    "stred",
			Code:      "A1B5DP6",
			Payload:   []byte(testPayload),
			FetchedAt: fetched,
		}))

		f := &fakeFetcher{err: errors.New("offline")}
		m := NewMap(db, f, prague, time.Hour)
		b, err := m.newBinding(cfg)
		require.NoError(t, err)

		_, err = b.Refresh(ctx, now)
		assert.Error(t, err)
		assert.False(t, b.Available())
		require.True(t, b.HasSchedule())
		_, err = b.State(now)
		require.NoError(t, err)
		_, fetchedAt, err := b.Schedule()
		require.NoError(t, err)
		assert.True(t, fetched.Equal(fetchedAt))
	})

	t.Run("failure without stored payload stays unavailable", func(t *testing.T) {
		f := &fakeFetcher{err: errors.New("offline")}
		m := NewMap(storage.NewMemory(), f, prague, time.Hour)
		b, err := m.newBinding(cfg)
		require.NoError(t, err)

		_, err = b.Refresh(ctx, now)
		assert.Error(t, err)
		assert.False(t, b.Available())
		assert.False(t, b.HasSchedule())
	})
}
