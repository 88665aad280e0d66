package utility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/storage/storagemock"
	"github.com/raterudder/cezhdo/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMapAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown command without remote", func(t *testing.T) {
		m := NewMap(nil, nil, prague, time.Hour)
		assert.False(t, m.RemoteEnabled())
		_, err := m.Add(ctx, types.BindingConfig{Command: "A1B5DP6", Region: "stred"})
		assert.ErrorIs(t, err, ErrInvalidSchedule)
		assert.Empty(t, m.List())
	})

	t.Run("invalid region", func(t *testing.T) {
		m := NewMap(nil, nil, prague, time.Hour)
		_, err := m.Add(ctx, types.BindingConfig{Command: "ZAV1", Region: "bratislava"})
		assert.ErrorIs(t, err, ErrInvalidSchedule)
		assert.ErrorContains(t, err, "Region")
	})

	t.Run("remote binding unavailable after failed first fetch", func(t *testing.T) {
		f := &fakeFetcher{err: errors.New("offline")}
		m := NewMap(storage.NewMemory(), f, prague, time.Hour)
		b, err := m.Add(ctx, types.BindingConfig{Command: "A1B5DP6", Region: "stred"})
		require.NoError(t, err)
		assert.False(t, b.Available())
		assert.Equal(t, 1, f.calls)
	})

	t.Run("persists", func(t *testing.T) {
		db := storage.NewMemory()
		m := NewMap(db, nil, prague, time.Hour)
		_, err := m.Add(ctx, types.BindingConfig{Command: "zav1", Region: "zapad", LowTariffPrice: 2})
		require.NoError(t, err)

		stored, err := db.GetBinding(ctx, "zapad_ZAV1")
		require.NoError(t, err)
		assert.Equal(t, types.CurrentBindingVersion, stored.Version)
		assert.Equal(t, 2.0, stored.Config.LowTariffPrice)

		b, ok := m.Get("zapad_ZAV1")
		require.True(t, ok)
		assert.Equal(t, "ZAV1", b.Config().Command)
	})

	t.Run("save failure", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("SetBinding", mock.Anything, mock.Anything, types.CurrentBindingVersion).Return(errors.New("down"))
		m := NewMap(db, nil, prague, time.Hour)
		_, err := m.Add(ctx, types.BindingConfig{Command: "ZAV1", Region: "zapad"})
		assert.ErrorContains(t, err, "down")
		_, ok := m.Get("zapad_ZAV1")
		assert.False(t, ok)
		db.AssertExpectations(t)
	})
}

func TestMapRemove(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemory()
	m := NewMap(db, nil, prague, time.Hour)
	m.static = []types.BindingConfig{{Command: "EMOV1", Region: "morava"}}
	require.NoError(t, m.Load(ctx))

	_, err := m.Add(ctx, types.BindingConfig{Command: "ZAV1", Region: "zapad"})
	require.NoError(t, err)
	require.Len(t, m.List(), 2)

	require.NoError(t, m.Remove(ctx, "zapad_ZAV1"))
	assert.ErrorIs(t, m.Remove(ctx, "zapad_ZAV1"), storage.ErrBindingNotFound)

	// configured bindings are not stored but can still be removed
	require.NoError(t, m.Remove(ctx, "morava_EMOV1"))
	assert.Empty(t, m.List())

	t.Run("without storage", func(t *testing.T) {
		m := NewMap(nil, nil, prague, time.Hour)
		_, err := m.Add(ctx, types.BindingConfig{Command: "ZAV1", Region: "zapad"})
		require.NoError(t, err)
		require.NoError(t, m.Remove(ctx, "zapad_ZAV1"))
		assert.ErrorIs(t, m.Remove(ctx, "zapad_ZAV1"), storage.ErrBindingNotFound)
	})
}

func TestMapLoad(t *testing.T) {
	ctx := context.Background()
	db := &storagemock.MockDatabase{}
	db.On("ListBindings", mock.Anything).Return([]storage.StoredBinding{
		{Config: types.BindingConfig{Command: "chlv1", Region: "Stred"}, Version: 0},
		{Config: types.BindingConfig{Command: "ZAV1", Region: "zapad"}, Version: types.CurrentBindingVersion},
		{Config: types.BindingConfig{Command: "NOPE", Region: "zapad"}, Version: types.CurrentBindingVersion},
	}, nil)
	db.On("DeleteBinding", mock.Anything, "Stred_chlv1").Return(nil)
	db.On("SetBinding", mock.Anything, types.BindingConfig{Command: "CHLV1", Region: "stred"}, types.CurrentBindingVersion).Return(nil)

	m := NewMap(db, nil, prague, time.Hour)
	m.static = []types.BindingConfig{{Command: "EMOV1", Region: "morava"}}
	require.NoError(t, m.Load(ctx))

	var ids []string
	for _, b := range m.List() {
		ids = append(ids, b.ID())
	}
	assert.Equal(t, []string{"morava_EMOV1", "stred_CHLV1", "zapad_ZAV1"}, ids)
	db.AssertExpectations(t)
	db.AssertNumberOfCalls(t, "SetBinding", 1)

	t.Run("list failure", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListBindings", mock.Anything).Return([]storage.StoredBinding(nil), errors.New("down"))
		m := NewMap(db, nil, prague, time.Hour)
		assert.ErrorContains(t, m.Load(ctx), "down")
	})
}

func TestMapRefreshAll(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{payload: testPayload}
	m := NewMap(nil, f, prague, time.Hour)

	_, err := m.Add(ctx, types.BindingConfig{Command: "A1B5DP6", Region: "stred"})
	require.NoError(t, err)
	_, err = m.Add(ctx, types.BindingConfig{Command: "CHLV1", Region: "stred"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	// the gate opened by Add is still closed
	require.NoError(t, m.RefreshAll(ctx, time.Now()))
	assert.Equal(t, 1, f.calls)

	f.err = errors.New("offline")
	err = m.RefreshAll(ctx, time.Now().Add(2*time.Hour))
	assert.ErrorContains(t, err, "stred_A1B5DP6")
	assert.Equal(t, 2, f.calls)
}
