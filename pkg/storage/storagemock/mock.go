package storagemock

import (
	"context"

	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetBinding(ctx context.Context, id string) (storage.StoredBinding, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(storage.StoredBinding), args.Error(1)
	}
	return storage.StoredBinding{}, storage.ErrBindingNotFound
}

func (m *MockDatabase) ListBindings(ctx context.Context) ([]storage.StoredBinding, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]storage.StoredBinding), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SetBinding(ctx context.Context, cfg types.BindingConfig, version int) error {
	args := m.Called(ctx, cfg, version)
	return args.Error(0)
}

func (m *MockDatabase) DeleteBinding(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatabase) GetSchedule(ctx context.Context, region, code string) (storage.StoredSchedule, error) {
	args := m.Called(ctx, region, code)
	if len(args) > 0 {
		return args.Get(0).(storage.StoredSchedule), args.Error(1)
	}
	return storage.StoredSchedule{}, storage.ErrScheduleNotFound
}

func (m *MockDatabase) SetSchedule(ctx context.Context, s storage.StoredSchedule) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
