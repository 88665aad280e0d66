package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/types"
)

var (
	ErrBindingNotFound  = errors.New("binding not found")
	ErrScheduleNotFound = errors.New("schedule not found")
)

// StoredBinding is a binding config together with the version it was
// written with.
type StoredBinding struct {
	Config  types.BindingConfig
	Version int
}

// StoredSchedule is the last successfully fetched remote payload for a
// region and command code.
type StoredSchedule struct {
	Region    string
	Code      string
	Payload   []byte
	FetchedAt time.Time
}

// Database defines the interface for persisting bindings and schedules.
type Database interface {
	// Bindings
	GetBinding(ctx context.Context, id string) (StoredBinding, error)
	ListBindings(ctx context.Context) ([]StoredBinding, error)
	SetBinding(ctx context.Context, cfg types.BindingConfig, version int) error
	DeleteBinding(ctx context.Context, id string) error

	// Last known good remote payloads
	GetSchedule(ctx context.Context, region, code string) (StoredSchedule, error)
	SetSchedule(ctx context.Context, s StoredSchedule) error

	// Lifecycle
	Close() error
}

func scheduleKey(region, code string) string {
	return region + "_" + code
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "memory", "Storage provider to use (available: memory, firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "memory":
			p.Database = NewMemory()
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
