package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Bindings live in the "bindings" collection and fetched payloads in "schedules".
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func decodeBinding(ctx context.Context, doc *firestore.DocumentSnapshot) (StoredBinding, error) {
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "binding doc missing json", slog.String("bindingID", doc.Ref.ID))
		return StoredBinding{}, fmt.Errorf("binding document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "binding doc json not string", slog.String("bindingID", doc.Ref.ID))
		return StoredBinding{}, fmt.Errorf("binding 'json' field is not a string")
	}

	var cfg types.BindingConfig
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal binding json", slog.String("bindingID", doc.Ref.ID), slog.Any("err", err))
		return StoredBinding{}, fmt.Errorf("failed to unmarshal binding json: %w", err)
	}
	return StoredBinding{Config: cfg, Version: version}, nil
}

// GetBinding retrieves a binding from the "bindings/{id}" document.
func (f *FirestoreProvider) GetBinding(ctx context.Context, id string) (StoredBinding, error) {
	if id == "" {
		return StoredBinding{}, fmt.Errorf("bindingID cannot be empty")
	}
	doc, err := f.client.Collection("bindings").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return StoredBinding{}, ErrBindingNotFound
		}
		return StoredBinding{}, fmt.Errorf("failed to fetch binding doc: %w", err)
	}
	return decodeBinding(ctx, doc)
}

// ListBindings retrieves all bindings ordered by document ID. Malformed
// documents are skipped.
func (f *FirestoreProvider) ListBindings(ctx context.Context) ([]StoredBinding, error) {
	iter := f.client.Collection("bindings").OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var bindings []StoredBinding
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating bindings: %w", err)
		}
		b, err := decodeBinding(ctx, doc)
		if err != nil {
			continue
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// SetBinding saves the binding as a JSON string for portability.
func (f *FirestoreProvider) SetBinding(ctx context.Context, cfg types.BindingConfig, version int) error {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal binding: %w", err)
	}
	_, err = f.client.Collection("bindings").Doc(cfg.ID()).Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save binding: %w", err)
	}
	return nil
}

// DeleteBinding removes the binding document.
func (f *FirestoreProvider) DeleteBinding(ctx context.Context, id string) error {
	ref := f.client.Collection("bindings").Doc(id)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrBindingNotFound
		}
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return nil
}

// GetSchedule retrieves the last stored payload for region and code.
func (f *FirestoreProvider) GetSchedule(ctx context.Context, region, code string) (StoredSchedule, error) {
	doc, err := f.client.Collection("schedules").Doc(scheduleKey(region, code)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return StoredSchedule{}, ErrScheduleNotFound
		}
		return StoredSchedule{}, fmt.Errorf("failed to fetch schedule doc: %w", err)
	}

	var data struct {
		JSON      string    `firestore:"json"`
		FetchedAt time.Time `firestore:"fetchedAt"`
	}
	if err := doc.DataTo(&data); err != nil {
		return StoredSchedule{}, fmt.Errorf("failed to decode schedule doc: %w", err)
	}
	return StoredSchedule{
		Region:    region,
		Code:      code,
		Payload:   []byte(data.JSON),
		FetchedAt: data.FetchedAt,
	}, nil
}

// SetSchedule stores the raw payload so it can be re-parsed after a restart.
func (f *FirestoreProvider) SetSchedule(ctx context.Context, s StoredSchedule) error {
	_, err := f.client.Collection("schedules").Doc(scheduleKey(s.Region, s.Code)).Set(ctx, map[string]interface{}{
		"json":      string(s.Payload),
		"fetchedAt": s.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
