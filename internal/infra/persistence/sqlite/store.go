// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory implementation for all collection semantics and snapshots the full
// state into a single table after every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trekcore/internal/infra/persistence/memory"
	"trekcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

var sqliteBuckets = []string{"attractions", "guides", "users", "treks", "bookings", "emergencies"}

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "trekcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		target, ok := snapshotTarget(&snapshot, bucket)
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func snapshotTarget(snapshot *memory.Snapshot, bucket string) (any, bool) {
	switch bucket {
	case "attractions":
		return &snapshot.Attractions, true
	case "guides":
		return &snapshot.Guides, true
	case "users":
		return &snapshot.Users, true
	case "treks":
		return &snapshot.Treks, true
	case "bookings":
		return &snapshot.Bookings, true
	case "emergencies":
		return &snapshot.Emergencies, true
	}
	return nil, false
}

func bucketPayload(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "attractions":
		return json.Marshal(snapshot.Attractions)
	case "guides":
		return json.Marshal(snapshot.Guides)
	case "users":
		return json.Marshal(snapshot.Users)
	case "treks":
		return json.Marshal(snapshot.Treks)
	case "bookings":
		return json.Marshal(snapshot.Bookings)
	case "emergencies":
		return json.Marshal(snapshot.Emergencies)
	}
	return nil, fmt.Errorf("unknown bucket %s", bucket)
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		data, err := bucketPayload(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

func (s *Store) afterMutation(err error) error {
	if err != nil {
		return err
	}
	return s.persist()
}

// AddAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) AddAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	out, err := s.Store.AddAttraction(ctx, a)
	return out, s.afterMutation(err)
}

// UpdateAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	out, err := s.Store.UpdateAttraction(ctx, a)
	return out, s.afterMutation(err)
}

// DeleteAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteAttraction(ctx context.Context, id int) error {
	return s.afterMutation(s.Store.DeleteAttraction(ctx, id))
}

// AddGuide delegates to the in-memory store and snapshots on success.
func (s *Store) AddGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	out, err := s.Store.AddGuide(ctx, g)
	return out, s.afterMutation(err)
}

// UpdateGuide delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	out, err := s.Store.UpdateGuide(ctx, g)
	return out, s.afterMutation(err)
}

// DeleteGuide delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteGuide(ctx context.Context, email string) error {
	return s.afterMutation(s.Store.DeleteGuide(ctx, email))
}

// AddUser delegates to the in-memory store and snapshots on success.
func (s *Store) AddUser(ctx context.Context, u domain.User) (domain.User, error) {
	out, err := s.Store.AddUser(ctx, u)
	return out, s.afterMutation(err)
}

// UpdateUser delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	out, err := s.Store.UpdateUser(ctx, u)
	return out, s.afterMutation(err)
}

// DeleteUser delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	return s.afterMutation(s.Store.DeleteUser(ctx, email))
}

// AddTrek delegates to the in-memory store and snapshots on success.
func (s *Store) AddTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	out, err := s.Store.AddTrek(ctx, t)
	return out, s.afterMutation(err)
}

// UpdateTrek delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	out, err := s.Store.UpdateTrek(ctx, t)
	return out, s.afterMutation(err)
}

// DeleteTrek delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteTrek(ctx context.Context, id int) error {
	return s.afterMutation(s.Store.DeleteTrek(ctx, id))
}

// AddBooking delegates to the in-memory store and snapshots on success.
func (s *Store) AddBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	out, err := s.Store.AddBooking(ctx, b)
	return out, s.afterMutation(err)
}

// DeleteBooking delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteBooking(ctx context.Context, id int) error {
	return s.afterMutation(s.Store.DeleteBooking(ctx, id))
}

// AddEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) AddEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	out, err := s.Store.AddEmergency(ctx, e)
	return out, s.afterMutation(err)
}

// UpdateEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	out, err := s.Store.UpdateEmergency(ctx, e)
	return out, s.afterMutation(err)
}

// DeleteEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteEmergency(ctx context.Context, id int) error {
	return s.afterMutation(s.Store.DeleteEmergency(ctx, id))
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
