// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics and snapshots the full state after every mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"trekcore/internal/infra/persistence/memory"
	"trekcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/trekcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var postgresBuckets = []string{"attractions", "guides", "users", "treks", "bookings", "emergencies"}

// Store persists state to Postgres while reusing the in-memory implementation
// for collection semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), ensures the snapshot table exists, and hydrates the in-memory
// store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	targets := map[string]any{
		"attractions": &snapshot.Attractions,
		"guides":      &snapshot.Guides,
		"users":       &snapshot.Users,
		"treks":       &snapshot.Treks,
		"bookings":    &snapshot.Bookings,
		"emergencies": &snapshot.Emergencies,
	}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
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

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
		data, err := bucketPayload(snapshot, bucket)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) afterMutation(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return s.persist(ctx)
}

// AddAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) AddAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	out, err := s.Store.AddAttraction(ctx, a)
	return out, s.afterMutation(ctx, err)
}

// UpdateAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	out, err := s.Store.UpdateAttraction(ctx, a)
	return out, s.afterMutation(ctx, err)
}

// DeleteAttraction delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteAttraction(ctx context.Context, id int) error {
	return s.afterMutation(ctx, s.Store.DeleteAttraction(ctx, id))
}

// AddGuide delegates to the in-memory store and snapshots on success.
func (s *Store) AddGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	out, err := s.Store.AddGuide(ctx, g)
	return out, s.afterMutation(ctx, err)
}

// UpdateGuide delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	out, err := s.Store.UpdateGuide(ctx, g)
	return out, s.afterMutation(ctx, err)
}

// DeleteGuide delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteGuide(ctx context.Context, email string) error {
	return s.afterMutation(ctx, s.Store.DeleteGuide(ctx, email))
}

// AddUser delegates to the in-memory store and snapshots on success.
func (s *Store) AddUser(ctx context.Context, u domain.User) (domain.User, error) {
	out, err := s.Store.AddUser(ctx, u)
	return out, s.afterMutation(ctx, err)
}

// UpdateUser delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	out, err := s.Store.UpdateUser(ctx, u)
	return out, s.afterMutation(ctx, err)
}

// DeleteUser delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	return s.afterMutation(ctx, s.Store.DeleteUser(ctx, email))
}

// AddTrek delegates to the in-memory store and snapshots on success.
func (s *Store) AddTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	out, err := s.Store.AddTrek(ctx, t)
	return out, s.afterMutation(ctx, err)
}

// UpdateTrek delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	out, err := s.Store.UpdateTrek(ctx, t)
	return out, s.afterMutation(ctx, err)
}

// DeleteTrek delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteTrek(ctx context.Context, id int) error {
	return s.afterMutation(ctx, s.Store.DeleteTrek(ctx, id))
}

// AddBooking delegates to the in-memory store and snapshots on success.
func (s *Store) AddBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	out, err := s.Store.AddBooking(ctx, b)
	return out, s.afterMutation(ctx, err)
}

// DeleteBooking delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteBooking(ctx context.Context, id int) error {
	return s.afterMutation(ctx, s.Store.DeleteBooking(ctx, id))
}

// AddEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) AddEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	out, err := s.Store.AddEmergency(ctx, e)
	return out, s.afterMutation(ctx, err)
}

// UpdateEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) UpdateEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	out, err := s.Store.UpdateEmergency(ctx, e)
	return out, s.afterMutation(ctx, err)
}

// DeleteEmergency delegates to the in-memory store and snapshots on success.
func (s *Store) DeleteEmergency(ctx context.Context, id int) error {
	return s.afterMutation(ctx, s.Store.DeleteEmergency(ctx, id))
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
