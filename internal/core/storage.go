package core

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"trekcore/internal/infra/persistence/jsonfile"
	"trekcore/internal/infra/persistence/memory"
	"trekcore/internal/infra/persistence/postgres"
	"trekcore/internal/infra/persistence/sqlite"
	"trekcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageJSONFile StorageDriver = "jsonfile" // flat JSON files (default)
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to the flat-file store when unset.
//
//	TREKCORE_STORAGE_DRIVER: jsonfile|memory|sqlite|postgres (default jsonfile)
//	TREKCORE_DATA_DIR: flat-file data directory (default ./data)
//	TREKCORE_SQLITE_PATH: path to sqlite file (default ./trekcore.db)
//	TREKCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine, log zerolog.Logger) (domain.PersistentStore, error) {
	driver := os.Getenv("TREKCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageJSONFile)
	}
	switch StorageDriver(driver) {
	case StorageJSONFile:
		return jsonfile.NewStore(os.Getenv("TREKCORE_DATA_DIR"), engine, log)
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("TREKCORE_SQLITE_PATH"), engine)
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("TREKCORE_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
