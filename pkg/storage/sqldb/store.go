package sqldb

import (
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/eventhub/config"
	"github.com/nsyszr/eventhub/pkg/storage"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite" // Pure Go SQLite driver registered as "sqlite"
)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

func init() {
	// sqlx doesn't know the modernc driver name
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

// store contains all SQL based sub-stores for managing the models
type store struct {
	events *eventStore
}

// NewStore creates a new SQL based Storage interface
func NewStore(db *sqlx.DB) storage.Interface {
	return &store{
		events: newEventStore(db),
	}
}

// Events returns a sub-store for managing the Event model
func (s *store) Events() storage.EventStore {
	return s.events
}

// Open connects to the database selected by the storage driver name
// (config.StorageDriverPostgres or config.StorageDriverSQLite) and checks
// the connection.
func Open(storageDriver, url string) (*sqlx.DB, error) {
	var driverName string
	switch storageDriver {
	case config.StorageDriverPostgres:
		driverName = driverPostgres
	case config.StorageDriverSQLite:
		driverName = driverSQLite
	default:
		return nil, fmt.Errorf("unsupported SQL storage driver '%s'", storageDriver)
	}

	db, err := sqlx.Open(driverName, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if driverName == driverSQLite {
		// SQLite has a single writer and every connection to ":memory:" is a
		// database of its own.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

// Migrate applies all pending schema migrations and returns how many were
// applied.
func Migrate(db *sqlx.DB) (int, error) {
	dialect, err := dialectOf(db)
	if err != nil {
		return 0, err
	}

	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations/" + dialect,
	}

	n, err := migrate.Exec(db.DB, dialect, migrations, migrate.Up)
	if err != nil {
		return n, errors.Wrap(err, "failed to apply migrations")
	}

	return n, nil
}

func dialectOf(db *sqlx.DB) (string, error) {
	switch db.DriverName() {
	case driverPostgres:
		return "postgres", nil
	case driverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("no migrations for database driver '%s'", db.DriverName())
}
