package drivers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// PostgresDriver persists a container store's set of References as
// JSONB rows keyed by storage key, using database/sql and lib/pq
// exactly as the teacher's repository layer does.
type PostgresDriver struct {
	db     *sql.DB
	key    wire.StorageKey
	logger *zap.Logger

	receiver store.ReceiverFunc
}

// NewPostgresDriver opens a connection per cfg and ensures the backing
// table exists.
func NewPostgresDriver(ctx context.Context, cfg config.PostgresConfig, key wire.StorageKey, logger *zap.Logger) (*PostgresDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("postgres_driver")

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	d := &PostgresDriver{db: db, key: key, logger: logger}
	if err := d.createTable(ctx); err != nil {
		return nil, err
	}
	logger.Info("connected to postgres container store", zap.String("key", key.String()))
	return d, nil
}

func (d *PostgresDriver) createTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS container_state (
		storage_key TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		version JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

func (d *PostgresDriver) Key() wire.StorageKey { return d.key }

func (d *PostgresDriver) RegisterReceiver(receiver store.ReceiverFunc) {
	d.receiver = receiver
}

func (d *PostgresDriver) Send(ctx context.Context, data interface{}, version crdt.VersionVector) (bool, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("postgres: marshal data: %w", err)
	}
	versionJSON, err := json.Marshal(version)
	if err != nil {
		return false, fmt.Errorf("postgres: marshal version: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO container_state (storage_key, data, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE SET data = $2, version = $3, updated_at = CURRENT_TIMESTAMP
	`, d.key.String(), dataJSON, versionJSON)
	if err != nil {
		d.logger.Warn("send rejected by postgres", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Load fetches the most recently stored row for this driver's key, if
// any. The store does not call it at startup; a new store begins empty.
func (d *PostgresDriver) Load(ctx context.Context) (json.RawMessage, crdt.VersionVector, bool, error) {
	var dataJSON, versionJSON json.RawMessage
	row := d.db.QueryRowContext(ctx, `SELECT data, version FROM container_state WHERE storage_key = $1`, d.key.String())
	if err := row.Scan(&dataJSON, &versionJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("postgres: load: %w", err)
	}
	var version crdt.VersionVector
	if err := json.Unmarshal(versionJSON, &version); err != nil {
		return nil, nil, false, fmt.Errorf("postgres: unmarshal version: %w", err)
	}
	return dataJSON, version, true, nil
}

func (d *PostgresDriver) Close() error {
	return d.db.Close()
}
