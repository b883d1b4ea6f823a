// Package store provides the persistent table store for the canonical
// telemetry relations and the generic delete-then-insert upsert engine.
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// Store provides persistence for the four canonical telemetry tables.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Upsert atomically replaces rows sharing key tuples with the batch
	// and inserts the batch. The returned count is rows processed (staged
	// batch size post-dedup), not rows mutated.
	Upsert(
		ctx context.Context,
		table string,
		batch *tabular.Batch,
		keyColumns []string,
		columnList []string,
	) (int, error)

	// Full-table snapshots for the presentation boundary.
	ListCostRecords(ctx context.Context) ([]CostRecord, error)
	ListFindings(ctx context.Context) ([]SecurityFinding, error)
	ListRuns(ctx context.Context) ([]BenchmarkRun, error)
	ListTransactions(ctx context.Context) ([]BenchmarkTransaction, error)

	BenchValidation(ctx context.Context) (*BenchValidation, error)

	// Destructive whole-table operations, operator-invoked only.
	ClearAll(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// migratedModels lists the canonical tables created at start.
var migratedModels = []any{
	&CostRecord{},
	&SecurityFinding{},
	&BenchmarkRun{},
	&BenchmarkTransaction{},
}

// Start opens the database connection and creates missing tables.
// Failure here is fatal and operator-visible: a store that cannot be
// opened or created is not retried.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(migratedModels...); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Snapshots ---

func (s *store) ListCostRecords(ctx context.Context) ([]CostRecord, error) {
	var records []CostRecord
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing cost records: %w", err)
	}

	return records, nil
}

func (s *store) ListFindings(ctx context.Context) ([]SecurityFinding, error) {
	var findings []SecurityFinding
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&findings).Error; err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}

	return findings, nil
}

func (s *store) ListRuns(ctx context.Context) ([]BenchmarkRun, error) {
	var runs []BenchmarkRun
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (s *store) ListTransactions(
	ctx context.Context,
) ([]BenchmarkTransaction, error) {
	var txs []BenchmarkTransaction
	if err := s.db.WithContext(ctx).
		Order("run_id, tx_hash").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return txs, nil
}

// BenchValidation counts rows in both bench tables and the distinct
// run_ids present in both. A mismatch is a diagnostic, not an error.
func (s *store) BenchValidation(
	ctx context.Context,
) (*BenchValidation, error) {
	v := &BenchValidation{}

	if err := s.db.WithContext(ctx).
		Model(&BenchmarkRun{}).
		Count(&v.RunRows).Error; err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&BenchmarkTransaction{}).
		Count(&v.TxRows).Error; err != nil {
		return nil, fmt.Errorf("counting transactions: %w", err)
	}

	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM (
			SELECT DISTINCT r.run_id
			FROM bench_runs r
			JOIN bench_tx t ON r.run_id = t.run_id
		) matched`,
	).Scan(&v.MatchedRunIDs).Error; err != nil {
		return nil, fmt.Errorf("counting matched run ids: %w", err)
	}

	return v, nil
}

// --- Destructive operations ---

// ClearAll deletes every row from every canonical table. Invoked only by
// direct operator action, never by the ingestion path.
func (s *store) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range migratedModels {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("clearing table: %w", err)
			}
		}

		return nil
	})
}

// Reset drops and recreates every canonical table. This is the only schema
// migration mechanism: changing a table's shape costs its prior data.
func (s *store) Reset(ctx context.Context) error {
	migrator := s.db.WithContext(ctx).Migrator()

	if err := migrator.DropTable(migratedModels...); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(migratedModels...); err != nil {
		return fmt.Errorf("recreating tables: %w", err)
	}

	s.log.Info("Schema reset, tables recreated")

	return nil
}
