package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/types"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements StateStore using SQLite
type SQLiteStore struct {
	db            *sql.DB
	now           func() time.Time
	schemaVersion uint
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithNowFunc overrides the clock used for fetch timestamps and freshness checks.
func WithNowFunc(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// NewSQLiteStore creates a new SQLite state store
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// _foreign_keys=1: enforce foreign keys
	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: concurrent readers and a single writer
	// _busy_timeout=3000: wait up to 3 seconds for locks
	connStr := dbPath + "?_foreign_keys=1&mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	// WAL mode supports one writer and multiple concurrent readers
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		db.Close()
		return nil, errors.NewTransientf("failed to check foreign keys status: %w", err)
	}
	if fkEnabled != 1 {
		db.Close()
		return nil, errors.NewTransientf("foreign keys are not enabled (got %d, expected 1)", fkEnabled)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.schemaVersion = version

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the migration version applied at open time.
func (s *SQLiteStore) SchemaVersion() uint {
	return s.schemaVersion
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewTransientf("database ping failed: %w", err)
	}
	return nil
}

const recordColumns = `package_name, repository, installed_version, status, aggregator_newest_version,
	summary, licenses_json, categories_json, source_url,
	registry_package_name, registry_newest_version, registry_update_url, registry_update_date,
	prefers_registry`

// GetIfFresh returns cached records for identifier fetched strictly after now minus maxAge.
func (s *SQLiteStore) GetIfFresh(ctx context.Context, identifier string, maxAge time.Duration, repo string) ([]types.PackageRecord, bool, error) {
	cutoff := s.now().Add(-maxAge).UnixMilli()

	query := `SELECT ` + recordColumns + ` FROM package_cache WHERE identifier = ? AND fetched_at > ?`
	args := []interface{}{identifier, cutoff}
	if repo != "" {
		query += ` AND repository = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY package_name, repository`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, errors.NewTransientf("failed to query package cache: %w", err)
	}
	defer rows.Close()

	records := make([]types.PackageRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, false, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.NewTransientf("error iterating package cache rows: %w", err)
	}

	if len(records) > 0 {
		return records, true, nil
	}

	// No rows: still a hit when the last full replace was fresh
	var refreshedAt int64
	err = s.db.QueryRowContext(ctx, `
		SELECT refreshed_at FROM cache_refreshes
		WHERE identifier = ? AND refreshed_at > ?
	`, identifier, cutoff).Scan(&refreshedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewTransientf("failed to query cache refresh marker: %w", err)
	}

	return records, true, nil
}

// ReplaceAll deletes every record for identifier and inserts records in one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, identifier string, records []types.PackageRecord) error {
	if identifier == "" {
		return errors.NewPermanentf("identifier cannot be empty")
	}

	fetchedAt := s.now().UnixMilli()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM package_cache WHERE identifier = ?`, identifier); err != nil {
			return errors.NewTransientf("failed to delete cached records: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO package_cache (identifier, `+recordColumns+`, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return errors.NewTransientf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			licensesJSON, err := marshalStrings(rec.Licenses)
			if err != nil {
				return err
			}
			categoriesJSON, err := marshalStrings(rec.Categories)
			if err != nil {
				return err
			}

			status := rec.Status
			if status == "" {
				status = types.StatusUnknown
			}

			_, err = stmt.ExecContext(ctx,
				identifier,
				rec.Name,
				rec.Repository,
				rec.InstalledVersion,
				string(status),
				rec.AggregatorNewestVersion,
				rec.Summary,
				licensesJSON,
				categoriesJSON,
				rec.SourceURL,
				rec.RegistryPackageName,
				rec.RegistryNewestVersion,
				rec.RegistryUpdateURL,
				rec.RegistryUpdateDate,
				rec.PrefersRegistry,
				fetchedAt,
			)
			if err != nil {
				return errors.NewTransientf("failed to insert record %s/%s: %w", rec.Repository, rec.Name, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cache_refreshes (identifier, refreshed_at, record_count)
			VALUES (?, ?, ?)
			ON CONFLICT(identifier) DO UPDATE SET
				refreshed_at = excluded.refreshed_at,
				record_count = excluded.record_count
		`, identifier, fetchedAt, len(records))
		if err != nil {
			return errors.NewTransientf("failed to update cache refresh marker: %w", err)
		}

		return nil
	})
}

// LastRefreshTime returns the most recent fetch time for identifier.
// Without a repo filter an empty refresh still counts.
func (s *SQLiteStore) LastRefreshTime(ctx context.Context, identifier string, repo string) (*time.Time, error) {
	var latest sql.NullInt64
	var err error

	if repo != "" {
		err = s.db.QueryRowContext(ctx, `
			SELECT MAX(fetched_at) FROM package_cache
			WHERE identifier = ? AND repository = ?
		`, identifier, repo).Scan(&latest)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT MAX(ts) FROM (
				SELECT MAX(fetched_at) AS ts FROM package_cache WHERE identifier = ?
				UNION ALL
				SELECT refreshed_at AS ts FROM cache_refreshes WHERE identifier = ?
			)
		`, identifier, identifier).Scan(&latest)
	}
	if err != nil {
		return nil, errors.NewTransientf("failed to query last refresh time: %w", err)
	}

	if !latest.Valid {
		return nil, nil
	}

	t := time.UnixMilli(latest.Int64).UTC()
	return &t, nil
}

// PruneOlderThan deletes records and refresh markers older than retention.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()

	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM package_cache WHERE fetched_at < ?`, cutoff)
		if err != nil {
			return errors.NewTransientf("failed to prune package cache: %w", err)
		}
		removed, err = result.RowsAffected()
		if err != nil {
			return errors.NewTransientf("failed to read pruned row count: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_refreshes WHERE refreshed_at < ?`, cutoff); err != nil {
			return errors.NewTransientf("failed to prune cache refresh markers: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// CacheSummary aggregates store contents for metrics.
func (s *SQLiteStore) CacheSummary(ctx context.Context) (*CacheSummary, error) {
	summary := &CacheSummary{RecordsByStatus: make(map[types.Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM package_cache GROUP BY status`)
	if err != nil {
		return nil, errors.NewTransientf("failed to count records by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewTransientf("failed to scan status count: %w", err)
		}
		summary.RecordsByStatus[types.ParseStatus(status)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("error iterating status counts: %w", err)
	}

	var oldest sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cache_refreshes),
			(SELECT MIN(refreshed_at) FROM cache_refreshes),
			(SELECT COUNT(*) FROM maintainer_subscriptions),
			(SELECT COUNT(*) FROM notification_history)
	`).Scan(&summary.Identifiers, &oldest, &summary.Subscriptions, &summary.Notifications)
	if err != nil {
		return nil, errors.NewTransientf("failed to query cache summary: %w", err)
	}

	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		summary.OldestRefreshedAt = &t
	}

	return summary, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (types.PackageRecord, error) {
	var rec types.PackageRecord
	var status string
	var licensesJSON, categoriesJSON sql.NullString

	err := row.Scan(
		&rec.Name,
		&rec.Repository,
		&rec.InstalledVersion,
		&status,
		&rec.AggregatorNewestVersion,
		&rec.Summary,
		&licensesJSON,
		&categoriesJSON,
		&rec.SourceURL,
		&rec.RegistryPackageName,
		&rec.RegistryNewestVersion,
		&rec.RegistryUpdateURL,
		&rec.RegistryUpdateDate,
		&rec.PrefersRegistry,
	)
	if err != nil {
		return rec, errors.NewTransientf("failed to scan package record: %w", err)
	}

	rec.Status = types.ParseStatus(status)
	if rec.Licenses, err = unmarshalStrings(licensesJSON); err != nil {
		return rec, err
	}
	if rec.Categories, err = unmarshalStrings(categoriesJSON); err != nil {
		return rec, err
	}

	return rec, nil
}

func marshalStrings(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, errors.NewPermanentf("failed to marshal string list: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalStrings(raw sql.NullString) ([]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, errors.NewPermanentf("failed to unmarshal string list: %w", err)
	}
	return values, nil
}

// withTx runs operation in a transaction and commits when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, operation func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransientf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := operation(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransientf("failed to commit transaction: %w", err)
	}

	return nil
}
