package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrConfigNotFound is returned when no row exists for a merchant and flow
var ErrConfigNotFound = errors.New("merchant configuration not found")

const maxBusyRetries = 3

// MerchantKey identifies one stored option set
type MerchantKey struct {
	Merchant string
	Flow     string
}

// SQLiteStorage persists merchant option maps keyed by (merchant, flow)
type SQLiteStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStorage opens or creates the database at dbPath in WAL mode
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	storage := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS merchant_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		merchant TEXT NOT NULL,
		flow TEXT NOT NULL,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(merchant, flow)
	);

	CREATE INDEX IF NOT EXISTS idx_merchant_flow ON merchant_configs(merchant, flow);

	CREATE TRIGGER IF NOT EXISTS update_merchant_configs_updated_at
		AFTER UPDATE ON merchant_configs
	BEGIN
		UPDATE merchant_configs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`

	if _, err := s.db.Exec(query); err != nil {
		return err
	}
	_, err := s.db.Exec("PRAGMA busy_timeout = 30000;")
	return err
}

// retryOperation re-runs operation with exponential backoff while SQLite reports a lock
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// SaveMerchantConfig inserts or replaces the options for merchant and flow
func (s *SQLiteStorage) SaveMerchantConfig(merchant, flow string, options map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO merchant_configs (merchant, flow, config_data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(merchant, flow)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`
		if _, err := s.db.Exec(query, merchant, flow, string(data)); err != nil {
			return fmt.Errorf("failed to save merchant config: %w", err)
		}
		return nil
	}, maxBusyRetries)
}

// LoadMerchantConfig returns the options for merchant and flow
func (s *SQLiteStorage) LoadMerchantConfig(merchant, flow string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var options map[string]string
	err := s.retryOperation(func() error {
		var data string
		err := s.db.QueryRow(
			`SELECT config_data FROM merchant_configs WHERE merchant = ? AND flow = ?`,
			merchant, flow,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: merchant %s, flow %s", ErrConfigNotFound, merchant, flow)
		}
		if err != nil {
			return fmt.Errorf("failed to load merchant config: %w", err)
		}

		if err := json.Unmarshal([]byte(data), &options); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}, maxBusyRetries)

	return options, err
}

// LoadAllMerchantConfigs returns every stored option set. Rows that fail to
// decode are skipped.
func (s *SQLiteStorage) LoadAllMerchantConfigs() (map[MerchantKey]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var configs map[MerchantKey]map[string]string
	err := s.retryOperation(func() error {
		rows, err := s.db.Query(`SELECT merchant, flow, config_data FROM merchant_configs ORDER BY merchant, flow`)
		if err != nil {
			return fmt.Errorf("failed to query merchant configs: %w", err)
		}
		defer rows.Close()

		configs = make(map[MerchantKey]map[string]string)
		for rows.Next() {
			var key MerchantKey
			var data string
			if err := rows.Scan(&key.Merchant, &key.Flow, &data); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			var options map[string]string
			if err := json.Unmarshal([]byte(data), &options); err != nil {
				log.Printf("Warning: skipping undecodable config for merchant %s, flow %s: %v", key.Merchant, key.Flow, err)
				continue
			}
			configs[key] = options
		}
		return rows.Err()
	}, maxBusyRetries)
	if err != nil {
		return nil, err
	}

	return configs, nil
}

// DeleteMerchantConfig removes the options for merchant and flow
func (s *SQLiteStorage) DeleteMerchantConfig(merchant, flow string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		result, err := s.db.Exec(`DELETE FROM merchant_configs WHERE merchant = ? AND flow = ?`, merchant, flow)
		if err != nil {
			return fmt.Errorf("failed to delete merchant config: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: merchant %s, flow %s", ErrConfigNotFound, merchant, flow)
		}
		return nil
	}, maxBusyRetries)
}

// GetMerchantsByFlow lists merchants with a stored configuration for flow
func (s *SQLiteStorage) GetMerchantsByFlow(flow string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT DISTINCT merchant FROM merchant_configs WHERE flow = ? ORDER BY merchant`, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants by flow: %w", err)
	}
	defer rows.Close()

	var merchants []string
	for rows.Next() {
		var merchant string
		if err := rows.Scan(&merchant); err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		merchants = append(merchants, merchant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merchant rows: %w", err)
	}
	return merchants, nil
}

// GetStats returns row counts and the database file size
func (s *SQLiteStorage) GetStats() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]any)

	var total, merchants int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM merchant_configs").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count configs: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT merchant) FROM merchant_configs").Scan(&merchants); err != nil {
		return nil, fmt.Errorf("failed to count merchants: %w", err)
	}
	stats["total_configs"] = total
	stats["unique_merchants"] = merchants

	if info, err := os.Stat(s.path); err == nil {
		stats["db_size_bytes"] = info.Size()
	}
	stats["db_path"] = s.path

	return stats, nil
}

// Ping checks the database connection
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
