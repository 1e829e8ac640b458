package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
	_ "modernc.org/sqlite"

	"github.com/rusenback/docker-stats/internal/model"
)

// DefaultRetention is how long records are kept before cleanup removes them
const DefaultRetention = 7 * 24 * time.Hour

// DataPoint represents a single data point in time
type DataPoint struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
}

// Entry is a derived stats record queued for writing
type Entry struct {
	ContainerID string
	RecordedAt  time.Time
	Stats       model.Stats
}

// Storage handles persistent statistics storage
type Storage struct {
	db        *sql.DB
	clock     clock.WithTicker
	logger    *zap.SugaredLogger
	retention time.Duration

	writeChan chan *Entry
	closeChan chan struct{}
	done      chan struct{}
}

// Option configures a Storage
type Option func(*Storage)

// WithLogger sets the logger for write and cleanup failures
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

// WithClock sets the clock used for query windows and cleanup
func WithClock(c clock.WithTicker) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

// WithRetention sets how long records are kept
func WithRetention(d time.Duration) Option {
	return func(s *Storage) {
		s.retention = d
	}
}

// DefaultPath returns ~/.dockerstats/stats.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dockerstats", "stats.db"), nil
}

// NewStorage opens the database at path, creating it if needed
func NewStorage(path string, opts ...Option) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	storage := &Storage{
		db:        db,
		clock:     clock.RealClock{},
		logger:    zap.NewNop().Sugar(),
		retention: DefaultRetention,
		writeChan: make(chan *Entry, 1000),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(storage)
	}

	go storage.writer()
	go storage.cleanup()

	return storage, nil
}

// createTables creates the database schema
func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS container_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		container_id TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		cpu_percent REAL,
		memory_usage_kb REAL,
		memory_limit_kb REAL,
		memory_percent REAL,
		network_tx_kb REAL,
		network_rx_kb REAL
	);

	CREATE INDEX IF NOT EXISTS idx_container_time
	ON container_stats(container_id, recorded_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Write queues an entry for writing. It never blocks; entries are dropped
// when the queue is full.
func (s *Storage) Write(entry *Entry) {
	select {
	case s.writeChan <- entry:
	default:
		s.logger.Debugw("Write queue full, dropping entry", zap.String("container", entry.ContainerID))
	}
}

// writer runs in background and batch writes to database
func (s *Storage) writer() {
	defer close(s.done)

	buffer := make([]*Entry, 0, 100)
	ticker := s.clock.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-s.writeChan:
			buffer = append(buffer, entry)
			if len(buffer) >= 50 {
				s.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C():
			if len(buffer) > 0 {
				s.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case <-s.closeChan:
		drain:
			for {
				select {
				case entry := <-s.writeChan:
					buffer = append(buffer, entry)
				default:
					break drain
				}
			}
			if len(buffer) > 0 {
				s.batchWrite(buffer)
			}
			return
		}
	}
}

// batchWrite writes a batch of entries in one transaction
func (s *Storage) batchWrite(entries []*Entry) {
	if err := s.insert(entries); err != nil {
		s.logger.Warnw("Failed to write stats batch", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

func (s *Storage) insert(entries []*Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO container_stats
		(container_id, recorded_at, timestamp, cpu_percent,
		 memory_usage_kb, memory_limit_kb, memory_percent,
		 network_tx_kb, network_rx_kb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.Exec(
			entry.ContainerID,
			entry.RecordedAt.Unix(),
			entry.Stats.Timestamp,
			entry.Stats.CPUPercent,
			entry.Stats.MemoryUsageKB,
			entry.Stats.MemoryLimitKB,
			entry.Stats.MemoryPercent,
			entry.Stats.NetworkTxKB,
			entry.Stats.NetworkRxKB,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Query retrieves data points for a container and time range. Ranges longer
// than 30 minutes are averaged into buckets.
func (s *Storage) Query(containerID string, timeRange TimeRange) ([]DataPoint, error) {
	cutoff := s.clock.Now().Add(-timeRange.Duration()).Unix()

	bucketSize := timeRange.BucketSize()
	if bucketSize == 0 {
		// Full resolution (no aggregation)
		rows, err := s.db.Query(`
			SELECT recorded_at, cpu_percent, memory_percent
			FROM container_stats
			WHERE container_id = ? AND recorded_at > ?
			ORDER BY recorded_at ASC
		`, containerID, cutoff)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanRows(rows)
	}

	rows, err := s.db.Query(`
		SELECT
			(recorded_at / ?) * ? as bucket,
			AVG(cpu_percent) as avg_cpu,
			AVG(memory_percent) as avg_mem
		FROM container_stats
		WHERE container_id = ? AND recorded_at > ?
		GROUP BY bucket
		ORDER BY bucket ASC
	`, bucketSize, bucketSize, containerID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows scans database rows into DataPoints
func scanRows(rows *sql.Rows) ([]DataPoint, error) {
	var points []DataPoint

	for rows.Next() {
		var timestamp int64
		var cpu, mem float64

		if err := rows.Scan(&timestamp, &cpu, &mem); err != nil {
			return nil, err
		}

		points = append(points, DataPoint{
			Timestamp:     time.Unix(timestamp, 0),
			CPUPercent:    cpu,
			MemoryPercent: mem,
		})
	}

	return points, rows.Err()
}

// cleanup removes old data periodically
func (s *Storage) cleanup() {
	ticker := s.clock.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			cutoff := s.clock.Now().Add(-s.retention).Unix()
			if err := s.batchDelete(cutoff); err != nil {
				s.logger.Warnw("Failed to remove old stats", zap.Error(err))
			}

		case <-s.closeChan:
			return
		}
	}
}

// batchDelete removes records older than cutoff in batches to prevent long-running locks
func (s *Storage) batchDelete(cutoff int64) error {
	const batchSize = 1000
	for {
		result, err := s.db.Exec(`
			DELETE FROM container_stats WHERE id IN (
				SELECT id FROM container_stats WHERE recorded_at < ? LIMIT ?
			)`,
			cutoff,
			batchSize,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected < batchSize {
			return nil
		}
	}
}

// Close flushes queued entries and closes the database
func (s *Storage) Close() error {
	close(s.closeChan)
	<-s.done
	return s.db.Close()
}
