package recorder

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"PowerSim/internal/powersim"
	"PowerSim/internal/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS power_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	host TEXT NOT NULL,
	state TEXT NOT NULL,
	wattage REAL NOT NULL,
	wake_progress REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS state_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	host TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	wattage REAL NOT NULL,
	reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON power_samples(timestamp);
CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON state_transitions(timestamp);
`

type SQLite struct {
	db   *sql.DB
	host string

	buffer *sampleBuffer
}

func NewSQLite(cfg DBConfig, host string) (*SQLite, error) {
	log.Infof("Initializing SQLite at %s", cfg.SQLite.Path)

	if err := util.EnsureParentDir(cfg.SQLite.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.SQLite.Path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	s := &SQLite{db: db, host: host}
	s.buffer = newSampleBuffer(cfg.BatchSize, cfg.FlushInterval, s.writeSamples)
	return s, nil
}

func (s *SQLite) ObserveSample(sample powersim.Sample) error {
	return s.buffer.add(sample)
}

func (s *SQLite) writeSamples(samples []powersim.Sample) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO power_samples (timestamp, host, state, wattage, wake_progress) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err = stmt.Exec(sample.Time, s.host, string(sample.State), sample.Wattage, sample.WakeProgress); err != nil {
			return fmt.Errorf("failed to insert power sample: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit power samples: %w", err)
	}
	return nil
}

func (s *SQLite) ObserveTransition(t powersim.Transition) error {
	_, err := s.db.Exec(
		`INSERT INTO state_transitions (timestamp, host, from_state, to_state, wattage, reason) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Time, s.host, string(t.From), string(t.To), t.Wattage, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert state transition: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	err := s.buffer.close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
