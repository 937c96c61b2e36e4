// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/abelzeko/water-router/internal/entities"
)

// RiverRepository defines the interface for river data persistence operations
type RiverRepository interface {
	SaveRiverData(data []entities.RiverData) error
	GetRiverDataByName(riverName string) ([]entities.RiverData, error)
	GetUniqueRivers() ([]string, error)
	GetLastUpdateTime() (time.Time, error)
	GetRiverData(cutoff time.Time) ([]entities.RiverData, error)
	GetStationHistory(river, station string, since time.Time) ([]entities.RiverData, error)
	Close() error
}

// SQLiteRiverRepository implements RiverRepository using SQLite
type SQLiteRiverRepository struct {
	db     *sql.DB
	log    *zap.SugaredLogger
	DBPath string
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS river_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		river TEXT NOT NULL,
		station TEXT NOT NULL,
		water_level TEXT,
		water_change TEXT,
		discharge TEXT,
		water_temp TEXT,
		tendency TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(river, station, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_river ON river_data(river);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON river_data(timestamp);`

// Columns added after the first release; older databases get them on open
var addedColumns = []string{"water_change", "discharge", "tendency"}

const selectColumns = `id, river, station, water_level, water_change, discharge, water_temp, tendency, timestamp`

// NewSQLiteRiverRepository creates and initializes a new SQLite repository
func NewSQLiteRiverRepository(dbPath string, logger *zap.SugaredLogger) (*SQLiteRiverRepository, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if dbPath == "" {
		dbPath = filepath.Join("data", "riverdata.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Infof("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	r := &SQLiteRiverRepository{
		db:     db,
		log:    logger,
		DBPath: dbPath,
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// migrate adds columns missing from databases created by older versions
func (r *SQLiteRiverRepository) migrate() error {
	rows, err := r.db.Query(`PRAGMA table_info(river_data)`)
	if err != nil {
		return fmt.Errorf("failed to inspect river_data: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during table info iteration: %w", err)
	}

	for _, col := range addedColumns {
		if existing[col] {
			continue
		}
		r.log.Infof("Adding column %s to river_data", col)
		if _, err := r.db.Exec(fmt.Sprintf(`ALTER TABLE river_data ADD COLUMN %s TEXT`, col)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
	}
	return nil
}

// Close closes the database connection
func (r *SQLiteRiverRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRiverData stores river data in the database
func (r *SQLiteRiverRepository) SaveRiverData(data []entities.RiverData) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Prepare SQL statement for inserting data
	stmt, err := tx.Prepare(`
		INSERT INTO river_data(river, station, water_level, water_change, discharge, water_temp, tendency, timestamp)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(river, station, timestamp) DO UPDATE SET
		water_level=excluded.water_level,
		water_change=excluded.water_change,
		discharge=excluded.discharge,
		water_temp=excluded.water_temp,
		tendency=excluded.tendency
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rd := range data {
		// Timestamps are stored in UTC so that text comparison orders them
		_, err := stmt.Exec(
			rd.River,
			rd.Station,
			rd.WaterLevel,
			rd.WaterChange,
			rd.Discharge,
			rd.WaterTemp,
			rd.Tendency,
			rd.Timestamp.UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert data for %s at %s: %w", rd.River, rd.Station, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Infof("Successfully saved %d river data records", len(data))
	return nil
}

// GetRiverDataByName retrieves data for a specific river
func (r *SQLiteRiverRepository) GetRiverDataByName(riverName string) ([]entities.RiverData, error) {
	// Using subquery to get only the most recent data for each station
	query := `
		SELECT ` + selectColumns + `
		FROM river_data
		WHERE river = ? AND (river, station, timestamp) IN (
			SELECT river, station, MAX(timestamp)
			FROM river_data
			WHERE river = ?
			GROUP BY river, station
		)
		ORDER BY station`

	rows, err := r.db.Query(query, riverName, riverName)
	if err != nil {
		return nil, fmt.Errorf("failed to query river data for %s: %w", riverName, err)
	}
	return scanRiverData(rows)
}

// GetUniqueRivers returns a list of all unique river names in the database
func (r *SQLiteRiverRepository) GetUniqueRivers() ([]string, error) {
	query := `
		SELECT DISTINCT river
		FROM river_data
		ORDER BY river`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique rivers: %w", err)
	}
	defer rows.Close()

	var rivers []string
	for rows.Next() {
		var river string
		if err := rows.Scan(&river); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rivers = append(rivers, river)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return rivers, nil
}

// GetLastUpdateTime returns the most recent timestamp in the database
func (r *SQLiteRiverRepository) GetLastUpdateTime() (time.Time, error) {
	var timestampStr sql.NullString
	err := r.db.QueryRow("SELECT MAX(timestamp) FROM river_data").Scan(&timestampStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last update time: %w", err)
	}

	// If the timestamp is null/empty, return zero time
	if !timestampStr.Valid || timestampStr.String == "" {
		return time.Time{}, nil
	}

	return parseTimestamp(timestampStr.String)
}

// timestampLayouts covers what the sqlite3 driver writes and what SQLite's
// CURRENT_TIMESTAMP produces
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var parseErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", s, parseErr)
}

// GetRiverData retrieves all river data from the database after a specific cutoff time
func (r *SQLiteRiverRepository) GetRiverData(cutoff time.Time) ([]entities.RiverData, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM river_data
		WHERE timestamp >= ?
		ORDER BY river, station, timestamp DESC`

	rows, err := r.db.Query(query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query river data: %w", err)
	}
	return scanRiverData(rows)
}

// GetStationHistory returns the observations of one station since a cutoff, oldest first
func (r *SQLiteRiverRepository) GetStationHistory(river, station string, since time.Time) ([]entities.RiverData, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM river_data
		WHERE river = ? AND station = ? AND timestamp >= ?
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(query, river, station, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s/%s: %w", river, station, err)
	}
	data, err := scanRiverData(rows)
	if err != nil {
		return nil, err
	}
	r.log.Debugf("Loaded %d observations for %s/%s since %s", len(data), river, station, since.Format(time.RFC3339))
	return data, nil
}

func scanRiverData(rows *sql.Rows) ([]entities.RiverData, error) {
	defer rows.Close()

	var result []entities.RiverData
	for rows.Next() {
		var (
			rd                                       entities.RiverData
			level, change, discharge, temp, tendency sql.NullString
		)
		if err := rows.Scan(
			&rd.ID,
			&rd.River,
			&rd.Station,
			&level,
			&change,
			&discharge,
			&temp,
			&tendency,
			&rd.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rd.WaterLevel = level.String
		rd.WaterChange = change.String
		rd.Discharge = discharge.String
		rd.WaterTemp = temp.String
		rd.Tendency = tendency.String
		result = append(result, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}
