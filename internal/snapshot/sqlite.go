package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per room with the room state as JSON.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/rooms.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			code       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load skips rows that do not decode.
func (s *SQLiteStore) Load() (Rooms, error) {
	rows, err := s.db.Query(`SELECT code, body FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	out := Rooms{}
	for rows.Next() {
		var code, body string
		if err := rows.Scan(&code, &body); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		var st domain.RoomState
		if err := json.Unmarshal([]byte(body), &st); err != nil {
			log.Warn().Err(err).Str("module", "snapshot").Str("room", code).Msg("skipping corrupt room row")
			continue
		}
		out[domain.RoomCode(code)] = st
	}
	return out, rows.Err()
}

// Save replaces the table content in one transaction.
func (s *SQLiteStore) Save(rooms Rooms) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rooms`); err != nil {
		return fmt.Errorf("clear rooms: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO rooms (code, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for code, st := range rooms {
		body, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode room %s: %w", code, err)
		}
		if _, err := stmt.Exec(string(code), string(body)); err != nil {
			return fmt.Errorf("insert room %s: %w", code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
