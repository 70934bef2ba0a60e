package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adamspd/crispies/utils"
)

// DB is the SQLite-backed key-value store
type DB struct {
	*sql.DB
}

var _ Store = &DB{}

func InitDB(dbPath string) (*DB, error) {
	utils.LogStartup("Initializing database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		utils.LogError("Failed to open database: %v", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		utils.LogError("Failed to ping database: %v", err)
		db.Close()
		return nil, err
	}

	utils.LogStartup("Database connection established")

	if err := createTables(db); err != nil {
		utils.LogError("Failed to create tables: %v", err)
		db.Close()
		return nil, err
	}

	utils.LogStartup("Database tables initialized successfully")
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, query := range queries {
		utils.LogDB("Creating table %d/%d", i+1, len(queries))
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (db *DB) GetItem(key string) (string, bool, error) {
	utils.LogDB("Executing query: GetItem(%s)", key)

	var value string
	err := db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		utils.LogError("GetItem(%s) failed: %v", key, err)
		return "", false, err
	}
	return value, true, nil
}

func (db *DB) SetItem(key, value string) error {
	start := time.Now()

	_, err := db.Exec(`
        INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
    `, key, value)
	if err != nil {
		utils.LogError("SetItem(%s) failed: %v (%v)", key, err, time.Since(start))
		return err
	}

	utils.LogDB("Stored %s (%d bytes) in %v", key, len(value), time.Since(start))
	return nil
}

func (db *DB) RemoveItem(key string) error {
	utils.LogDB("Removing %s", key)

	if _, err := db.Exec("DELETE FROM kv_store WHERE key = ?", key); err != nil {
		utils.LogError("RemoveItem(%s) failed: %v", key, err)
		return err
	}
	return nil
}
