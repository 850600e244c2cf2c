package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// The bot keeps the original deployment's split: the resident roster,
// the bank, and the task board live in separate sqlite files. Writers
// take the database lock up front (_txlock=immediate) so a
// check-then-write transaction is a single exclusive section.
func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	return db, nil
}

const civilianSchema = `
CREATE TABLE IF NOT EXISTS civilians (
    id TEXT PRIMARY KEY,
    nickname TEXT NOT NULL,
    discord TEXT,
    telegram_uid TEXT UNIQUE,
    role TEXT DEFAULT 'resident'
)`

const bankSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    balance INTEGER DEFAULT 0 CHECK (balance >= 0),
    salary INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT,
    type TEXT,
    date TEXT,
    from_user TEXT,
    to_user TEXT,
    amount INTEGER,
    comment TEXT
)`

const tasksSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    task_type TEXT,
    count INTEGER,
    cost INTEGER NOT NULL,
    social_type TEXT NOT NULL,
    deadline TEXT,
    description TEXT,
    assigned_to TEXT,
    completed BOOLEAN DEFAULT FALSE
)`

// OpenCivilianDB opens the resident roster database.
func OpenCivilianDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, civilianSchema); err != nil {
		return nil, fmt.Errorf("init civilian schema: %w", err)
	}
	return db, nil
}

// OpenBankDB opens the accounts and transaction-log database.
func OpenBankDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, bankSchema); err != nil {
		return nil, fmt.Errorf("init bank schema: %w", err)
	}
	return db, nil
}

// OpenTasksDB opens the task-board database.
func OpenTasksDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, tasksSchema); err != nil {
		return nil, fmt.Errorf("init tasks schema: %w", err)
	}
	return db, nil
}
