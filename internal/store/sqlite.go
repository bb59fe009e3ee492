package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	timestamp TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	message TEXT NOT NULL
);`

// SQLiteBackend はSQLiteのテーブルにメッセージを保存する
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend はSQLiteデータベースを開き、テーブルを作成する
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("データベースディレクトリの作成に失敗: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLiteの書き込みは1接続で十分
	db.SetConnMaxLifetime(time.Hour)

	// WALモードで読み込みと書き込みを並行させる
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("テーブルの作成に失敗: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Load は全メッセージを読み込む
func (s *SQLiteBackend) Load(ctx context.Context) (Messages, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, username, message FROM messages ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗: %w", err)
	}
	defer rows.Close()

	messages := Messages{}
	for rows.Next() {
		var ts string
		var record Record
		if err := rows.Scan(&ts, &record.Username, &record.Message); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		messages[ts] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗: %w", err)
	}
	return messages, nil
}

// Save は1トランザクションで全メッセージを置き換える
func (s *SQLiteBackend) Save(ctx context.Context, messages Messages) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("メッセージの削除に失敗: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (timestamp, username, message) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for ts, record := range messages {
		if _, err := stmt.ExecContext(ctx, ts, record.Username, record.Message); err != nil {
			return fmt.Errorf("メッセージの保存に失敗: %w", err)
		}
	}

	return tx.Commit()
}

// Put は1件のメッセージだけを挿入する
func (s *SQLiteBackend) Put(ctx context.Context, ts string, record Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (timestamp, username, message) VALUES (?, ?, ?)`,
		ts, record.Username, record.Message)
	if err != nil {
		return fmt.Errorf("メッセージの保存に失敗: %w", err)
	}
	return nil
}

// Close はデータベースを閉じる
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
