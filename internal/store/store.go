// Package store は、ゲストブックのメッセージを永続化します。
//
// メッセージは作成時刻の文字列をキーとするマッピングとして扱われ、
// 追記は「全件読み込み → 追加 → 全件書き戻し」で行われます。
// Badger と SQLite では書き戻しの代わりに追加した1件だけを書き込みます。
// 書き込み先はファイル (JSON)、Badger、SQLite から選択できます。
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultUsername はユーザー名が空のときに使う名前
const DefaultUsername = "Anonymous"

var (
	// ErrParse は永続化されたデータが壊れている場合のエラー
	ErrParse = errors.New("malformed store content")
	// ErrUnknownBackend は未対応のストア種類を指定した場合のエラー
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Record は1件のメッセージ
type Record struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Messages はタイムスタンプをキーとするメッセージの集合
type Messages map[string]Record

// Entry はタイムスタンプ付きのメッセージ（表示用）
type Entry struct {
	Timestamp string
	Username  string
	Message   string
}

// Entries はキーの昇順（作成順）に並べたメッセージ一覧を返す
func (m Messages) Entries() []Entry {
	entries := lo.MapToSlice(m, func(ts string, r Record) Entry {
		return Entry{Timestamp: ts, Username: r.Username, Message: r.Message}
	})
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Timestamp, b.Timestamp)
	})
	return entries
}

// Store はメッセージストアのインターフェース
type Store interface {
	// Load は全メッセージを読み込む。未作成の場合は空のマッピングを返す
	Load(ctx context.Context) (Messages, error)
	// Save は全メッセージを書き込む（既存の内容は置き換えられる）
	Save(ctx context.Context, messages Messages) error
	// Append はメッセージを追加し、採番したタイムスタンプを返す
	Append(ctx context.Context, record Record) (string, error)
	// Close はストアを閉じる
	Close() error
}

// Backend は実際の読み書きを行う永続化層
type Backend interface {
	Load(ctx context.Context) (Messages, error)
	Save(ctx context.Context, messages Messages) error
	Close() error
}

// recordPutter は1件だけを書き込めるBackend
// Appendはこれを実装したBackendでは全件の書き戻しを行わない
type recordPutter interface {
	Put(ctx context.Context, ts string, record Record) error
}

// DefaultStore はStoreのデフォルト実装
// Backendへのアクセスをミューテックスで直列化する
type DefaultStore struct {
	backend Backend
	log     *slog.Logger
	mu      sync.Mutex

	// テストで時刻を差し替えるため
	now func() time.Time
}

// NewDefaultStore は新しいDefaultStoreを作成する
func NewDefaultStore(backend Backend, log *slog.Logger) Store {
	return &DefaultStore{
		backend: backend,
		log:     log,
		now:     time.Now,
	}
}

// Load は全メッセージを読み込む
func (s *DefaultStore) Load(ctx context.Context) (Messages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Load(ctx)
}

// Save は全メッセージを書き込む
func (s *DefaultStore) Save(ctx context.Context, messages Messages) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Save(ctx, messages)
}

// Append はメッセージを追加する
// 読み込みから書き戻しまでロックを保持するため、同時に追記しても失われない
func (s *DefaultStore) Append(ctx context.Context, record Record) (string, error) {
	if record.Username == "" {
		record.Username = DefaultUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.backend.Load(ctx)
	if err != nil {
		return "", err
	}

	ts := NewTimestamp(s.now(), messages)
	messages[ts] = record

	if putter, ok := s.backend.(recordPutter); ok {
		err = putter.Put(ctx, ts, record)
	} else {
		err = s.backend.Save(ctx, messages)
	}
	if err != nil {
		return "", err
	}

	s.log.Debug("メッセージを追加しました", "timestamp", ts, "username", record.Username, "total", len(messages))
	return ts, nil
}

// Close はストアを閉じる
func (s *DefaultStore) Close() error {
	return s.backend.Close()
}
