package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// badgerPrefix はメッセージのキーの接頭辞
// キーは "msg:{timestamp}" で、辞書順に並ぶ
const badgerPrefix = "msg:"

// BadgerBackend は埋め込みKVストア(Badger)にメッセージを保存する
// Saveは全件を1トランザクションで書くため、件数が増えると
// badger.ErrTxnTooBig になり得る。追記にはPutを使う
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadgerBackend はディレクトリdirのBadgerを開く
func OpenBadgerBackend(dir string) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("badgerのオープンに失敗: %w", err)
	}
	return NewBadgerBackend(db), nil
}

// NewBadgerBackend は既に開かれたDBからBadgerBackendを作成する
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

// Load は接頭辞スキャンで全メッセージを読み込む
func (b *BadgerBackend) Load(ctx context.Context) (Messages, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := Messages{}
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			ts := string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				var record Record
				if err := json.Unmarshal(value, &record); err != nil {
					return fmt.Errorf("%w: key %q: %v", ErrParse, ts, err)
				}
				messages[ts] = record
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Save は1トランザクションで全メッセージを置き換える
func (b *BadgerBackend) Save(ctx context.Context, messages Messages) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(badgerPrefix)

		// 新しいマッピングに無いキーを削除する
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := messages[string(key[len(prefix):])]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for ts, record := range messages {
			value, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(badgerPrefix+ts), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put は1件のメッセージだけを書き込む
func (b *BadgerBackend) Put(ctx context.Context, ts string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+ts), value)
	})
}

// Close はDBを閉じる
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
